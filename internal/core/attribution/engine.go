// Package attribution splits the credit of a conversion across the clicks
// that led to it.
package attribution

import (
	"fmt"
	"math"
	"sort"
	"time"

	"clickflow/internal/core/domain"
)

const (
	// weightTolerance bounds the deviation of Σweight from 1.
	weightTolerance = 1e-6
	// moneyTolerance bounds the deviation of money sums from their totals.
	moneyTolerance = 1e-6
)

// Config tunes the engine.
type Config struct {
	// Lookback bounds how far before the conversion clicks are considered.
	Lookback time.Duration
	// HalfLife of the time_decay model: a click HalfLife older than another
	// gets half its weight.
	HalfLife time.Duration
	// EndpointShare is the share given to each of the first and last touch
	// under position_based.
	EndpointShare float64
	// DefaultModel applies when a conversion carries no model.
	DefaultModel domain.AttributionModel
}

// DefaultConfig returns a 30 day lookback, 7 day half-life, 40/20/40
// position split and last_click default.
func DefaultConfig() Config {
	return Config{
		Lookback:      30 * 24 * time.Hour,
		HalfLife:      7 * 24 * time.Hour,
		EndpointShare: 0.4,
		DefaultModel:  domain.ModelLastClick,
	}
}

// Engine computes attribution records. It is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine with cfg; zero fields fall back to defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = def.HalfLife
	}
	if cfg.EndpointShare <= 0 || cfg.EndpointShare >= 0.5 {
		cfg.EndpointShare = def.EndpointShare
	}
	if !cfg.DefaultModel.Valid() {
		cfg.DefaultModel = def.DefaultModel
	}
	return &Engine{cfg: cfg}
}

// Lookback returns the configured lookback window.
func (e *Engine) Lookback() time.Duration { return e.cfg.Lookback }

// Model returns m, or the default model when m is empty or unknown.
func (e *Engine) Model(m domain.AttributionModel) domain.AttributionModel {
	if !m.Valid() {
		return e.cfg.DefaultModel
	}
	return m
}

// Window returns the click time range considered for a conversion.
func (e *Engine) Window(conv domain.ConversionEvent) (from, to time.Time) {
	return conv.ConvertedAt.Add(-e.cfg.Lookback), conv.ConvertedAt
}

// Calculate builds the attribution record of conv from the user's clicks.
// Clicks outside the lookback window or belonging to other users are
// ignored; the originating click always takes part. Equal timestamps keep
// the order of clicks, so under last_click the later entry wins.
func (e *Engine) Calculate(conv domain.ConversionEvent, clicks []domain.ClickEvent) (domain.AttributionRecord, error) {
	model := e.Model(conv.AttributionModel)
	touches := e.touchpoints(conv, clicks)
	if len(touches) == 0 {
		return domain.AttributionRecord{}, fmt.Errorf("%w: no touchpoints for conversion %s", domain.ErrNotFound, conv.ID)
	}

	weights := e.weights(model, conv.ConvertedAt, touches)
	first := touches[0].ClickedAt
	last := touches[len(touches)-1].ClickedAt

	rec := domain.AttributionRecord{
		ConversionID:     conv.ID,
		AttributionModel: model,
		Touchpoints:      make([]domain.Touchpoint, len(touches)),
	}
	var valueSum, commissionSum float64
	for i, c := range touches {
		tp := domain.Touchpoint{
			ClickID:             c.ClickID,
			Source:              c.Source,
			Timestamp:           c.ClickedAt,
			Weight:              weights[i],
			Position:            i + 1,
			TimeSinceFirstClick: c.ClickedAt.Sub(first),
			TimeSinceLastClick:  last.Sub(c.ClickedAt),
		}
		if i < len(touches)-1 {
			tp.ConversionValue = conv.OrderValue * weights[i]
			tp.Commission = conv.Commission * weights[i]
		} else {
			// the last touch absorbs rounding drift so the sums are exact
			tp.ConversionValue = conv.OrderValue - valueSum
			tp.Commission = conv.Commission - commissionSum
		}
		valueSum += tp.ConversionValue
		commissionSum += tp.Commission
		rec.Touchpoints[i] = tp
	}
	if err := Verify(rec, conv); err != nil {
		return domain.AttributionRecord{}, err
	}
	return rec, nil
}

// Verify checks the conserved sums of rec against conv.
func Verify(rec domain.AttributionRecord, conv domain.ConversionEvent) error {
	var w, v, c float64
	for _, tp := range rec.Touchpoints {
		if tp.Weight < 0 || math.IsNaN(tp.Weight) {
			return fmt.Errorf("%w: touchpoint %s weight %v", domain.ErrAttributionInvariant, tp.ClickID, tp.Weight)
		}
		w += tp.Weight
		v += tp.ConversionValue
		c += tp.Commission
	}
	if math.Abs(w-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v", domain.ErrAttributionInvariant, w)
	}
	if math.Abs(v-conv.OrderValue) > moneyTolerance {
		return fmt.Errorf("%w: values sum to %v, order value %v", domain.ErrAttributionInvariant, v, conv.OrderValue)
	}
	if math.Abs(c-conv.Commission) > moneyTolerance {
		return fmt.Errorf("%w: commissions sum to %v, commission %v", domain.ErrAttributionInvariant, c, conv.Commission)
	}
	return nil
}

func (e *Engine) touchpoints(conv domain.ConversionEvent, clicks []domain.ClickEvent) []domain.ClickEvent {
	from, to := e.Window(conv)
	out := make([]domain.ClickEvent, 0, len(clicks))
	seen := make(map[string]struct{}, len(clicks))
	var origin *domain.ClickEvent
	for i := range clicks {
		c := clicks[i]
		if c.ClickID == conv.ClickID {
			origin = &clicks[i]
		}
		if _, dup := seen[c.ClickID]; dup {
			continue
		}
		if c.UserID != conv.UserID || c.ClickedAt.Before(from) || c.ClickedAt.After(to) {
			continue
		}
		seen[c.ClickID] = struct{}{}
		out = append(out, c)
	}
	if _, ok := seen[conv.ClickID]; !ok && origin != nil {
		out = append(out, *origin)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClickedAt.Before(out[j].ClickedAt)
	})
	return out
}

func (e *Engine) weights(model domain.AttributionModel, convertedAt time.Time, touches []domain.ClickEvent) []float64 {
	n := len(touches)
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	switch model {
	case domain.ModelFirstClick:
		w[0] = 1
	case domain.ModelLinear:
		fill(w, 1/float64(n))
	case domain.ModelPositionBased:
		if n == 2 {
			fill(w, 0.5)
			break
		}
		middle := (1 - 2*e.cfg.EndpointShare) / float64(n-2)
		fill(w, middle)
		w[0] = e.cfg.EndpointShare
		w[n-1] = e.cfg.EndpointShare
	case domain.ModelTimeDecay:
		lambda := math.Ln2 / e.cfg.HalfLife.Seconds()
		var sum float64
		for i, c := range touches {
			age := convertedAt.Sub(c.ClickedAt).Seconds()
			if age < 0 {
				age = 0
			}
			w[i] = math.Exp(-lambda * age)
			sum += w[i]
		}
		if sum == 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
			fill(w, 1/float64(n))
			break
		}
		for i := range w {
			w[i] /= sum
		}
	default:
		w[n-1] = 1
	}
	return w
}

func fill(w []float64, v float64) {
	for i := range w {
		w[i] = v
	}
}
