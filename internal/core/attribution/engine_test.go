package attribution

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickflow/internal/core/domain"
)

var allModels = []domain.AttributionModel{
	domain.ModelLastClick,
	domain.ModelFirstClick,
	domain.ModelLinear,
	domain.ModelPositionBased,
	domain.ModelTimeDecay,
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clicksAt(user string, offsets ...time.Duration) []domain.ClickEvent {
	out := make([]domain.ClickEvent, len(offsets))
	for i, off := range offsets {
		out[i] = domain.ClickEvent{
			ClickID:   fmt.Sprintf("click-%d", i),
			UserID:    user,
			Source:    domain.SourceGroup,
			ClickedAt: t0.Add(off),
		}
	}
	return out
}

func conversion(model domain.AttributionModel, clickID string, at time.Time) domain.ConversionEvent {
	return domain.ConversionEvent{
		ID:               "conv-1",
		ClickID:          clickID,
		UserID:           "u1",
		OrderValue:       123.45,
		Commission:       6.17,
		AttributionModel: model,
		ConvertedAt:      at,
	}
}

func sums(rec domain.AttributionRecord) (w, v, c float64) {
	for _, tp := range rec.Touchpoints {
		w += tp.Weight
		v += tp.ConversionValue
		c += tp.Commission
	}
	return
}

func TestConservedSumsForAllModels(t *testing.T) {
	e := NewEngine(DefaultConfig())
	clicks := clicksAt("u1", 0, time.Hour, 26*time.Hour, 72*time.Hour, 100*time.Hour)
	for _, m := range allModels {
		t.Run(string(m), func(t *testing.T) {
			conv := conversion(m, "click-4", t0.Add(101*time.Hour))
			rec, err := e.Calculate(conv, clicks)
			require.NoError(t, err)
			require.Len(t, rec.Touchpoints, 5)

			w, v, c := sums(rec)
			assert.InDelta(t, 1.0, w, 1e-6)
			assert.InDelta(t, conv.OrderValue, v, 1e-9)
			assert.InDelta(t, conv.Commission, c, 1e-9)
			assert.Equal(t, m, rec.AttributionModel)
		})
	}
}

func TestSingleTouchpointGetsFullCredit(t *testing.T) {
	e := NewEngine(DefaultConfig())
	clicks := clicksAt("u1", 0)
	for _, m := range allModels {
		t.Run(string(m), func(t *testing.T) {
			rec, err := e.Calculate(conversion(m, "click-0", t0.Add(3*time.Hour)), clicks)
			require.NoError(t, err)
			require.Len(t, rec.Touchpoints, 1)
			assert.Equal(t, 1.0, rec.Touchpoints[0].Weight)
			assert.Equal(t, 123.45, rec.Touchpoints[0].ConversionValue)
			assert.Equal(t, 1, rec.Touchpoints[0].Position)
		})
	}
}

func TestLinearTwoClicksOneHourApart(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rec, err := e.Calculate(conversion(domain.ModelLinear, "click-1", t0.Add(90*time.Minute)), clicksAt("u1", 0, time.Hour))
	require.NoError(t, err)
	require.Len(t, rec.Touchpoints, 2)
	assert.Equal(t, 0.5, rec.Touchpoints[0].Weight)
	assert.Equal(t, 0.5, rec.Touchpoints[1].Weight)
	assert.Equal(t, time.Hour, rec.Touchpoints[1].TimeSinceFirstClick)
	assert.Equal(t, time.Hour, rec.Touchpoints[0].TimeSinceLastClick)
}

func TestLastClickAndDefaultModel(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rec, err := e.Calculate(conversion("", "click-2", t0.Add(5*time.Hour)), clicksAt("u1", 0, time.Hour, 2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.ModelLastClick, rec.AttributionModel)
	assert.Equal(t, []float64{0, 0, 1}, weightsOf(rec))
}

func TestLastClickTieBreakKeepsInsertionOrder(t *testing.T) {
	e := NewEngine(DefaultConfig())
	clicks := clicksAt("u1", 0, time.Hour, time.Hour)
	rec, err := e.Calculate(conversion(domain.ModelLastClick, "click-1", t0.Add(2*time.Hour)), clicks)
	require.NoError(t, err)
	last := rec.Touchpoints[len(rec.Touchpoints)-1]
	assert.Equal(t, "click-2", last.ClickID)
	assert.Equal(t, 1.0, last.Weight)
}

func TestPositionBasedSplit(t *testing.T) {
	e := NewEngine(DefaultConfig())

	rec, err := e.Calculate(conversion(domain.ModelPositionBased, "click-3", t0.Add(4*time.Hour)), clicksAt("u1", 0, time.Hour, 2*time.Hour, 3*time.Hour))
	require.NoError(t, err)
	w := weightsOf(rec)
	assert.InDelta(t, 0.4, w[0], 1e-12)
	assert.InDelta(t, 0.1, w[1], 1e-12)
	assert.InDelta(t, 0.1, w[2], 1e-12)
	assert.InDelta(t, 0.4, w[3], 1e-12)

	rec, err = e.Calculate(conversion(domain.ModelPositionBased, "click-1", t0.Add(4*time.Hour)), clicksAt("u1", 0, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, weightsOf(rec))
}

func TestTimeDecayFavoursRecentClicks(t *testing.T) {
	e := NewEngine(Config{HalfLife: 24 * time.Hour})
	conv := conversion(domain.ModelTimeDecay, "click-1", t0.Add(48*time.Hour))
	rec, err := e.Calculate(conv, clicksAt("u1", 0, 24*time.Hour))
	require.NoError(t, err)
	w := weightsOf(rec)
	// ages 48h and 24h with a 24h half-life: 0.25 vs 0.5
	assert.InDelta(t, 1.0/3, w[0], 1e-9)
	assert.InDelta(t, 2.0/3, w[1], 1e-9)
	assert.Greater(t, w[1], w[0])
}

func TestLookbackAndForeignClicksExcluded(t *testing.T) {
	e := NewEngine(Config{Lookback: 24 * time.Hour})
	clicks := clicksAt("u1", 0, 40*time.Hour, 47*time.Hour)
	clicks = append(clicks, domain.ClickEvent{ClickID: "other", UserID: "u2", ClickedAt: t0.Add(46 * time.Hour)})
	clicks = append(clicks, domain.ClickEvent{ClickID: "future", UserID: "u1", ClickedAt: t0.Add(50 * time.Hour)})

	rec, err := e.Calculate(conversion(domain.ModelLinear, "click-2", t0.Add(48*time.Hour)), clicks)
	require.NoError(t, err)
	var ids []string
	for _, tp := range rec.Touchpoints {
		ids = append(ids, tp.ClickID)
	}
	assert.Equal(t, []string{"click-1", "click-2"}, ids)
}

func TestOriginatingClickAlwaysIncluded(t *testing.T) {
	e := NewEngine(Config{Lookback: time.Hour})
	clicks := clicksAt("u1", 0)
	rec, err := e.Calculate(conversion(domain.ModelLastClick, "click-0", t0.Add(10*time.Hour)), clicks)
	require.NoError(t, err)
	require.Len(t, rec.Touchpoints, 1)
	assert.Equal(t, "click-0", rec.Touchpoints[0].ClickID)
}

func TestNoTouchpoints(t *testing.T) {
	e := NewEngine(DefaultConfig())
	_, err := e.Calculate(conversion(domain.ModelLinear, "missing", t0), nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyDetectsBrokenSums(t *testing.T) {
	conv := conversion(domain.ModelLinear, "c", t0)
	rec := domain.AttributionRecord{Touchpoints: []domain.Touchpoint{
		{ClickID: "a", Weight: 0.6, ConversionValue: conv.OrderValue, Commission: conv.Commission},
	}}
	assert.ErrorIs(t, Verify(rec, conv), domain.ErrAttributionInvariant)

	rec.Touchpoints[0].Weight = math.NaN()
	assert.ErrorIs(t, Verify(rec, conv), domain.ErrAttributionInvariant)
}

func weightsOf(rec domain.AttributionRecord) []float64 {
	out := make([]float64, len(rec.Touchpoints))
	for i, tp := range rec.Touchpoints {
		out[i] = tp.Weight
	}
	return out
}
