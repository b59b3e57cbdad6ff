// Package fraud scores conversions for fraud risk. Signals are additive and
// the total is capped at 100. A signal whose inputs are missing contributes
// nothing; the detector never fails.
package fraud

import (
	"math"
	"net"
	"regexp"
	"strings"
	"time"

	"clickflow/internal/core/domain"
)

const maxScore = 100

// Config tunes the detector.
type Config struct {
	// Threshold is the score at or above which a conversion is fraud.
	Threshold int
	// VelocityLimit is the number of conversions in VelocityWindow,
	// excluding the current one, that raises the velocity signal.
	VelocityLimit  int
	VelocityWindow time.Duration
	// FastConversionFloor is the click-to-conversion delay under which the
	// timing signal fires.
	FastConversionFloor time.Duration
	// BlockedNetworks are CIDRs whose clicks raise the IP signal.
	BlockedNetworks []string
	// HighValueThreshold raises the high value signal at or above it; zero
	// disables the signal.
	HighValueThreshold float64
	Policy             domain.FraudPolicy
}

// DefaultConfig returns threshold 50, 5 conversions per 24h, a 10s floor
// and the soft flag policy.
func DefaultConfig() Config {
	return Config{
		Threshold:           50,
		VelocityLimit:       5,
		VelocityWindow:      24 * time.Hour,
		FastConversionFloor: 10 * time.Second,
		Policy:              domain.PolicySoftFlag,
	}
}

// Input is everything the detector looks at for one conversion.
type Input struct {
	Conversion domain.ConversionEvent
	// Click is the originating click; nil when it could not be loaded.
	Click *domain.ClickEvent
	// RecentConversions counts the user's conversions in the velocity
	// window, excluding Conversion.
	RecentConversions int
}

// Result is the detector's verdict.
type Result struct {
	IsFraud    bool
	Indicators []string
	RiskScore  int
}

// signal inspects one aspect of the input and returns its indicator and
// score, or ok=false when it has nothing to report.
type signal func(in Input) (indicator string, score int, ok bool)

// Detector scores conversions. It is safe for concurrent use.
type Detector struct {
	cfg      Config
	networks []*net.IPNet
	signals  []signal
}

var botUserAgent = regexp.MustCompile(`(?i)(curl|wget|python-requests|python-urllib|aiohttp|httpx|go-http-client|okhttp|java/|libwww|scrapy|headless|phantomjs|selenium|puppeteer|playwright|spider|crawler|\bbot\b)`)

// NewDetector returns a detector with cfg. Zero fields fall back to
// defaults; invalid CIDRs are skipped.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.VelocityLimit <= 0 {
		cfg.VelocityLimit = def.VelocityLimit
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = def.VelocityWindow
	}
	if cfg.FastConversionFloor <= 0 {
		cfg.FastConversionFloor = def.FastConversionFloor
	}
	if cfg.Policy != domain.PolicyHardBlock {
		cfg.Policy = domain.PolicySoftFlag
	}
	d := &Detector{cfg: cfg}
	for _, cidr := range cfg.BlockedNetworks {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			d.networks = append(d.networks, n)
		}
	}
	d.signals = []signal{
		d.velocity,
		d.timing,
		d.userAgent,
		d.blockedIP,
		d.geoMismatch,
		d.highValue,
	}
	return d
}

// Policy returns the configured fraud policy.
func (d *Detector) Policy() domain.FraudPolicy { return d.cfg.Policy }

// VelocityWindow returns the trailing window counted by the velocity signal.
func (d *Detector) VelocityWindow() time.Duration { return d.cfg.VelocityWindow }

// Detect scores in.
func (d *Detector) Detect(in Input) Result {
	var (
		score      int
		indicators = make([]string, 0, len(d.signals))
	)
	for _, s := range d.signals {
		ind, pts, ok := s(in)
		if !ok || pts <= 0 {
			continue
		}
		score += pts
		indicators = append(indicators, ind)
	}
	if score > maxScore {
		score = maxScore
	}
	return Result{
		IsFraud:    score >= d.cfg.Threshold,
		Indicators: uniqStrings(indicators),
		RiskScore:  score,
	}
}

func (d *Detector) velocity(in Input) (string, int, bool) {
	if in.RecentConversions >= d.cfg.VelocityLimit {
		return domain.IndicatorExcessiveConversions, 50, true
	}
	return "", 0, false
}

// timing scores 40 at zero delay falling linearly towards 20 at the floor,
// so a shorter delay never scores lower.
func (d *Detector) timing(in Input) (string, int, bool) {
	if in.Click == nil || in.Click.ClickedAt.IsZero() || in.Conversion.ConvertedAt.IsZero() {
		return "", 0, false
	}
	delta := in.Conversion.ConvertedAt.Sub(in.Click.ClickedAt)
	if delta < 0 {
		delta = 0
	}
	if delta >= d.cfg.FastConversionFloor {
		return "", 0, false
	}
	ratio := float64(delta) / float64(2*d.cfg.FastConversionFloor)
	return domain.IndicatorFastConversion, int(math.Ceil(40 * (1 - ratio))), true
}

func (d *Detector) userAgent(in Input) (string, int, bool) {
	if in.Click == nil || in.Click.UserAgent == "" {
		return "", 0, false
	}
	if botUserAgent.MatchString(in.Click.UserAgent) {
		return domain.IndicatorBotUserAgent, 20, true
	}
	return "", 0, false
}

func (d *Detector) blockedIP(in Input) (string, int, bool) {
	if in.Click == nil || len(d.networks) == 0 {
		return "", 0, false
	}
	ip := net.ParseIP(strings.TrimSpace(in.Click.IPAddress))
	if ip == nil {
		return "", 0, false
	}
	for _, n := range d.networks {
		if n.Contains(ip) {
			return domain.IndicatorBlockedIP, 30, true
		}
	}
	return "", 0, false
}

func (d *Detector) geoMismatch(in Input) (string, int, bool) {
	if in.Click == nil || in.Click.Country == "" {
		return "", 0, false
	}
	country, _ := in.Conversion.CustomerInfo["country"].(string)
	if country == "" {
		return "", 0, false
	}
	if !strings.EqualFold(strings.TrimSpace(country), strings.TrimSpace(in.Click.Country)) {
		return domain.IndicatorGeoMismatch, 15, true
	}
	return "", 0, false
}

func (d *Detector) highValue(in Input) (string, int, bool) {
	if d.cfg.HighValueThreshold <= 0 || in.Conversion.OrderValue < d.cfg.HighValueThreshold {
		return "", 0, false
	}
	return domain.IndicatorHighOrderValue, 10, true
}

func uniqStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
