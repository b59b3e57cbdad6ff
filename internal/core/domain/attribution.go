package domain

import "time"

// AttributionModel selects how credit is split across touchpoints.
type AttributionModel string

const (
	ModelLastClick     AttributionModel = "last_click"
	ModelFirstClick    AttributionModel = "first_click"
	ModelLinear        AttributionModel = "linear"
	ModelPositionBased AttributionModel = "position_based"
	ModelTimeDecay     AttributionModel = "time_decay"
)

// Valid reports whether m is a supported model.
func (m AttributionModel) Valid() bool {
	switch m {
	case ModelLastClick, ModelFirstClick, ModelLinear, ModelPositionBased, ModelTimeDecay:
		return true
	}
	return false
}

// Touchpoint is one click credited for a conversion. Position is 1-based.
type Touchpoint struct {
	ClickID             string        `json:"clickId"`
	Source              TrafficSource `json:"source"`
	Timestamp           time.Time     `json:"timestamp"`
	Weight              float64       `json:"weight"`
	Position            int           `json:"position"`
	TimeSinceFirstClick time.Duration `json:"timeSinceFirstClick"`
	TimeSinceLastClick  time.Duration `json:"timeSinceLastClick"`
	ConversionValue     float64       `json:"conversionValue"`
	Commission          float64       `json:"commission"`
}

// AttributionRecord is the credit split of one conversion. Weights sum to 1
// and the value and commission columns sum to the conversion totals.
type AttributionRecord struct {
	ID               string           `json:"id"`
	ConversionID     string           `json:"conversionId"`
	AttributionModel AttributionModel `json:"attributionModel"`
	Touchpoints      []Touchpoint     `json:"touchpoints"`
	CreatedAt        time.Time        `json:"createdAt"`
}
