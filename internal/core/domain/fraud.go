package domain

import "time"

// Fraud indicator codes.
const (
	IndicatorExcessiveConversions = "excessive_conversions_24h"
	IndicatorFastConversion       = "suspiciously_fast_conversion"
	IndicatorBotUserAgent         = "bot_user_agent"
	IndicatorBlockedIP            = "blocked_ip"
	IndicatorGeoMismatch          = "geo_mismatch"
	IndicatorHighOrderValue       = "high_order_value"
)

// FraudPolicy decides what happens to conversions scored as fraud.
type FraudPolicy string

const (
	// PolicySoftFlag keeps the commission and marks the conversion for review.
	PolicySoftFlag FraudPolicy = "soft_flag"
	// PolicyHardBlock creates the conversion cancelled with zero commission.
	PolicyHardBlock FraudPolicy = "hard_block"
)

// FraudAssessment is the immutable result of scoring one conversion.
// Re-evaluation appends a new assessment.
type FraudAssessment struct {
	ID           string      `json:"id"`
	ConversionID string      `json:"conversionId"`
	RiskScore    int         `json:"riskScore"`
	Indicators   []string    `json:"indicators"`
	IsFraud      bool        `json:"isFraud"`
	Policy       FraudPolicy `json:"policy"`
	EvaluatedAt  time.Time   `json:"evaluatedAt"`
}
