package domain

import (
	"math"
	"time"
)

// ConversionStatus is the processing state of a conversion.
type ConversionStatus string

const (
	StatusPending   ConversionStatus = "pending"
	StatusConfirmed ConversionStatus = "confirmed"
	StatusCancelled ConversionStatus = "cancelled"
	StatusRefunded  ConversionStatus = "refunded"
)

// Terminal reports whether no further transitions are allowed.
func (s ConversionStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusRefunded
}

// ConversionType classifies what the merchant reported.
type ConversionType string

const (
	ConversionPurchase     ConversionType = "purchase"
	ConversionSignup       ConversionType = "signup"
	ConversionSubscription ConversionType = "subscription"
	ConversionLead         ConversionType = "lead"
	ConversionInstall      ConversionType = "install"
)

// Product is one line item of a merchant order.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ConversionPayload carries the creation fields of a conversion webhook. The
// rule engine evaluates conditions against it and actions mutate its
// commission terms.
type ConversionPayload struct {
	OrderID          string           `json:"orderId"`
	ClickID          string           `json:"clickId"`
	UserID           string           `json:"userId,omitempty"`
	StoreID          string           `json:"storeId,omitempty"`
	OrderValue       float64          `json:"orderValue"`
	Currency         string           `json:"currency,omitempty"`
	Commission       float64          `json:"commission"`
	CommissionRate   float64          `json:"commissionRate"`
	Products         []Product        `json:"products,omitempty"`
	CustomerInfo     map[string]any   `json:"customerInfo,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	ConversionType   ConversionType   `json:"conversionType,omitempty"`
	AttributionModel AttributionModel `json:"attributionModel,omitempty"`
	ConvertedAt      *time.Time       `json:"convertedAt,omitempty"`
}

// BaseCommission returns the explicit commission when positive, otherwise
// the commission derived from the rate.
func (p ConversionPayload) BaseCommission() float64 {
	if p.Commission > 0 {
		return RoundMoney(p.Commission)
	}
	return RoundMoney(p.OrderValue * p.CommissionRate / 100)
}

// ConversionEvent is one merchant-reported order reconciled against a click.
type ConversionEvent struct {
	ID               string           `json:"id"`
	ClickID          string           `json:"clickId"`
	UserID           string           `json:"userId"`
	StoreID          string           `json:"storeId"`
	OrderID          string           `json:"orderId"`
	OrderValue       float64          `json:"orderValue"`
	Currency         string           `json:"currency"`
	Commission       float64          `json:"commission"`
	CommissionRate   float64          `json:"commissionRate"`
	Products         []Product        `json:"products,omitempty"`
	CustomerInfo     map[string]any   `json:"customerInfo,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
	ConversionType   ConversionType   `json:"conversionType"`
	AttributionModel AttributionModel `json:"attributionModel"`
	Status           ConversionStatus `json:"processingStatus"`
	StatusReason     string           `json:"statusReason,omitempty"`
	AppliedRules     []string         `json:"appliedRules"`
	FlaggedForReview bool             `json:"flaggedForReview"`
	ReviewReasons    []string         `json:"reviewReasons,omitempty"`
	ConvertedAt      time.Time        `json:"convertedAt"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// AuditEntry records one status change of a conversion.
type AuditEntry struct {
	ID           string            `json:"id"`
	ConversionID string            `json:"conversionId"`
	Action       string            `json:"action"`
	FromStatus   ConversionStatus  `json:"fromStatus"`
	ToStatus     ConversionStatus  `json:"toStatus"`
	Reason       string            `json:"reason,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// RoundMoney rounds v to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
