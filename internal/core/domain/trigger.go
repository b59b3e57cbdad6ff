package domain

import (
	"strconv"
	"strings"
	"time"
)

// TriggerType names an outbound event handed to the notifier.
type TriggerType string

const (
	TriggerConversionCreated   TriggerType = "conversion_created"
	TriggerConversionConfirmed TriggerType = "conversion_confirmed"
	TriggerConversionCancelled TriggerType = "conversion_cancelled"
	TriggerPartialRefund       TriggerType = "conversion_refunded_partial"
	TriggerPixelFire           TriggerType = "pixel_fire"
)

// TriggerEvent is what the pipeline hands to the external notifier. Delivery
// mechanics (retries per endpoint, signing) belong to the notifier.
type TriggerEvent struct {
	EventID      string           `json:"eventId"`
	Type         TriggerType      `json:"type"`
	StoreID      string           `json:"storeId"`
	ConversionID string           `json:"conversionId"`
	OrderID      string           `json:"orderId"`
	ClickID      string           `json:"clickId"`
	OrderValue   float64          `json:"orderValue"`
	Commission   float64          `json:"commission"`
	Currency     string           `json:"currency"`
	Status       ConversionStatus `json:"status"`
	URL          string           `json:"url,omitempty"`
	OccurredAt   time.Time        `json:"occurredAt"`
}

// StorePixel is a conversion pixel registered for a store. URLTemplate may
// reference {{ORDER_ID}}, {{ORDER_VALUE}}, {{COMMISSION}}, {{CURRENCY}} and
// {{CLICK_ID}}.
type StorePixel struct {
	StoreID     string `json:"storeId" yaml:"store"`
	URLTemplate string `json:"urlTemplate" yaml:"url"`
}

// Render substitutes conversion fields into the pixel template.
func (p StorePixel) Render(c ConversionEvent) string {
	r := strings.NewReplacer(
		"{{ORDER_ID}}", c.OrderID,
		"{{ORDER_VALUE}}", strconv.FormatFloat(c.OrderValue, 'f', 2, 64),
		"{{COMMISSION}}", strconv.FormatFloat(c.Commission, 'f', 2, 64),
		"{{CURRENCY}}", c.Currency,
		"{{CLICK_ID}}", c.ClickID,
	)
	return r.Replace(p.URLTemplate)
}
