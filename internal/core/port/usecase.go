package port

import (
	"context"

	"clickflow/internal/core/domain"
)

// ClickUseCase is the inbound port of the click tracker.
type ClickUseCase interface {
	// TrackClick records an outbound click, resolving or opening the user's
	// session. Persistence failures are returned to the caller.
	TrackClick(ctx context.Context, in TrackClickInput) (*domain.ClickEvent, error)
	// EndSession closes the user's active session. It is a no-op when the
	// user has none.
	EndSession(ctx context.Context, userID string) error
	// GetSession returns the user's active session or domain.ErrNotFound.
	GetSession(ctx context.Context, userID string) (*domain.ClickSession, error)
	// SourceStats returns traffic counters for a source.
	SourceStats(ctx context.Context, source domain.TrafficSource) (SourceStats, error)
}

// ConversionUseCase is the inbound port of the conversion processor.
type ConversionUseCase interface {
	// HandleConversionWebhook reconciles a merchant conversion against its
	// click. Replays of a known orderId return the stored conversion with
	// Created set to false.
	HandleConversionWebhook(ctx context.Context, payload domain.ConversionPayload) (*ConversionResult, error)
	GetConversion(ctx context.Context, id string) (*domain.ConversionEvent, error)
	ConfirmConversion(ctx context.Context, id string) (*domain.ConversionEvent, error)
	CancelConversion(ctx context.Context, id, reason string) (*domain.ConversionEvent, error)
	// RefundConversion refunds fully when percent is nil and partially
	// otherwise.
	RefundConversion(ctx context.Context, id string, percent *float64) (*domain.ConversionEvent, error)
	// ReevaluateFraud scores the conversion again and appends a new
	// assessment.
	ReevaluateFraud(ctx context.Context, id string) (*domain.FraudAssessment, error)
	GetAttribution(ctx context.Context, conversionID string) (*domain.AttributionRecord, error)
}

// TrackClickInput carries the fields of a click to record.
type TrackClickInput struct {
	UserID         string
	StoreID        string
	OriginalURL    string
	DestinationURL string
	Source         domain.TrafficSource
	SourceDetails  map[string]string
	UserAgent      string
	IPAddress      string
	Country        string
	DeviceType     string
}

// ConversionResult is the outcome of a conversion webhook.
type ConversionResult struct {
	Conversion  *domain.ConversionEvent   `json:"conversion"`
	Created     bool                      `json:"created"`
	Assessment  *domain.FraudAssessment   `json:"fraudAssessment,omitempty"`
	Attribution *domain.AttributionRecord `json:"attribution,omitempty"`
}
