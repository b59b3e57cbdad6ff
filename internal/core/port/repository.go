package port

import (
	"context"
	"time"

	"clickflow/internal/core/domain"
)

// The repositories below are outbound ports. Implementations must be safe
// for concurrent use. Lookups return (nil, nil) when the record does not
// exist; driver failures are wrapped with domain.ErrTransientStore.

// ClickRepository persists click events.
type ClickRepository interface {
	// CreateClick stores a new click event.
	CreateClick(ctx context.Context, click *domain.ClickEvent) error
	// GetClick returns a click by id.
	GetClick(ctx context.Context, clickID string) (*domain.ClickEvent, error)
	// ListClicksByUser returns the user's clicks in [from, to] ordered by
	// click time, ties in insertion order.
	ListClicksByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.ClickEvent, error)
}

// SessionRepository persists click sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *domain.ClickSession) error
	// UpdateSession overwrites activity, click counters and end state. It
	// never touches conversion aggregates.
	UpdateSession(ctx context.Context, s *domain.ClickSession) error
	GetSession(ctx context.Context, sessionID string) (*domain.ClickSession, error)
	// AddSessionConversion atomically increments the conversion aggregates.
	AddSessionConversion(ctx context.Context, sessionID string, revenue, commission float64) error
}

// ConversionRepository persists conversions and their audit trail.
type ConversionRepository interface {
	// CreateConversion inserts c unless a conversion with the same OrderID
	// exists, in which case domain.ErrDuplicate is returned.
	CreateConversion(ctx context.Context, c *domain.ConversionEvent) error
	GetConversion(ctx context.Context, id string) (*domain.ConversionEvent, error)
	GetConversionByOrderID(ctx context.Context, orderID string) (*domain.ConversionEvent, error)
	UpdateConversion(ctx context.Context, c *domain.ConversionEvent) error
	// CountConversionsByUserSince counts the user's conversions created at
	// or after since.
	CountConversionsByUserSince(ctx context.Context, userID string, since time.Time) (int, error)
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// RuleRepository stores conversion rules.
type RuleRepository interface {
	// ListActiveRules returns active rules in ascending priority.
	ListActiveRules(ctx context.Context) ([]domain.ConversionRule, error)
	IncrementRuleUsage(ctx context.Context, ruleID string) error
	UpsertRule(ctx context.Context, rule *domain.ConversionRule) error
}

// AttributionRepository stores attribution records.
type AttributionRepository interface {
	CreateAttribution(ctx context.Context, rec *domain.AttributionRecord) error
	GetAttributionByConversion(ctx context.Context, conversionID string) (*domain.AttributionRecord, error)
}

// FraudRepository stores fraud assessments. Assessments are append-only.
type FraudRepository interface {
	CreateAssessment(ctx context.Context, a *domain.FraudAssessment) error
	// ListAssessments returns assessments of a conversion, oldest first.
	ListAssessments(ctx context.Context, conversionID string) ([]domain.FraudAssessment, error)
}

// Repository groups every persistence port. Both storage adapters implement
// it.
type Repository interface {
	ClickRepository
	SessionRepository
	ConversionRepository
	RuleRepository
	AttributionRepository
	FraudRepository
}
