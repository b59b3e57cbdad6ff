package port

import (
	"context"

	"clickflow/internal/core/domain"
)

// Notifier hands trigger events to the external delivery system. Callers
// treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, event domain.TriggerEvent) error
}

// SourceCounter keeps best-effort traffic counters per source.
type SourceCounter interface {
	// RecordClick counts one click and registers userID as a visitor of
	// source.
	RecordClick(ctx context.Context, source domain.TrafficSource, userID string) error
	// SourceStats returns the counters for one source.
	SourceStats(ctx context.Context, source domain.TrafficSource) (SourceStats, error)
}

// SourceStats is the aggregate traffic of one source.
type SourceStats struct {
	Source      domain.TrafficSource `json:"source"`
	Clicks      int64                `json:"clicks"`
	UniqueUsers int64                `json:"uniqueUsers"`
}

// PixelRegistry lists the conversion pixels configured for a store.
type PixelRegistry interface {
	PixelsForStore(storeID string) []domain.StorePixel
}
