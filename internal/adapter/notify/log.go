package notify

import (
	"context"
	"log/slog"

	"clickflow/internal/core/domain"
)

// LogPublisher writes trigger events to the log. It stands in for the
// message broker when none is configured.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher returns a publisher logging through logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Notify logs event.
func (p *LogPublisher) Notify(ctx context.Context, event domain.TriggerEvent) error {
	p.logger.InfoContext(ctx, "trigger event",
		slog.String("event_id", event.EventID),
		slog.String("type", string(event.Type)),
		slog.String("store_id", event.StoreID),
		slog.String("conversion_id", event.ConversionID),
		slog.String("order_id", event.OrderID),
		slog.String("status", string(event.Status)),
		slog.String("url", event.URL),
	)
	return nil
}
