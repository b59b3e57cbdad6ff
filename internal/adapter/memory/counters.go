package memory

import (
	"context"
	"sync"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.SourceCounter = (*SourceCounter)(nil)

// SourceCounter counts clicks and distinct users per traffic source.
type SourceCounter struct {
	mu     sync.Mutex
	clicks map[domain.TrafficSource]int64
	users  map[domain.TrafficSource]map[string]struct{}
}

// NewSourceCounter returns empty counters.
func NewSourceCounter() *SourceCounter {
	return &SourceCounter{
		clicks: make(map[domain.TrafficSource]int64),
		users:  make(map[domain.TrafficSource]map[string]struct{}),
	}
}

// RecordClick counts one click of userID from source.
func (c *SourceCounter) RecordClick(_ context.Context, source domain.TrafficSource, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clicks[source]++
	set, ok := c.users[source]
	if !ok {
		set = make(map[string]struct{})
		c.users[source] = set
	}
	set[userID] = struct{}{}
	return nil
}

// SourceStats returns the counters of source.
func (c *SourceCounter) SourceStats(_ context.Context, source domain.TrafficSource) (port.SourceStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return port.SourceStats{
		Source:      source,
		Clicks:      c.clicks[source],
		UniqueUsers: int64(len(c.users[source])),
	}, nil
}
