// Package redis keeps traffic-source counters in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.SourceCounter = (*SourceCounter)(nil)

// SourceCounter counts clicks with INCR and distinct users with a
// HyperLogLog per source.
type SourceCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewSourceCounter returns counters stored under keys starting with prefix.
func NewSourceCounter(client redis.UniversalClient, prefix string) *SourceCounter {
	return &SourceCounter{client: client, prefix: prefix}
}

func (c *SourceCounter) clicksKey(source domain.TrafficSource) string {
	return fmt.Sprintf("%ssource:%s:clicks", c.prefix, source)
}

func (c *SourceCounter) usersKey(source domain.TrafficSource) string {
	return fmt.Sprintf("%ssource:%s:users", c.prefix, source)
}

// RecordClick counts one click and registers userID for source.
func (c *SourceCounter) RecordClick(ctx context.Context, source domain.TrafficSource, userID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.clicksKey(source))
		pipe.PFAdd(ctx, c.usersKey(source), userID)
		return nil
	})
	if err != nil {
		return storeErr("record click for source "+string(source), err)
	}
	return nil
}

// SourceStats reads the counters of source.
func (c *SourceCounter) SourceStats(ctx context.Context, source domain.TrafficSource) (port.SourceStats, error) {
	stats := port.SourceStats{Source: source}
	clicks, err := c.client.Get(ctx, c.clicksKey(source)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return stats, storeErr("read clicks for source "+string(source), err)
	}
	users, err := c.client.PFCount(ctx, c.usersKey(source)).Result()
	if err != nil {
		return stats, storeErr("read users for source "+string(source), err)
	}
	stats.Clicks = clicks
	stats.UniqueUsers = users
	return stats, nil
}

// storeErr marks a Redis failure as transient.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransientStore, err)
}
