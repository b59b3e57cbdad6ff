package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"clickflow/internal/core/domain"
)

func TestSourceCounterMarksOutageTransient(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	c := NewSourceCounter(client, "test:")
	ctx := context.Background()

	err := c.RecordClick(ctx, domain.SourceSearch, "u1")
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.Contains(t, err.Error(), "record click for source search")

	_, err = c.SourceStats(ctx, domain.SourceSearch)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}

func TestSourceCounterKeys(t *testing.T) {
	c := NewSourceCounter(nil, "clickflow:")
	assert.Equal(t, "clickflow:source:group:clicks", c.clicksKey(domain.SourceGroup))
	assert.Equal(t, "clickflow:source:group:users", c.usersKey(domain.SourceGroup))
}
