package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickflow/internal/core/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestListClicksByUserOrdersAndFilters(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	add := func(id, user string, at time.Time) {
		require.NoError(t, repo.CreateClick(ctx, &domain.ClickEvent{ClickID: id, UserID: user, ClickedAt: at}))
	}
	add("c3", "u1", t0.Add(2*time.Hour))
	add("c1", "u1", t0)
	add("c2a", "u1", t0.Add(time.Hour))
	add("c2b", "u1", t0.Add(time.Hour))
	add("other", "u2", t0.Add(time.Hour))
	add("late", "u1", t0.Add(5*time.Hour))

	clicks, err := repo.ListClicksByUser(ctx, "u1", t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	ids := make([]string, 0, len(clicks))
	for _, c := range clicks {
		ids = append(ids, c.ClickID)
	}
	assert.Equal(t, []string{"c1", "c2a", "c2b", "c3"}, ids)

	assert.ErrorIs(t, repo.CreateClick(ctx, &domain.ClickEvent{ClickID: "c1"}), domain.ErrDuplicate)
}

func TestRecordsAreCopied(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	click := &domain.ClickEvent{ClickID: "c1", SourceDetails: map[string]string{"k": "v"}}
	require.NoError(t, repo.CreateClick(ctx, click))
	click.SourceDetails["k"] = "changed"

	got, err := repo.GetClick(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "v", got.SourceDetails["k"])

	conv := &domain.ConversionEvent{
		ID:           "x",
		OrderID:      "o1",
		AppliedRules: []string{"r1"},
		CustomerInfo: map[string]any{"email": "a@example.com", "address": map[string]any{"city": "Oslo"}},
		Metadata:     map[string]any{"tags": []any{"vip"}},
	}
	require.NoError(t, repo.CreateConversion(ctx, conv))
	conv.AppliedRules[0] = "changed"
	conv.CustomerInfo["email"] = "changed"
	conv.CustomerInfo["address"].(map[string]any)["city"] = "changed"
	conv.Metadata["tags"].([]any)[0] = "changed"

	stored, err := repo.GetConversion(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, stored.AppliedRules)
	assert.Equal(t, "a@example.com", stored.CustomerInfo["email"])
	assert.Equal(t, map[string]any{"city": "Oslo"}, stored.CustomerInfo["address"])
	assert.Equal(t, []any{"vip"}, stored.Metadata["tags"])

	stored.Metadata["source"] = "caller"
	again, err := repo.GetConversion(ctx, "x")
	require.NoError(t, err)
	assert.NotContains(t, again.Metadata, "source")
}

func TestConversionOrderIDUnique(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	require.NoError(t, repo.CreateConversion(ctx, &domain.ConversionEvent{ID: "a", OrderID: "o1"}))
	assert.ErrorIs(t, repo.CreateConversion(ctx, &domain.ConversionEvent{ID: "b", OrderID: "o1"}), domain.ErrDuplicate)

	byOrder, err := repo.GetConversionByOrderID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "a", byOrder.ID)

	missing, err := repo.GetConversionByOrderID(ctx, "o2")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, repo.UpdateConversion(ctx, &domain.ConversionEvent{ID: "nope"}), domain.ErrNotFound)
}

func TestCountConversionsByUserSince(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	for i, at := range []time.Time{t0.Add(-25 * time.Hour), t0.Add(-time.Hour), t0} {
		require.NoError(t, repo.CreateConversion(ctx, &domain.ConversionEvent{
			ID: string(rune('a' + i)), OrderID: string(rune('a' + i)), UserID: "u1", CreatedAt: at,
		}))
	}
	n, err := repo.CountConversionsByUserSince(ctx, "u1", t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSessionUpdateLeavesConversionAggregates(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	sess := domain.ClickSession{SessionID: "s1", UserID: "u1", StartedAt: t0, LastActivityAt: t0, IsActive: true}
	require.NoError(t, repo.CreateSession(ctx, &sess))
	require.NoError(t, repo.AddSessionConversion(ctx, "s1", 100, 5))

	sess.ClickCount = 3
	sess.End(t0.Add(time.Minute))
	require.NoError(t, repo.UpdateSession(ctx, &sess))

	stored, err := repo.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ClickCount)
	assert.Equal(t, 1, stored.ConversionCount)
	assert.Equal(t, 100.0, stored.TotalRevenue)
	assert.False(t, stored.IsActive)

	assert.ErrorIs(t, repo.AddSessionConversion(ctx, "nope", 1, 1), domain.ErrNotFound)
}

func TestRepositoryHonoursCancelledContext(t *testing.T) {
	repo := NewRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, repo.CreateClick(ctx, &domain.ClickEvent{ClickID: "c1"}), context.Canceled)
	_, err := repo.ListActiveRules(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceCounterCountsDistinctUsers(t *testing.T) {
	c := NewSourceCounter()
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u1"} {
		require.NoError(t, c.RecordClick(ctx, domain.SourceReferral, u))
	}
	stats, err := c.SourceStats(ctx, domain.SourceReferral)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Clicks)
	assert.Equal(t, int64(2), stats.UniqueUsers)

	empty, err := c.SourceStats(ctx, domain.SourceAd)
	require.NoError(t, err)
	assert.Zero(t, empty.Clicks)
}
