package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clickflow/internal/adapter/memory"
	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
	"clickflow/internal/core/port/mocks"
	"clickflow/internal/core/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source for use cases under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type clickFixture struct {
	uc    *ClickUseCase
	repo  *memory.Repository
	store *session.Store
	clock *fakeClock
}

func newClickFixture(t *testing.T) clickFixture {
	t.Helper()
	repo := memory.NewRepository()
	store := session.NewStore(30 * time.Minute)
	clock := newFakeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	uc := NewClickUseCase(repo, repo, memory.NewSourceCounter(), store, discardLogger(), time.Second)
	uc.now = clock.Now
	return clickFixture{uc: uc, repo: repo, store: store, clock: clock}
}

func clickInput(userID, url string) port.TrackClickInput {
	return port.TrackClickInput{
		UserID:         userID,
		StoreID:        "store-1",
		DestinationURL: url,
		Source:         domain.SourceGroup,
		UserAgent:      "Mozilla/5.0",
		IPAddress:      "203.0.113.7",
		Country:        "us",
	}
}

func TestTrackClickOpensAndReusesSession(t *testing.T) {
	f := newClickFixture(t)
	ctx := context.Background()

	first, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/a"))
	require.NoError(t, err)
	assert.Regexp(t, `^click_[0-9a-z]+_[0-9a-f]{16}$`, first.ClickID)
	assert.Equal(t, "US", first.Country)
	assert.Equal(t, first.DestinationURL, first.OriginalURL)

	f.clock.Advance(time.Minute)
	second, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/a"))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	third, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/b"))
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.SessionID, third.SessionID)
	assert.Equal(t, 3, f.repo.ClickCount())

	sess, err := f.uc.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.ClickCount)
	assert.Equal(t, 2, sess.UniqueLinksClicked)
	assert.Equal(t, third.ClickedAt, sess.LastActivityAt)

	stored, err := f.repo.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.ClickCount)
	assert.True(t, stored.IsActive)
}

func TestTrackClickReplacesTimedOutSession(t *testing.T) {
	f := newClickFixture(t)
	ctx := context.Background()

	first, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/a"))
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	second, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/a"))
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)

	old, err := f.repo.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.False(t, old.IsActive)
	require.NotNil(t, old.EndedAt)
	assert.Equal(t, 31*time.Minute, old.Duration)

	sess, err := f.uc.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, sess.SessionID)
	assert.Equal(t, 1, sess.ClickCount)
}

func TestTrackClickValidation(t *testing.T) {
	clicks := mocks.NewMockClickRepository(t)
	repo := memory.NewRepository()
	uc := NewClickUseCase(clicks, repo, memory.NewSourceCounter(), session.NewStore(time.Minute), discardLogger(), time.Second)

	cases := []port.TrackClickInput{
		{StoreID: "s", DestinationURL: "https://x"},
		{UserID: "u", DestinationURL: "https://x"},
		{UserID: "u", StoreID: "s"},
		{UserID: "u", StoreID: "s", DestinationURL: "https://x", Source: "carrier_pigeon"},
	}
	for _, in := range cases {
		_, err := uc.TrackClick(context.Background(), in)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestTrackClickPropagatesClickStoreFailure(t *testing.T) {
	clicks := mocks.NewMockClickRepository(t)
	clicks.EXPECT().
		CreateClick(mock.Anything, mock.AnythingOfType("*domain.ClickEvent")).
		Return(domain.ErrTransientStore)

	uc := NewClickUseCase(clicks, memory.NewRepository(), memory.NewSourceCounter(), session.NewStore(time.Minute), discardLogger(), time.Second)
	_, err := uc.TrackClick(context.Background(), clickInput("u1", "https://x"))
	assert.ErrorIs(t, err, domain.ErrTransientStore)
}

type flakySessions struct {
	*memory.Repository
	failUpdates bool
}

func (r *flakySessions) UpdateSession(ctx context.Context, s *domain.ClickSession) error {
	if r.failUpdates {
		return domain.ErrTransientStore
	}
	return r.Repository.UpdateSession(ctx, s)
}

func TestTrackClickKeepsClickWhenSessionWriteFails(t *testing.T) {
	repo := memory.NewRepository()
	sessions := &flakySessions{Repository: repo, failUpdates: true}
	uc := NewClickUseCase(repo, sessions, memory.NewSourceCounter(), session.NewStore(time.Minute), discardLogger(), time.Second)
	ctx := context.Background()

	first, err := uc.TrackClick(ctx, clickInput("u1", "https://x"))
	require.NoError(t, err)
	assert.Equal(t, 1, repo.ClickCount())

	sessions.failUpdates = false
	_, err = uc.TrackClick(ctx, clickInput("u1", "https://y"))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.ClickCount())

	stored, err := repo.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.ClickCount)
	assert.Equal(t, 2, stored.UniqueLinksClicked)
}

func TestTrackClickIgnoresCounterFailure(t *testing.T) {
	counters := mocks.NewMockSourceCounter(t)
	counters.EXPECT().
		RecordClick(mock.Anything, domain.SourceGroup, "u1").
		Return(errors.New("redis down"))

	repo := memory.NewRepository()
	uc := NewClickUseCase(repo, repo, counters, session.NewStore(time.Minute), discardLogger(), time.Second)
	click, err := uc.TrackClick(context.Background(), clickInput("u1", "https://x"))
	require.NoError(t, err)
	assert.NotEmpty(t, click.ClickID)
	assert.Equal(t, 1, repo.ClickCount())
}

func TestTrackClickConcurrentSameUser(t *testing.T) {
	f := newClickFixture(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	sessions := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := f.uc.TrackClick(ctx, clickInput("u1", "https://shop.example/a"))
			if assert.NoError(t, err) {
				sessions[i] = c.SessionID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range sessions {
		assert.Equal(t, sessions[0], id)
	}
	sess, err := f.uc.GetSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, n, sess.ClickCount)
	assert.Equal(t, 1, sess.UniqueLinksClicked)
	assert.Equal(t, 1, f.store.Len())
}

func TestEndSession(t *testing.T) {
	f := newClickFixture(t)
	ctx := context.Background()

	require.NoError(t, f.uc.EndSession(ctx, "nobody"))

	click, err := f.uc.TrackClick(ctx, clickInput("u1", "https://x"))
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	require.NoError(t, f.uc.EndSession(ctx, "u1"))

	_, err = f.uc.GetSession(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.store.Len())

	stored, err := f.repo.GetSession(ctx, click.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 5*time.Minute, stored.Duration)
	assert.Equal(t, 1, stored.ClickCount)

	assert.ErrorIs(t, f.uc.EndSession(ctx, " "), domain.ErrValidation)
}

func TestSourceStats(t *testing.T) {
	f := newClickFixture(t)
	ctx := context.Background()

	for _, u := range []string{"u1", "u1", "u2"} {
		_, err := f.uc.TrackClick(ctx, clickInput(u, "https://x"))
		require.NoError(t, err)
	}
	stats, err := f.uc.SourceStats(ctx, domain.SourceGroup)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Clicks)
	assert.Equal(t, int64(2), stats.UniqueUsers)

	_, err = f.uc.SourceStats(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
