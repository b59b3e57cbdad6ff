package notify

import (
	"bytes"
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

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mu     sync.Mutex
	events []domain.TriggerEvent
	done   chan struct{}
	want   int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) Notify(_ context.Context, e domain.TriggerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	if len(c.events) == c.want {
		close(c.done)
	}
	return nil
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
}

func TestDispatcherDeliversQueuedEvents(t *testing.T) {
	c := newCollector(3)
	d := NewDispatcher(c, discardLogger(), Options{Workers: 2})
	runDispatcher(t, d)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: id, Type: domain.TriggerConversionCreated}))
	}
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.events))
	for _, e := range c.events {
		ids = append(ids, e.EventID)
	}
	assert.ElementsMatch(t, []string{"e1", "e2", "e3"}, ids)
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	next := mocks.NewMockNotifier(t)
	delivered := make(chan struct{})
	next.EXPECT().Notify(mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	next.EXPECT().Notify(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, domain.TriggerEvent) error {
			close(delivered)
			return nil
		}).Once()

	d := NewDispatcher(next, discardLogger(), Options{Workers: 1, RetryDelay: 10 * time.Millisecond})
	runDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e1", Type: domain.TriggerPixelFire}))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event not retried")
	}
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	next := mocks.NewMockNotifier(t)
	var calls sync.WaitGroup
	calls.Add(2)
	next.EXPECT().Notify(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, domain.TriggerEvent) error {
			calls.Done()
			return errors.New("broker down")
		}).Times(2)

	d := NewDispatcher(next, discardLogger(), Options{Workers: 1, MaxAttempts: 2, RetryDelay: time.Millisecond})
	runDispatcher(t, d)

	require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e1"}))
	calls.Wait()
	time.Sleep(20 * time.Millisecond)
}

func TestDispatcherRejectsWhenQueueFull(t *testing.T) {
	d := NewDispatcher(NewLogPublisher(discardLogger()), discardLogger(), Options{QueueSize: 1})

	require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e1"}))
	assert.ErrorIs(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e2"}), ErrQueueFull)
}

func TestDispatcherRejectsAfterShutdown(t *testing.T) {
	d := NewDispatcher(NewLogPublisher(discardLogger()), discardLogger(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	assert.ErrorIs(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e1"}), ErrQueueFull)
}

func TestDispatcherReportsJobStoppedByShutdownWhileThrottled(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	c := newCollector(1)
	d := NewDispatcher(c, logger, Options{Workers: 1, RatePerSecond: 0.001})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(stopped)
	}()

	require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e1"}))
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("first event not delivered")
	}
	require.NoError(t, d.Notify(context.Background(), domain.TriggerEvent{EventID: "e2", Type: domain.TriggerPixelFire}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
	assert.Contains(t, logs.String(), "trigger dropped before delivery")
	assert.Contains(t, logs.String(), "event_id=e2")
}
