// Package notify decouples trigger delivery from request handling. The
// Dispatcher queues trigger events and hands them to a publisher from
// background workers, retrying failures out of band.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
	"clickflow/internal/metrics"
)

// ErrQueueFull is returned by Notify when the dispatch queue is saturated.
var ErrQueueFull = errors.New("trigger queue full")

var _ port.Notifier = (*Dispatcher)(nil)

// Options configure a Dispatcher.
type Options struct {
	QueueSize   int
	Workers     int
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
	// RatePerSecond caps publish attempts across workers.
	RatePerSecond float64
}

type job struct {
	event   domain.TriggerEvent
	attempt int
}

// Dispatcher is a non-blocking port.Notifier in front of a publisher.
type Dispatcher struct {
	next    port.Notifier
	logger  *slog.Logger
	opts    Options
	queue   chan job
	limiter *rate.Limiter

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher returns a dispatcher publishing through next.
func NewDispatcher(next port.Notifier, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Dispatcher{
		next:    next,
		logger:  logger,
		opts:    opts,
		queue:   make(chan job, opts.QueueSize),
		limiter: rate.NewLimiter(limit, opts.Workers),
	}
}

// Notify enqueues event without waiting for delivery.
func (d *Dispatcher) Notify(_ context.Context, event domain.TriggerEvent) error {
	return d.enqueue(job{event: event, attempt: 1})
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "dropped").Inc()
		return ErrQueueFull
	}
	select {
	case d.queue <- j:
		metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "queued").Inc()
		return nil
	default:
		metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "dropped").Inc()
		return ErrQueueFull
	}
}

// Run publishes queued events until ctx is cancelled. Events still queued
// at that point are dropped and counted.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.pending.Wait()
	if n := len(d.queue); n > 0 {
		d.logger.Warn("trigger events dropped on shutdown", slog.Int("count", n))
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "dropped").Inc()
				d.logger.Warn("trigger dropped before delivery",
					slog.String("event_id", j.event.EventID),
					slog.String("type", string(j.event.Type)),
					slog.Any("error", err))
				return
			}
			d.publish(ctx, j)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, j job) {
	pctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	err := d.next.Notify(pctx, j.event)
	cancel()
	if err == nil {
		metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "sent").Inc()
		return
	}
	log := d.logger.With(
		slog.String("event_id", j.event.EventID),
		slog.String("type", string(j.event.Type)),
		slog.Int("attempt", j.attempt),
		slog.Any("error", err),
	)
	if j.attempt >= d.opts.MaxAttempts {
		metrics.TriggersPublished.WithLabelValues(string(j.event.Type), "dropped").Inc()
		log.Error("trigger delivery failed, giving up")
		return
	}
	log.Warn("trigger delivery failed, retrying")
	next := job{event: j.event, attempt: j.attempt + 1}
	d.pending.Add(1)
	time.AfterFunc(d.opts.RetryDelay*time.Duration(j.attempt), func() {
		defer d.pending.Done()
		if err := d.enqueue(next); err != nil {
			d.logger.Error("requeue trigger", slog.String("event_id", next.event.EventID), slog.Any("error", err))
		}
	})
}
