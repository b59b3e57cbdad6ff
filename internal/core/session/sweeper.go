package session

import (
	"context"
	"log/slog"
	"time"

	"clickflow/internal/core/port"
	"clickflow/internal/metrics"
)

// Sweeper periodically ends sessions that exceeded the inactivity timeout
// and flushes every active session on shutdown.
type Sweeper struct {
	store        *Store
	repo         port.SessionRepository
	logger       *slog.Logger
	interval     time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewSweeper returns a sweeper running every interval. storeTimeout bounds
// each persistence call.
func NewSweeper(store *Store, repo port.SessionRepository, logger *slog.Logger, interval, storeTimeout time.Duration) *Sweeper {
	return &Sweeper{
		store:        store,
		repo:         repo,
		logger:       logger,
		interval:     interval,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Run sweeps until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.Sweep(ctx); n > 0 {
				w.logger.Debug("expired sessions ended", slog.Int("count", n))
			}
		}
	}
}

// Sweep ends every timed-out session and returns how many were ended.
func (w *Sweeper) Sweep(ctx context.Context) int {
	ended := 0
	for _, userID := range w.store.ExpiredUsers(w.now()) {
		if w.endIfExpired(ctx, userID) {
			ended++
		}
	}
	return ended
}

func (w *Sweeper) endIfExpired(ctx context.Context, userID string) bool {
	unlock := w.store.Lock(userID)
	defer unlock()

	now := w.now()
	// a click may have refreshed the session since ExpiredUsers ran
	sess, ok := w.store.Active(userID)
	if !ok || !sess.Expired(now, w.store.Timeout()) {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	defer cancel()
	if _, err := w.store.Close(ctx, w.repo, userID, now); err != nil {
		w.logger.Error("end expired session", slog.String("user_id", userID), slog.Any("error", err))
		return false
	}
	metrics.SessionsEnded.WithLabelValues("timeout").Inc()
	return true
}

// Flush ends every indexed session. It is called once on shutdown, after
// inbound traffic stopped.
func (w *Sweeper) Flush(ctx context.Context) int {
	ended := 0
	for _, userID := range w.store.Users() {
		unlock := w.store.Lock(userID)
		cctx, cancel := context.WithTimeout(ctx, w.storeTimeout)
		sess, err := w.store.Close(cctx, w.repo, userID, w.now())
		cancel()
		unlock()
		if err != nil {
			w.logger.Error("flush session", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		if sess != nil {
			ended++
			metrics.SessionsEnded.WithLabelValues("shutdown").Inc()
		}
	}
	return ended
}
