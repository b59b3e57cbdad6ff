package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
	"clickflow/internal/core/session"
	"clickflow/internal/metrics"
	"clickflow/internal/pkg/ids"
)

var _ port.ClickUseCase = (*ClickUseCase)(nil)

// ClickUseCase records outbound clicks and keeps the user's click session
// current. Every step touching a user's session runs under that user's lock
// from the session store, which the timeout sweeper shares.
type ClickUseCase struct {
	clicks       port.ClickRepository
	sessions     port.SessionRepository
	counters     port.SourceCounter
	store        *session.Store
	logger       *slog.Logger
	storeTimeout time.Duration
	now          func() time.Time
}

// NewClickUseCase wires the click tracker. storeTimeout bounds each
// repository call.
func NewClickUseCase(clicks port.ClickRepository, sessions port.SessionRepository, counters port.SourceCounter, store *session.Store, logger *slog.Logger, storeTimeout time.Duration) *ClickUseCase {
	return &ClickUseCase{
		clicks:       clicks,
		sessions:     sessions,
		counters:     counters,
		store:        store,
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// TrackClick records a click. A missing or timed-out session is replaced
// with a new one before the click is stored. Failures to open the session
// or store the click are returned. Once the click is stored, session
// counter and source counter failures are only logged.
func (u *ClickUseCase) TrackClick(ctx context.Context, in port.TrackClickInput) (*domain.ClickEvent, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.StoreID = strings.TrimSpace(in.StoreID)
	in.DestinationURL = strings.TrimSpace(in.DestinationURL)
	if in.Source == "" {
		in.Source = domain.SourceDirect
	}
	if in.UserID == "" || in.StoreID == "" || in.DestinationURL == "" {
		return nil, fmt.Errorf("%w: userId, storeId and destinationUrl are required", domain.ErrValidation)
	}
	if !in.Source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", domain.ErrValidation, in.Source)
	}
	if in.OriginalURL == "" {
		in.OriginalURL = in.DestinationURL
	}

	unlock := u.store.Lock(in.UserID)
	defer unlock()

	now := u.now().UTC()
	sess, err := u.resolveSession(ctx, in.UserID, now)
	if err != nil {
		return nil, err
	}

	click := &domain.ClickEvent{
		ClickID:        ids.NewClickID(now),
		UserID:         in.UserID,
		SessionID:      sess.SessionID,
		StoreID:        in.StoreID,
		Source:         in.Source,
		SourceDetails:  in.SourceDetails,
		OriginalURL:    in.OriginalURL,
		DestinationURL: in.DestinationURL,
		UserAgent:      in.UserAgent,
		IPAddress:      in.IPAddress,
		Country:        strings.ToUpper(strings.TrimSpace(in.Country)),
		DeviceType:     in.DeviceType,
		ClickedAt:      now,
	}
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		return u.clicks.CreateClick(ctx, click)
	}); err != nil {
		return nil, fmt.Errorf("store click: %w", err)
	}

	// the click is recorded; a failed session write is repaired by the next
	// one, which carries absolute counters
	updated, ok := u.store.RecordClick(in.UserID, in.DestinationURL, now)
	if ok {
		if err = u.withTimeout(ctx, func(ctx context.Context) error {
			return u.sessions.UpdateSession(ctx, &updated)
		}); err != nil {
			u.logger.Warn("session counters not persisted",
				slog.String("session_id", updated.SessionID),
				slog.String("click_id", click.ClickID),
				slog.Any("error", err))
		}
	}

	metrics.ClicksTracked.WithLabelValues(string(click.Source)).Inc()
	if err = u.withTimeout(ctx, func(ctx context.Context) error {
		return u.counters.RecordClick(ctx, click.Source, click.UserID)
	}); err != nil {
		u.logger.Warn("source counters not updated",
			slog.String("source", string(click.Source)),
			slog.String("click_id", click.ClickID),
			slog.Any("error", err))
	}
	return click, nil
}

// resolveSession returns the user's active session, opening a new one when
// none is indexed or the indexed one timed out. The caller holds the user's
// lock.
func (u *ClickUseCase) resolveSession(ctx context.Context, userID string, now time.Time) (domain.ClickSession, error) {
	if sess, ok := u.store.Active(userID); ok {
		if !sess.Expired(now, u.store.Timeout()) {
			return sess, nil
		}
		err := u.withTimeout(ctx, func(ctx context.Context) error {
			_, err := u.store.Close(ctx, u.sessions, userID, now)
			return err
		})
		if err != nil {
			return domain.ClickSession{}, err
		}
		metrics.SessionsEnded.WithLabelValues("timeout").Inc()
	}

	sess := domain.ClickSession{
		SessionID:      ids.NewSessionID(userID),
		UserID:         userID,
		StartedAt:      now,
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := u.withTimeout(ctx, func(ctx context.Context) error {
		return u.sessions.CreateSession(ctx, &sess)
	}); err != nil {
		return domain.ClickSession{}, fmt.Errorf("store session: %w", err)
	}
	u.store.Put(sess)
	return sess, nil
}

// EndSession closes the user's active session, if any.
func (u *ClickUseCase) EndSession(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	unlock := u.store.Lock(userID)
	defer unlock()

	var ended *domain.ClickSession
	err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		ended, err = u.store.Close(ctx, u.sessions, userID, u.now().UTC())
		return err
	})
	if err != nil {
		return err
	}
	if ended != nil {
		metrics.SessionsEnded.WithLabelValues("explicit").Inc()
		u.logger.Debug("session ended",
			slog.String("user_id", userID),
			slog.String("session_id", ended.SessionID),
			slog.Duration("duration", ended.Duration))
	}
	return nil
}

// GetSession returns the user's active session.
func (u *ClickUseCase) GetSession(_ context.Context, userID string) (*domain.ClickSession, error) {
	sess, ok := u.store.Active(strings.TrimSpace(userID))
	if !ok || sess.Expired(u.now(), u.store.Timeout()) {
		return nil, fmt.Errorf("%w: no active session for user %s", domain.ErrNotFound, userID)
	}
	return &sess, nil
}

// SourceStats returns traffic counters of source.
func (u *ClickUseCase) SourceStats(ctx context.Context, source domain.TrafficSource) (port.SourceStats, error) {
	if !source.Valid() {
		return port.SourceStats{}, fmt.Errorf("%w: unknown source %q", domain.ErrValidation, source)
	}
	var stats port.SourceStats
	err := u.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		stats, err = u.counters.SourceStats(ctx, source)
		return err
	})
	return stats, err
}

func (u *ClickUseCase) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, u.storeTimeout)
	defer cancel()
	return fn(ctx)
}
