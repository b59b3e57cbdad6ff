package postgres

import (
	"context"
	"time"

	"clickflow/internal/core/domain"
)

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, s *domain.ClickSession) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO click_sessions
(session_id, user_id, started_at, last_activity_at, ended_at, duration_ms, click_count,
 unique_links_clicked, conversion_count, total_revenue, total_commission, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.SessionID, s.UserID, s.StartedAt, s.LastActivityAt, s.EndedAt, s.Duration.Milliseconds(),
		s.ClickCount, s.UniqueLinksClicked, s.ConversionCount, s.TotalRevenue, s.TotalCommission, s.IsActive)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return storeErr("insert session", err)
	}
	return nil
}

// UpdateSession overwrites activity, click counters and end state. The
// conversion aggregates are left to AddSessionConversion.
func (r *Repository) UpdateSession(ctx context.Context, s *domain.ClickSession) error {
	tag, err := r.pool.Exec(ctx, `UPDATE click_sessions
SET last_activity_at = $2, ended_at = $3, duration_ms = $4, click_count = $5,
    unique_links_clicked = $6, is_active = $7
WHERE session_id = $1`,
		s.SessionID, s.LastActivityAt, s.EndedAt, s.Duration.Milliseconds(),
		s.ClickCount, s.UniqueLinksClicked, s.IsActive)
	if err != nil {
		return storeErr("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSession returns a session by id.
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*domain.ClickSession, error) {
	var (
		s          domain.ClickSession
		durationMS int64
	)
	err := r.pool.QueryRow(ctx, `SELECT session_id, user_id, started_at, last_activity_at, ended_at,
    duration_ms, click_count, unique_links_clicked, conversion_count, total_revenue,
    total_commission, is_active
FROM click_sessions WHERE session_id = $1`, sessionID).
		Scan(&s.SessionID, &s.UserID, &s.StartedAt, &s.LastActivityAt, &s.EndedAt,
			&durationMS, &s.ClickCount, &s.UniqueLinksClicked, &s.ConversionCount, &s.TotalRevenue,
			&s.TotalCommission, &s.IsActive)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select session", err)
	}
	s.Duration = time.Duration(durationMS) * time.Millisecond
	return &s, nil
}

// AddSessionConversion increments the conversion aggregates in place.
func (r *Repository) AddSessionConversion(ctx context.Context, sessionID string, revenue, commission float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE click_sessions
SET conversion_count = conversion_count + 1,
    total_revenue = total_revenue + $2,
    total_commission = total_commission + $3
WHERE session_id = $1`, sessionID, revenue, commission)
	if err != nil {
		return storeErr("add session conversion", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
