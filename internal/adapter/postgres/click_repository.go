package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"clickflow/internal/core/domain"
)

const clickColumns = `click_id, user_id, session_id, store_id, source, source_details,
    original_url, destination_url, user_agent, ip_address, country, device_type, clicked_at`

// CreateClick stores a click event.
func (r *Repository) CreateClick(ctx context.Context, c *domain.ClickEvent) error {
	details, err := jsonb(c.SourceDetails, "{}")
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO click_events (`+clickColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ClickID, c.UserID, c.SessionID, c.StoreID, c.Source, details,
		c.OriginalURL, c.DestinationURL, c.UserAgent, c.IPAddress, c.Country, c.DeviceType, c.ClickedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return storeErr("insert click", err)
	}
	return nil
}

// GetClick returns a click by id.
func (r *Repository) GetClick(ctx context.Context, clickID string) (*domain.ClickEvent, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clickColumns+` FROM click_events WHERE click_id = $1`, clickID)
	c, err := scanClick(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select click", err)
	}
	return &c, nil
}

// ListClicksByUser returns the user's clicks within [from, to] ordered by
// click time, ties in insertion order.
func (r *Repository) ListClicksByUser(ctx context.Context, userID string, from, to time.Time) ([]domain.ClickEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clickColumns+` FROM click_events
WHERE user_id = $1 AND clicked_at >= $2 AND clicked_at <= $3
ORDER BY clicked_at, seq`, userID, from, to)
	if err != nil {
		return nil, storeErr("select clicks", err)
	}
	clicks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ClickEvent, error) {
		return scanClick(row)
	})
	if err != nil {
		return nil, storeErr("scan clicks", err)
	}
	return clicks, nil
}

func scanClick(row pgx.Row) (domain.ClickEvent, error) {
	var (
		c       domain.ClickEvent
		details []byte
	)
	err := row.Scan(&c.ClickID, &c.UserID, &c.SessionID, &c.StoreID, &c.Source, &details,
		&c.OriginalURL, &c.DestinationURL, &c.UserAgent, &c.IPAddress, &c.Country, &c.DeviceType, &c.ClickedAt)
	if err != nil {
		return c, err
	}
	if len(details) > 0 {
		if err = json.Unmarshal(details, &c.SourceDetails); err != nil {
			return c, err
		}
		if len(c.SourceDetails) == 0 {
			c.SourceDetails = nil
		}
	}
	c.ClickedAt = c.ClickedAt.UTC()
	return c, nil
}
