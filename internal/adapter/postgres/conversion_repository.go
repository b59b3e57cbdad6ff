package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"clickflow/internal/core/domain"
)

const conversionColumns = `id, click_id, user_id, store_id, order_id, order_value, currency,
    commission, commission_rate, products, customer_info, metadata, conversion_type,
    attribution_model, status, status_reason, applied_rules, flagged_for_review,
    review_reasons, converted_at, created_at, updated_at`

// CreateConversion inserts c unless its order id exists, in which case
// domain.ErrDuplicate is returned.
func (r *Repository) CreateConversion(ctx context.Context, c *domain.ConversionEvent) error {
	products, customer, metadata, err := conversionDocs(c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `INSERT INTO conversions (`+conversionColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
ON CONFLICT (order_id) DO NOTHING`,
		c.ID, c.ClickID, c.UserID, c.StoreID, c.OrderID, c.OrderValue, c.Currency,
		c.Commission, c.CommissionRate, products, customer, metadata, c.ConversionType,
		c.AttributionModel, c.Status, c.StatusReason, nonNil(c.AppliedRules), c.FlaggedForReview,
		nonNil(c.ReviewReasons), c.ConvertedAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return storeErr("insert conversion", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// GetConversion returns a conversion by id.
func (r *Repository) GetConversion(ctx context.Context, id string) (*domain.ConversionEvent, error) {
	return r.getConversion(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE id = $1`, id)
}

// GetConversionByOrderID returns the conversion of an order.
func (r *Repository) GetConversionByOrderID(ctx context.Context, orderID string) (*domain.ConversionEvent, error) {
	return r.getConversion(ctx, `SELECT `+conversionColumns+` FROM conversions WHERE order_id = $1`, orderID)
}

func (r *Repository) getConversion(ctx context.Context, query, arg string) (*domain.ConversionEvent, error) {
	c, err := scanConversion(r.pool.QueryRow(ctx, query, arg))
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select conversion", err)
	}
	return &c, nil
}

// UpdateConversion overwrites the mutable fields of a conversion.
func (r *Repository) UpdateConversion(ctx context.Context, c *domain.ConversionEvent) error {
	tag, err := r.pool.Exec(ctx, `UPDATE conversions
SET commission = $2, status = $3, status_reason = $4, flagged_for_review = $5,
    review_reasons = $6, updated_at = $7
WHERE id = $1`,
		c.ID, c.Commission, c.Status, c.StatusReason, c.FlaggedForReview, nonNil(c.ReviewReasons), c.UpdatedAt)
	if err != nil {
		return storeErr("update conversion", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountConversionsByUserSince counts the user's conversions created at or
// after since.
func (r *Repository) CountConversionsByUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM conversions WHERE user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&n)
	if err != nil {
		return 0, storeErr("count conversions", err)
	}
	return n, nil
}

// AppendAudit stores an audit entry.
func (r *Repository) AppendAudit(ctx context.Context, e *domain.AuditEntry) error {
	details, err := jsonb(e.Details, "{}")
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO conversion_audit
(id, conversion_id, action, from_status, to_status, reason, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.ConversionID, e.Action, e.FromStatus, e.ToStatus, e.Reason, details, e.CreatedAt)
	if err != nil {
		return storeErr("insert audit entry", err)
	}
	return nil
}

func conversionDocs(c *domain.ConversionEvent) (products, customer, metadata []byte, err error) {
	if products, err = jsonb(c.Products, "[]"); err != nil {
		return
	}
	if customer, err = jsonb(c.CustomerInfo, "{}"); err != nil {
		return
	}
	metadata, err = jsonb(c.Metadata, "{}")
	return
}

func scanConversion(row pgx.Row) (domain.ConversionEvent, error) {
	var (
		c                           domain.ConversionEvent
		products, customer, metaRaw []byte
	)
	err := row.Scan(&c.ID, &c.ClickID, &c.UserID, &c.StoreID, &c.OrderID, &c.OrderValue, &c.Currency,
		&c.Commission, &c.CommissionRate, &products, &customer, &metaRaw, &c.ConversionType,
		&c.AttributionModel, &c.Status, &c.StatusReason, &c.AppliedRules, &c.FlaggedForReview,
		&c.ReviewReasons, &c.ConvertedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if err = json.Unmarshal(products, &c.Products); err != nil {
		return c, err
	}
	if err = json.Unmarshal(customer, &c.CustomerInfo); err != nil {
		return c, err
	}
	if err = json.Unmarshal(metaRaw, &c.Metadata); err != nil {
		return c, err
	}
	if len(c.Products) == 0 {
		c.Products = nil
	}
	if len(c.CustomerInfo) == 0 {
		c.CustomerInfo = nil
	}
	if len(c.Metadata) == 0 {
		c.Metadata = nil
	}
	if c.AppliedRules == nil {
		c.AppliedRules = []string{}
	}
	c.ConvertedAt = c.ConvertedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
