package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"clickflow/internal/core/domain"
)

// CreateAttribution stores the attribution record of a conversion.
func (r *Repository) CreateAttribution(ctx context.Context, rec *domain.AttributionRecord) error {
	touchpoints, err := jsonb(rec.Touchpoints, "[]")
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO attribution_records
(id, conversion_id, attribution_model, touchpoints, created_at)
VALUES ($1,$2,$3,$4,$5)`,
		rec.ID, rec.ConversionID, rec.AttributionModel, touchpoints, rec.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return storeErr("insert attribution", err)
	}
	return nil
}

// GetAttributionByConversion returns the attribution record of a
// conversion.
func (r *Repository) GetAttributionByConversion(ctx context.Context, conversionID string) (*domain.AttributionRecord, error) {
	var (
		rec domain.AttributionRecord
		raw []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, conversion_id, attribution_model, touchpoints, created_at
FROM attribution_records WHERE conversion_id = $1`, conversionID).
		Scan(&rec.ID, &rec.ConversionID, &rec.AttributionModel, &raw, &rec.CreatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("select attribution", err)
	}
	if err = json.Unmarshal(raw, &rec.Touchpoints); err != nil {
		return nil, storeErr("decode touchpoints", err)
	}
	return &rec, nil
}

// CreateAssessment appends a fraud assessment.
func (r *Repository) CreateAssessment(ctx context.Context, a *domain.FraudAssessment) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO fraud_assessments
(id, conversion_id, risk_score, indicators, is_fraud, policy, evaluated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.ConversionID, a.RiskScore, nonNil(a.Indicators), a.IsFraud, a.Policy, a.EvaluatedAt)
	if err != nil {
		return storeErr("insert assessment", err)
	}
	return nil
}

// ListAssessments returns the assessments of a conversion, oldest first.
func (r *Repository) ListAssessments(ctx context.Context, conversionID string) ([]domain.FraudAssessment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, conversion_id, risk_score, indicators, is_fraud, policy, evaluated_at
FROM fraud_assessments WHERE conversion_id = $1 ORDER BY seq`, conversionID)
	if err != nil {
		return nil, storeErr("select assessments", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.FraudAssessment, error) {
		var a domain.FraudAssessment
		err := row.Scan(&a.ID, &a.ConversionID, &a.RiskScore, &a.Indicators, &a.IsFraud, &a.Policy, &a.EvaluatedAt)
		return a, err
	})
	if err != nil {
		return nil, storeErr("scan assessments", err)
	}
	return out, nil
}
