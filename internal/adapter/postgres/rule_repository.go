package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"clickflow/internal/core/domain"
)

// ListActiveRules returns active rules by ascending priority, ties by id.
func (r *Repository) ListActiveRules(ctx context.Context) ([]domain.ConversionRule, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, conditions, actions, priority, is_active,
    usage_count, created_at, updated_at
FROM conversion_rules WHERE is_active ORDER BY priority, id`)
	if err != nil {
		return nil, storeErr("select rules", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ConversionRule, error) {
		var (
			rule                domain.ConversionRule
			conditions, actions []byte
		)
		if err := row.Scan(&rule.ID, &rule.Name, &conditions, &actions, &rule.Priority, &rule.IsActive,
			&rule.UsageCount, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return rule, err
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return rule, err
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return rule, err
		}
		return rule, nil
	})
	if err != nil {
		return nil, storeErr("scan rules", err)
	}
	return out, nil
}

// IncrementRuleUsage bumps the usage counter of a rule.
func (r *Repository) IncrementRuleUsage(ctx context.Context, ruleID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE conversion_rules SET usage_count = usage_count + 1 WHERE id = $1`, ruleID)
	if err != nil {
		return storeErr("increment rule usage", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertRule creates or replaces a rule, keeping its usage counter.
func (r *Repository) UpsertRule(ctx context.Context, rule *domain.ConversionRule) error {
	conditions, err := jsonb(rule.Conditions, "[]")
	if err != nil {
		return err
	}
	actions, err := jsonb(rule.Actions, "[]")
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO conversion_rules
(id, name, conditions, actions, priority, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,now(),now())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name, conditions = EXCLUDED.conditions, actions = EXCLUDED.actions,
    priority = EXCLUDED.priority, is_active = EXCLUDED.is_active, updated_at = now()`,
		rule.ID, rule.Name, conditions, actions, rule.Priority, rule.IsActive)
	if err != nil {
		return storeErr("upsert rule", err)
	}
	return nil
}
