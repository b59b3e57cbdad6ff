// Package postgres implements the persistence ports on PostgreSQL through a
// pgxpool. Driver failures are wrapped with domain.ErrTransientStore.
package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clickflow/internal/core/domain"
	"clickflow/internal/core/port"
)

var _ port.Repository = (*Repository)(nil)

// Repository implements port.Repository using pgxpool for PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

// storeErr wraps a driver error so callers can match ErrTransientStore.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransientStore, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// jsonb encodes v for a jsonb column, writing empty for nil.
func jsonb(v any, empty string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return []byte(empty), nil
	}
	return raw, nil
}
