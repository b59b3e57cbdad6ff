package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickflow/internal/core/domain"
)

func TestJSONBDefaults(t *testing.T) {
	raw, err := jsonb(map[string]string(nil), "{}")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(raw))

	raw, err = jsonb([]domain.Product(nil), "[]")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	raw, err = jsonb([]domain.Product{{ID: "p1", Price: 9.5, Quantity: 2}}, "[]")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"p1","price":9.5,"quantity":2}]`, string(raw))
}

func TestStoreErrKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := storeErr("insert click", cause)
	assert.ErrorIs(t, err, domain.ErrTransientStore)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert click")
}

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(dup))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(nil))

	assert.True(t, noRows(fmt.Errorf("scan: %w", pgx.ErrNoRows)))
	assert.False(t, noRows(errors.New("other")))
}
