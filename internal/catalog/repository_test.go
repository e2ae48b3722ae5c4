package catalog

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "23505"})
	require.True(t, isUniqueViolation(dup))

	other := fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "23503"})
	require.False(t, isUniqueViolation(other))
	require.False(t, isUniqueViolation(fmt.Errorf("connection reset")))
}
