package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "unique.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	_, err = s.db.ExecContext(ctx, `CREATE TABLE unique_keys (k TEXT NOT NULL UNIQUE)`)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `INSERT INTO unique_keys (k) VALUES ('a')`)
	require.NoError(t, err)

	_, dupErr := s.db.ExecContext(ctx, `INSERT INTO unique_keys (k) VALUES ('a')`)
	require.Error(t, dupErr)
	assert.True(t, isUniqueViolation(dupErr))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", dupErr)))

	_, nullErr := s.db.ExecContext(ctx, `INSERT INTO unique_keys (k) VALUES (NULL)`)
	require.Error(t, nullErr)
	assert.False(t, isUniqueViolation(nullErr), "NOT NULL is a different constraint")

	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed: fields.name")))
	assert.False(t, isUniqueViolation(nil))
}
