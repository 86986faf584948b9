package counter

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "counters.db"))
	require.NoError(t, err)
	// Serialize access through one connection; the atomicity guarantee
	// lives in the single-statement upsert, not in the pool.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteStore_MonotonicAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "counters.db")
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)

	v1, err := store.Next(ctx, "gate")
	require.NoError(t, err)
	v2, err := store.Next(ctx, "gate")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopen: sequence continues, never restarts.
	db, err = sql.Open("sqlite", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err = NewSQLiteStore(db)
	require.NoError(t, err)

	v3, err := store.Next(ctx, "gate")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(2), v2)
	assert.Equal(t, uint64(3), v3)
}

func TestSQLiteUsedSet_InsertIfAbsent(t *testing.T) {
	db := openTestDB(t)
	set, err := NewSQLiteUsedSet(db)
	require.NoError(t, err)
	ctx := context.Background()

	won, err := set.MarkUsed(ctx, 9)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = set.MarkUsed(ctx, 9)
	require.NoError(t, err)
	assert.False(t, won, "second mark of the same counter must lose")

	has, err := set.Contains(ctx, 9)
	require.NoError(t, err)
	assert.True(t, has)
}
