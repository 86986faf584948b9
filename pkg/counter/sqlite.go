package counter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore issues counters from a per-scope row using an atomic
// upsert with RETURNING, so the read-modify-write is a single statement.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS command_counters (
		scope TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Next(ctx context.Context, scope string) (uint64, error) {
	query := `
	INSERT INTO command_counters (scope, value) VALUES (?, 1)
	ON CONFLICT(scope) DO UPDATE SET value = value + 1
	RETURNING value`

	var value uint64
	if err := s.db.QueryRowContext(ctx, query, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("counter: next for scope %q: %w", scope, err)
	}
	return value, nil
}

// SQLiteUsedSet marks counters used via a primary-key insert. The
// unique constraint makes insert-if-absent atomic: the loser of a race
// gets a constraint violation, never a double mark.
type SQLiteUsedSet struct {
	db *sql.DB
}

func NewSQLiteUsedSet(db *sql.DB) (*SQLiteUsedSet, error) {
	s := &SQLiteUsedSet{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteUsedSet) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS used_counters (
		cmd_counter INTEGER PRIMARY KEY
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteUsedSet) MarkUsed(ctx context.Context, value uint64) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO used_counters (cmd_counter) VALUES (?)`, value)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("counter: mark used %d: %w", value, err)
	}
	return true, nil
}

func (s *SQLiteUsedSet) Contains(ctx context.Context, value uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM used_counters WHERE cmd_counter = ?`, value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("counter: contains %d: %w", value, err)
	}
	return true, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_PRIMARYKEY (1555)
	// and SQLITE_CONSTRAINT_UNIQUE (2067) in the error text.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "(1555)") ||
		strings.Contains(msg, "(2067)")
}
