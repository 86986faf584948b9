package counter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore issues counters from a per-scope row. The upsert with
// RETURNING is a single atomic statement, so concurrent callers across
// multiple instances still receive distinct values.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS command_counters (
		scope TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) Next(ctx context.Context, scope string) (uint64, error) {
	query := `
	INSERT INTO command_counters (scope, value) VALUES ($1, 1)
	ON CONFLICT (scope) DO UPDATE SET value = command_counters.value + 1
	RETURNING value`

	var value uint64
	if err := s.db.QueryRowContext(ctx, query, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("counter: next for scope %q: %w", scope, err)
	}
	return value, nil
}

// PostgresUsedSet implements the replay gate with
// INSERT ... ON CONFLICT DO NOTHING: exactly one concurrent caller
// inserts the row, everyone else sees zero rows affected.
type PostgresUsedSet struct {
	db *sql.DB
}

func NewPostgresUsedSet(db *sql.DB) (*PostgresUsedSet, error) {
	s := &PostgresUsedSet{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresUsedSet) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS used_counters (
		cmd_counter BIGINT PRIMARY KEY
	)`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresUsedSet) MarkUsed(ctx context.Context, value uint64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO used_counters (cmd_counter) VALUES ($1) ON CONFLICT DO NOTHING`, value)
	if err != nil {
		return false, fmt.Errorf("counter: mark used %d: %w", value, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counter: rows affected: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresUsedSet) Contains(ctx context.Context, value uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM used_counters WHERE cmd_counter = $1`, value).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("counter: contains %d: %w", value, err)
	}
	return true, nil
}
