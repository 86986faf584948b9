package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink persists audit entries to a sqlite table so the trail
// survives process restarts. The in-memory Log remains the chain
// authority; the sink is write-through.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSink) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		entry_id      TEXT PRIMARY KEY,
		sequence      INTEGER NOT NULL,
		timestamp     DATETIME NOT NULL,
		entry_type    TEXT NOT NULL,
		command_id    TEXT NOT NULL,
		action        TEXT NOT NULL,
		payload       TEXT NOT NULL,
		payload_hash  TEXT NOT NULL,
		previous_hash TEXT NOT NULL,
		entry_hash    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_command ON audit_entries (command_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteSink) Persist(entry *Entry) error {
	query := `
	INSERT INTO audit_entries (entry_id, sequence, timestamp, entry_type, command_id, action, payload, payload_hash, previous_hash, entry_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(context.Background(), query,
		entry.EntryID, entry.Sequence, entry.Timestamp.Format(time.RFC3339Nano),
		string(entry.EntryType), entry.CommandID, entry.Action,
		string(entry.Payload), entry.PayloadHash, entry.PreviousHash, entry.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// Head returns the sequence and entry hash of the newest persisted
// entry, for resuming the chain after a restart. An empty table yields
// (0, "genesis").
func (s *SQLiteSink) Head(ctx context.Context) (uint64, string, error) {
	query := `SELECT sequence, entry_hash FROM audit_entries ORDER BY sequence DESC LIMIT 1`

	var (
		sequence uint64
		hash     string
	)
	err := s.db.QueryRowContext(ctx, query).Scan(&sequence, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "genesis", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("audit: read chain head: %w", err)
	}
	return sequence, hash, nil
}

// ByCommand loads persisted entries for a command id, oldest first.
func (s *SQLiteSink) ByCommand(ctx context.Context, commandID string) ([]*Entry, error) {
	query := `
	SELECT entry_id, sequence, timestamp, entry_type, command_id, action, payload, payload_hash, previous_hash, entry_hash
	FROM audit_entries
	WHERE command_id = ?
	ORDER BY sequence ASC`

	rows, err := s.db.QueryContext(ctx, query, commandID)
	if err != nil {
		return nil, fmt.Errorf("audit: query by command: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		var (
			entry   Entry
			ts      string
			typ     string
			payload string
		)
		if err := rows.Scan(&entry.EntryID, &entry.Sequence, &ts, &typ, &entry.CommandID,
			&entry.Action, &payload, &entry.PayloadHash, &entry.PreviousHash, &entry.EntryHash); err != nil {
			return nil, err
		}
		entry.EntryType = EntryType(typ)
		entry.Payload = json.RawMessage(payload)
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			entry.Timestamp = parsed
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
