package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// SQLiteStore persists policy snapshots as whole rows. Current reads
// exactly one row in a single statement, so a read is always snapshot
// consistent even while governance installs a newer version.
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
	CREATE TABLE IF NOT EXISTS policy_states (
		policy_seq   INTEGER PRIMARY KEY,
		mode_id      TEXT NOT NULL,
		kman_hash    TEXT NOT NULL,
		bset_hash    TEXT NOT NULL,
		kman_json    TEXT NOT NULL,
		bset_json    TEXT NOT NULL,
		lease_json   TEXT NOT NULL,
		installed_at DATETIME NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Current returns the highest-sequence policy row.
func (s *SQLiteStore) Current(ctx context.Context) (*contracts.PolicyState, error) {
	query := `
	SELECT policy_seq, mode_id, kman_hash, bset_hash, kman_json, bset_json, lease_json
	FROM policy_states
	ORDER BY policy_seq DESC
	LIMIT 1`

	row := s.db.QueryRowContext(ctx, query)

	var (
		seq                          int64
		modeID, kmanHash, bsetHash   string
		kmanJSON, bsetJSON, leaseRaw string
	)
	if err := row.Scan(&seq, &modeID, &kmanHash, &bsetHash, &kmanJSON, &bsetJSON, &leaseRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoPolicy
		}
		return nil, fmt.Errorf("policy: read current: %w", err)
	}

	state := &contracts.PolicyState{
		PolicySeq: seq,
		ModeID:    modeID,
		KmanHash:  kmanHash,
		BsetHash:  bsetHash,
	}
	if err := json.Unmarshal([]byte(kmanJSON), &state.Kman); err != nil {
		return nil, fmt.Errorf("policy: decode kman: %w", err)
	}
	if err := json.Unmarshal([]byte(bsetJSON), &state.Bset); err != nil {
		return nil, fmt.Errorf("policy: decode bset: %w", err)
	}
	if err := json.Unmarshal([]byte(leaseRaw), &state.Lease); err != nil {
		return nil, fmt.Errorf("policy: decode lease policy: %w", err)
	}
	return state, nil
}

// Install writes a new policy row. The primary key on policy_seq
// rejects duplicate sequences; stale installs fail the guard below.
func (s *SQLiteStore) Install(ctx context.Context, state *contracts.PolicyState) error {
	if state == nil {
		return errors.New("policy: nil state")
	}
	if state.KmanHash == "" || state.BsetHash == "" {
		return errors.New("policy: state not sealed (missing content hashes)")
	}

	current, err := s.Current(ctx)
	if err != nil && !errors.Is(err, ErrNoPolicy) {
		return err
	}
	if current != nil && state.PolicySeq <= current.PolicySeq {
		return fmt.Errorf("%w: have %d, got %d", ErrStaleInstall, current.PolicySeq, state.PolicySeq)
	}

	kmanJSON, err := json.Marshal(state.Kman)
	if err != nil {
		return fmt.Errorf("policy: encode kman: %w", err)
	}
	bsetJSON, err := json.Marshal(state.Bset)
	if err != nil {
		return fmt.Errorf("policy: encode bset: %w", err)
	}
	leaseJSON, err := json.Marshal(state.Lease)
	if err != nil {
		return fmt.Errorf("policy: encode lease policy: %w", err)
	}

	query := `
	INSERT INTO policy_states (policy_seq, mode_id, kman_hash, bset_hash, kman_json, bset_json, lease_json, installed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		state.PolicySeq, state.ModeID, state.KmanHash, state.BsetHash,
		string(kmanJSON), string(bsetJSON), string(leaseJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("policy: insert state: %w", err)
	}
	return nil
}
