// Package audit implements the gate's append-only audit trail with
// hash chaining. Every minted authorization and every execution
// attempt lands here, keyed by command_id; the execution entries are
// the sole source of truth for "did this authorization ever run."
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
)

var (
	ErrEntryNotFound = errors.New("audit: entry not found")
	ErrChainBroken   = errors.New("audit: hash chain is broken")
)

// EntryType categorizes audit entries.
type EntryType string

const (
	EntryAuthorizationMinted EntryType = "authorization_minted"
	EntryExecutionResult     EntryType = "execution_result"
)

// Entry is a single immutable record in the audit log.
type Entry struct {
	EntryID      string          `json:"entry_id"`
	Sequence     uint64          `json:"sequence"`
	Timestamp    time.Time       `json:"timestamp"`
	EntryType    EntryType       `json:"entry_type"`
	CommandID    string          `json:"command_id"`
	Action       string          `json:"action"`
	Payload      json.RawMessage `json:"payload"`
	PayloadHash  string          `json:"payload_hash"`
	PreviousHash string          `json:"previous_hash"`
	EntryHash    string          `json:"entry_hash"`
}

// Sink receives entries for durable persistence as they are appended.
type Sink interface {
	Persist(entry *Entry) error
}

// Log is an append-only audit log with hash chaining.
type Log struct {
	mu        sync.RWMutex
	entries   []*Entry
	byCommand map[string][]*Entry
	sequence  uint64
	chainHead string
	origin    string
	sink      Sink
	clock     func() time.Time
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{
		byCommand: make(map[string][]*Entry),
		chainHead: "genesis",
		origin:    "genesis",
		clock:     time.Now,
	}
}

// WithSink attaches a durable persistence sink.
func (l *Log) WithSink(sink Sink) *Log {
	l.sink = sink
	return l
}

// Resume continues a previously persisted chain: new entries link to
// the given head and carry its sequence numbering forward, so a
// restart never forks the durable trail back to genesis.
func (l *Log) Resume(sequence uint64, chainHead string) *Log {
	if chainHead != "" {
		l.sequence = sequence
		l.chainHead = chainHead
		l.origin = chainHead
	}
	return l
}

// WithClock overrides the clock for testing.
func (l *Log) WithClock(clock func() time.Time) *Log {
	l.clock = clock
	return l
}

// Append adds a new entry. The payload is serialized once and hashed;
// the entry hash covers the previous hash, forming the chain.
func (l *Log) Append(entryType EntryType, commandID, action string, payload any) (*Entry, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("audit: serialize payload: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sequence++
	entry := &Entry{
		EntryID:      uuid.New().String(),
		Sequence:     l.sequence,
		Timestamp:    l.clock().UTC(),
		EntryType:    entryType,
		CommandID:    commandID,
		Action:       action,
		Payload:      payloadBytes,
		PayloadHash:  canonicalize.HashBytes(payloadBytes),
		PreviousHash: l.chainHead,
	}

	entryHash, err := computeEntryHash(entry)
	if err != nil {
		l.sequence--
		return nil, err
	}
	entry.EntryHash = entryHash
	l.chainHead = entryHash

	l.entries = append(l.entries, entry)
	l.byCommand[commandID] = append(l.byCommand[commandID], entry)

	if l.sink != nil {
		if err := l.sink.Persist(entry); err != nil {
			return nil, fmt.Errorf("audit: persist entry: %w", err)
		}
	}
	return entry, nil
}

func computeEntryHash(entry *Entry) (string, error) {
	hashable := map[string]any{
		"sequence":      entry.Sequence,
		"timestamp":     entry.Timestamp.Format(time.RFC3339Nano),
		"entry_type":    entry.EntryType,
		"command_id":    entry.CommandID,
		"action":        entry.Action,
		"payload_hash":  entry.PayloadHash,
		"previous_hash": entry.PreviousHash,
	}
	hash, err := canonicalize.CanonicalHash(hashable)
	if err != nil {
		return "", fmt.Errorf("audit: hash entry: %w", err)
	}
	return hash, nil
}

// ByCommand returns all entries recorded for a command id, oldest first.
func (l *Log) ByCommand(commandID string) []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Entry(nil), l.byCommand[commandID]...)
}

// Entries returns every entry, oldest first.
func (l *Log) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*Entry(nil), l.entries...)
}

// Size returns the number of entries.
func (l *Log) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// VerifyChain recomputes every entry hash and checks the chain links.
func (l *Log) VerifyChain() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expectedPrev := l.origin
	for i, entry := range l.entries {
		if entry.PreviousHash != expectedPrev {
			return fmt.Errorf("%w: entry %d has previous_hash %s, expected %s",
				ErrChainBroken, i, entry.PreviousHash, expectedPrev)
		}
		computed, err := computeEntryHash(entry)
		if err != nil {
			return err
		}
		if computed != entry.EntryHash {
			return fmt.Errorf("%w: entry %d hash mismatch", ErrChainBroken, i)
		}
		expectedPrev = entry.EntryHash
	}
	return nil
}
