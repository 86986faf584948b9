// Package snapshot stores content-addressed archive snapshots.
//
// A snapshot pins the exact archive the evaluator saw, so an
// evaluation can be reproduced later against the same corpus. Entries
// are immutable once created; the pinned snapshot is the one proposal
// generation stamps into the determinism record.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

var (
	ErrNotFound   = errors.New("snapshot: not found")
	ErrNonePinned = errors.New("snapshot: no snapshot pinned")
)

// Store creates, resolves and pins archive snapshots.
type Store interface {
	Create(ctx context.Context, contributionHashes []string, embeddingModel string, indexingParams map[string]any) (*contracts.ArchiveSnapshot, error)
	Get(ctx context.Context, snapshotID string) (*contracts.ArchiveSnapshot, error)
	Pinned(ctx context.Context) (string, error)
	Pin(ctx context.Context, snapshotID string) error
}

// MemoryStore is an in-memory snapshot store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*contracts.ArchiveSnapshot
	pinned    string
	clock     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*contracts.ArchiveSnapshot),
		clock:     time.Now,
	}
}

// WithClock overrides the clock for testing.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.clock = clock
	return s
}

// ComputeID derives the content address of a snapshot: SHA-256 over the
// sorted contribution hashes plus the embedding/indexing configuration
// and creation time.
func ComputeID(contributionHashes []string, embeddingModel string, indexingParams map[string]any, createdAt time.Time) (string, error) {
	sorted := append([]string(nil), contributionHashes...)
	sort.Strings(sorted)

	return canonicalize.CanonicalHash(map[string]any{
		"contribution_hashes": sorted,
		"embedding_model":     embeddingModel,
		"indexing_params":     indexingParams,
		"created_at":          createdAt.UTC().Format(time.RFC3339Nano),
	})
}

// Create builds a new immutable snapshot and pins it.
func (s *MemoryStore) Create(ctx context.Context, contributionHashes []string, embeddingModel string, indexingParams map[string]any) (*contracts.ArchiveSnapshot, error) {
	if embeddingModel == "" {
		return nil, errors.New("snapshot: embedding model required")
	}

	createdAt := s.clock().UTC()
	id, err := ComputeID(contributionHashes, embeddingModel, indexingParams, createdAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot: compute id: %w", err)
	}

	sorted := append([]string(nil), contributionHashes...)
	sort.Strings(sorted)

	snap := &contracts.ArchiveSnapshot{
		SnapshotID:         id,
		ContributionHashes: sorted,
		EmbeddingModel:     embeddingModel,
		IndexingParams:     indexingParams,
		CreatedAt:          createdAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[id]; !exists {
		s.snapshots[id] = snap
	}
	s.pinned = id
	return s.snapshots[id], nil
}

func (s *MemoryStore) Get(ctx context.Context, snapshotID string) (*contracts.ArchiveSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[snapshotID]
	if !ok {
		return nil, ErrNotFound
	}
	return snap, nil
}

// Pinned returns the snapshot ID proposals are generated against.
func (s *MemoryStore) Pinned(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pinned == "" {
		return "", ErrNonePinned
	}
	return s.pinned, nil
}

// Pin selects an existing snapshot as the evaluation baseline.
func (s *MemoryStore) Pin(ctx context.Context, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[snapshotID]; !ok {
		return ErrNotFound
	}
	s.pinned = snapshotID
	return nil
}
