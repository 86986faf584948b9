// Package policy manages versioned, immutable PolicyState snapshots.
//
// The live policy is a single atomically-swappable reference: readers
// always see one complete snapshot, never a partially-updated one.
// Installing a new snapshot must advance policy_seq, which implicitly
// invalidates every authorization minted under the old snapshot.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/bowtae-labs/tsrc/pkg/canonicalize"
	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

var (
	ErrNoPolicy     = errors.New("policy: no policy installed")
	ErrStaleInstall = errors.New("policy: install does not advance policy_seq")
)

// Store provides snapshot-consistent reads of the current policy.
type Store interface {
	// Current returns the live policy snapshot in full.
	Current(ctx context.Context) (*contracts.PolicyState, error)
}

// Installer is the governance-facing mutation surface. Mutation happens
// only here; projector and executor read snapshots and never write.
type Installer interface {
	Install(ctx context.Context, state *contracts.PolicyState) error
}

// Seal computes and fills the kman/bset content hashes of a state.
// Call after constructing or mutating content, before installing.
func Seal(state *contracts.PolicyState) error {
	kmanHash, err := canonicalize.CanonicalHash(state.Kman)
	if err != nil {
		return fmt.Errorf("policy: hash kman: %w", err)
	}
	bsetHash, err := canonicalize.CanonicalHash(state.Bset)
	if err != nil {
		return fmt.Errorf("policy: hash bset: %w", err)
	}
	state.KmanHash = kmanHash
	state.BsetHash = bsetHash
	return nil
}

// MemoryStore holds the current policy behind an atomic pointer.
type MemoryStore struct {
	current atomic.Pointer[contracts.PolicyState]
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Current returns the live snapshot.
func (s *MemoryStore) Current(ctx context.Context) (*contracts.PolicyState, error) {
	state := s.current.Load()
	if state == nil {
		return nil, ErrNoPolicy
	}
	return state, nil
}

// Install atomically swaps in a new snapshot. The new snapshot must
// carry a strictly higher policy_seq than the current one.
func (s *MemoryStore) Install(ctx context.Context, state *contracts.PolicyState) error {
	if state == nil {
		return errors.New("policy: nil state")
	}
	if state.KmanHash == "" || state.BsetHash == "" {
		return errors.New("policy: state not sealed (missing content hashes)")
	}

	for {
		prev := s.current.Load()
		if prev != nil && state.PolicySeq <= prev.PolicySeq {
			return fmt.Errorf("%w: have %d, got %d", ErrStaleInstall, prev.PolicySeq, state.PolicySeq)
		}
		if s.current.CompareAndSwap(prev, state) {
			return nil
		}
	}
}
