// Package counter provides the anti-replay identity of the gate: a
// strictly increasing command counter and a used-counter set with an
// atomic insert-if-absent primitive.
//
// The counter sequence is the only serialization point in the
// authorizer; the used set is the executor's replay gate. Both must be
// exclusive and atomic per operation, and the persistent backends keep
// correctness across process restarts and multiple instances.
package counter

import (
	"context"
	"sync"
)

// Store issues the next value of a strictly increasing sequence per
// scope. No two callers ever receive the same value, even concurrently.
type Store interface {
	Next(ctx context.Context, scope string) (uint64, error)
}

// UsedSet records consumed counters. MarkUsed is atomic
// insert-if-absent: exactly one concurrent caller for a given value
// receives true; everyone else receives false.
type UsedSet interface {
	MarkUsed(ctx context.Context, value uint64) (bool, error)
	Contains(ctx context.Context, value uint64) (bool, error)
}

// MemoryStore is a process-local counter store.
type MemoryStore struct {
	mu     sync.Mutex
	scopes map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[string]uint64)}
}

func (s *MemoryStore) Next(ctx context.Context, scope string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[scope]++
	return s.scopes[scope], nil
}

// MemoryUsedSet is a process-local used-counter set.
type MemoryUsedSet struct {
	mu   sync.Mutex
	used map[uint64]struct{}
}

func NewMemoryUsedSet() *MemoryUsedSet {
	return &MemoryUsedSet{used: make(map[uint64]struct{})}
}

func (s *MemoryUsedSet) MarkUsed(ctx context.Context, value uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.used[value]; exists {
		return false, nil
	}
	s.used[value] = struct{}{}
	return true, nil
}

func (s *MemoryUsedSet) Contains(ctx context.Context, value uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.used[value]
	return exists, nil
}
