package counter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Monotonic(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var prev uint64
	for i := 0; i < 100; i++ {
		v, err := store.Next(ctx, "gate")
		require.NoError(t, err)
		require.Greater(t, v, prev)
		prev = v
	}
}

func TestMemoryStore_ScopesAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.Next(ctx, "a")
	require.NoError(t, err)
	b, err := store.Next(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, uint64(1), a)
	assert.Equal(t, uint64(1), b)
}

func TestMemoryStore_ConcurrentUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const workers = 64
	const perWorker = 50

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v, err := store.Next(ctx, "gate")
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if _, dup := seen[v]; dup {
					t.Errorf("duplicate counter %d", v)
				}
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestMemoryUsedSet_SingleWinner(t *testing.T) {
	set := NewMemoryUsedSet()
	ctx := context.Background()

	won, err := set.MarkUsed(ctx, 42)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = set.MarkUsed(ctx, 42)
	require.NoError(t, err)
	assert.False(t, won)

	has, err := set.Contains(ctx, 42)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = set.Contains(ctx, 43)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemoryUsedSet_ConcurrentSingleWinner(t *testing.T) {
	set := NewMemoryUsedSet()
	ctx := context.Background()

	const callers = 32
	results := make(chan bool, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := set.MarkUsed(ctx, 7)
			if err != nil {
				t.Error(err)
				return
			}
			results <- won
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for won := range results {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one caller may win the mark")
}
