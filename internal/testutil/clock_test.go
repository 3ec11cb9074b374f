package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickClock_NextAndReset(t *testing.T) {
	clock := NewTickClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestTickClock_ThreadSafe(t *testing.T) {
	clock := NewTickClock()
	const workers = 50
	const calls = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := clock.Next()
				mu.Lock()
				assert.False(t, seen[v], "duplicate tick %d", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Current())
}

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("fx")
	assert.Equal(t, "fx-1", ids.Generate())
	assert.Equal(t, "fx-2", ids.Generate())

	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}
