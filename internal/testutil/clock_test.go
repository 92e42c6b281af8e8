package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeline_StartsAtStart(t *testing.T) {
	tl := NewTimeline(1000, 10)
	assert.Equal(t, int64(1010), tl.Current())
	assert.Equal(t, int64(1000), tl.Next())
	assert.Equal(t, int64(1000), tl.Current())
}

func TestTimeline_NextDecreases(t *testing.T) {
	tl := NewTimeline(1000, 5)

	assert.Equal(t, int64(1000), tl.Next())
	assert.Equal(t, int64(995), tl.Next())
	assert.Equal(t, int64(990), tl.Next())
}

func TestTimeline_DefaultStep(t *testing.T) {
	tl := NewTimeline(100, 0)
	tl.Next()
	assert.Equal(t, int64(90), tl.Next())
}

func TestTimeline_Reset(t *testing.T) {
	tl := NewTimeline(500, 10)
	tl.Next()
	tl.Next()

	tl.Reset()
	assert.Equal(t, int64(500), tl.Next())
}

func TestTimeline_ConcurrentUnique(t *testing.T) {
	tl := NewTimeline(1_000_000, 1)

	const workers = 10
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ts := tl.Next()
				mu.Lock()
				seen[ts] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker, "every timestamp should be unique")
}
