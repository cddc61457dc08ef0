package parallel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func coverage(t *testing.T, run func(items int, fn func(start, end int)), items int) {
	t.Helper()
	var mu sync.Mutex
	seen := make([]int, items)
	run(items, func(start, end int) {
		assert.Less(t, start, end)
		mu.Lock()
		defer mu.Unlock()
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	for i, n := range seen {
		assert.Equal(t, 1, n, "index %d", i)
	}
}

func TestParallelizeCoversEveryIndexOnce(t *testing.T) {
	for _, items := range []int{1, 2, 7, 25, 1000} {
		coverage(t, Parallelize, items)
		coverage(t, func(n int, fn func(int, int)) { ParallelizeN(3, n, fn) }, items)
		coverage(t, func(n int, fn func(int, int)) { ParallelizeWithThreshold(n, 10, fn) }, items)
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(int, int) { called = true })
	ParallelizeWithThreshold(0, 5, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(8, 10, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 8, end)
	})
	assert.Equal(t, 1, calls)
}
