// Package parallel splits row-indexed work, such as filling kernel matrices,
// across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize splits [0, items) into contiguous ranges, one per CPU core, and
// runs fn on each range concurrently. It returns once every range is done.
func Parallelize(items int, fn func(start, end int)) {
	ParallelizeN(runtime.NumCPU(), items, fn)
}

// ParallelizeN is Parallelize with an explicit worker count. workers <= 0
// means one worker per CPU core.
func ParallelizeN(workers, items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items
	}
	if workers == 1 {
		fn(0, items)
		return
	}

	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially when items <= threshold and
// in parallel otherwise. Small kernel matrices are cheaper to fill inline
// than to hand off to goroutines.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		if items > 0 {
			fn(0, items)
		}
		return
	}
	Parallelize(items, fn)
}
