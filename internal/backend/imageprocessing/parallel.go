package imageprocessing

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// parallelFor runs fn(y) over rows y in [0, n) using up to GOMAXPROCS workers.
func parallelFor(n int, fn func(y int)) {
	_ = parallelForStop(n, func(y int) bool {
		fn(y)
		return false
	})
}

// parallelForStop runs fn(y) over rows y in [0, n) using up to GOMAXPROCS workers,
// striding rows across workers. Once any call returns true the remaining rows are
// skipped and true is returned.
func parallelForStop(n int, fn func(y int) bool) bool {
	if n <= 0 {
		return false
	}
	workers := min(runtime.GOMAXPROCS(0), n)

	var stop atomic.Bool
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for y := w; y < n && !stop.Load(); y += workers {
				if fn(y) {
					stop.Store(true)
					return
				}
			}
		})
	}

	wg.Wait()
	return stop.Load()
}
