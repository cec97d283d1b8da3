package dht11

import (
	"runtime/debug"
	"sync"
)

// The GC percent is process-wide. Overlapping reads on distinct lines share
// one pause: the first reader in disables collection and the last one out
// restores the value saved on entry.
var gcPause struct {
	mu      sync.Mutex
	readers int
	saved   int
}

// pauseGC disables garbage collection until the returned func is called.
// The returned func must be called exactly once.
func pauseGC() (resume func()) {
	gcPause.mu.Lock()
	if gcPause.readers == 0 {
		gcPause.saved = debug.SetGCPercent(-1)
	}
	gcPause.readers++
	gcPause.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			gcPause.mu.Lock()
			defer gcPause.mu.Unlock()
			gcPause.readers--
			if gcPause.readers == 0 {
				debug.SetGCPercent(gcPause.saved)
			}
		})
	}
}
