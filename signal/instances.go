package signal

import (
	"maps"
	"runtime"
	"slices"
	"sync"
	"weak"
)

// instances tracks every live Signal weakly, by creation order.
var instances = struct {
	mu   sync.Mutex
	next uint64
	live map[uint64]weak.Pointer[Signal]
}{
	live: map[uint64]weak.Pointer[Signal]{},
}

func track(s *Signal) {
	instances.mu.Lock()
	instances.next++
	id := instances.next
	instances.live[id] = weak.Make(s)
	instances.mu.Unlock()

	runtime.AddCleanup(s, untrack, id)
}

func untrack(id uint64) {
	instances.mu.Lock()
	delete(instances.live, id)
	instances.mu.Unlock()
}

// Instances returns the live signals in creation order. Signals that are
// no longer referenced disappear once collected.
func Instances() []*Signal {
	instances.mu.Lock()
	defer instances.mu.Unlock()

	var out []*Signal
	for _, id := range slices.Sorted(maps.Keys(instances.live)) {
		if s := instances.live[id].Value(); s != nil {
			out = append(out, s)
		}
	}
	return out
}
