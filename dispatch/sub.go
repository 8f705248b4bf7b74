package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/yaoapp/signals/types"
)

var subIDCounter atomic.Uint64

func nextSubID() string {
	id := subIDCounter.Add(1)
	return fmt.Sprintf("sub-%d", id)
}

// subEntry holds a failure subscriber registration.
type subEntry struct {
	id     string
	filter func(*types.Failure) bool
	ch     chan<- *types.Failure
}

// subManager fans failure records out to subscribers.
type subManager struct {
	mu      sync.RWMutex
	entries map[string]*subEntry // id -> entry
}

func newSubManager() *subManager {
	return &subManager{
		entries: make(map[string]*subEntry),
	}
}

// subscribe adds a subscriber. Returns the subscription ID.
func (sm *subManager) subscribe(ch chan<- *types.Failure, opts ...SubscribeOption) string {
	entry := &subEntry{id: nextSubID(), ch: ch}
	for _, opt := range opts {
		opt(entry)
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entries[entry.id] = entry
	return entry.id
}

func (sm *subManager) unsubscribe(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.entries, id)
}

// notify sends f to all matching subscribers (non-blocking).
func (sm *subManager) notify(f *types.Failure) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, entry := range sm.entries {
		guard("subscriber "+entry.id, f, func() { entry.send(f) })
	}
}

func (e *subEntry) send(f *types.Failure) {
	if e.filter != nil && !e.filter(f) {
		return
	}
	select {
	case e.ch <- f:
	default:
		// Subscriber chan full, skip
	}
}

// clear removes all subscribers. Used during Shutdown.
func (sm *subManager) clear() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.entries = make(map[string]*subEntry)
}
