// Package dispatch runs signal slots asynchronously on a bounded,
// priority-ordered worker pool.
//
// A Hub owns one Pool. Every signal submits to the process default hub
// unless it was built with its own; the default is created on first use
// and discarded by Shutdown.
package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yaoapp/signals/logger"
	"github.com/yaoapp/signals/types"
)

var log = logger.New("dispatch")

var (
	ErrShutdown    = errors.New("dispatch: cannot schedule new tasks after shutdown")
	ErrQueueFull   = errors.New("dispatch: queue is full")
	ErrSlotPanic   = errors.New("dispatch: slot panicked")
	ErrInvalidTask = errors.New("dispatch: task has no target")
)

// Hub is a dispatch context: a worker pool plus the failure subscribers of
// the tasks it runs.
type Hub struct {
	id      string
	pool    *Pool
	subs    *subManager
	created time.Time
}

// NewHub creates a hub. Options override the process configuration.
func NewHub(opts ...Option) *Hub {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	subs := newSubManager()
	h := &Hub{
		id:      uuid.NewString(),
		subs:    subs,
		created: time.Now(),
	}
	h.pool = newPool(o, &reporter{custom: o.reporter, subs: subs})
	log.Debug("hub %s created: max_workers=%d queue_limit=%d", h.id, o.maxWorkers, o.queueLimit)
	return h
}

// ID returns the hub's unique ID.
func (h *Hub) ID() string { return h.id }

// Created returns the creation time.
func (h *Hub) Created() time.Time { return h.created }

// Pool returns the hub's worker pool.
func (h *Hub) Pool() *Pool { return h.pool }

// Submit enqueues a task on the hub's pool.
func (h *Hub) Submit(task *types.Task) (*Handle, error) {
	return h.pool.Submit(task)
}

// Join blocks until every task submitted so far has finished.
func (h *Hub) Join() {
	h.pool.Join()
}

// Shutdown drains the queue, waits for the workers to exit and drops all
// failure subscribers. Later submissions fail with ErrShutdown.
func (h *Hub) Shutdown() {
	h.pool.Shutdown(true)
	h.subs.clear()
	log.Debug("hub %s shut down", h.id)
}

// Closed reports whether Shutdown was called.
func (h *Hub) Closed() bool {
	return h.pool.Stats().Shutdown
}

// Stats returns a snapshot of the pool counters.
func (h *Hub) Stats() Stats {
	return h.pool.Stats()
}

// Subscribe delivers the failure records of this hub to ch. Delivery is
// non-blocking: if ch is full, the record is skipped. Returns the
// subscription ID.
func (h *Hub) Subscribe(ch chan<- *types.Failure, opts ...SubscribeOption) string {
	return h.subs.subscribe(ch, opts...)
}

// Unsubscribe removes a subscription by ID.
func (h *Hub) Unsubscribe(id string) {
	h.subs.unsubscribe(id)
}

// --- Process default hub ---

var (
	mu          sync.Mutex
	current     *Hub
	defaultOpts []Option
)

// Configure sets the options used when the default hub is next created.
// It does not affect a hub that already exists.
func Configure(opts ...Option) {
	mu.Lock()
	defer mu.Unlock()
	defaultOpts = append([]Option(nil), opts...)
}

// GetOrCreate returns the default hub, creating it when absent. opts apply
// on creation only, after the Configure options.
func GetOrCreate(opts ...Option) *Hub {
	mu.Lock()
	defer mu.Unlock()

	if current == nil {
		all := append(append([]Option(nil), defaultOpts...), opts...)
		current = NewHub(all...)
	}
	return current
}

// Current returns the default hub, or nil when none exists.
func Current() *Hub {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Join waits for all tasks of the default hub. It returns immediately when
// no hub exists.
func Join() {
	if h := Current(); h != nil {
		h.Join()
	}
}

// Shutdown drains and stops the default hub, then discards it so that the
// next GetOrCreate builds a fresh one. No-op when no hub exists.
func Shutdown() {
	mu.Lock()
	h := current
	current = nil
	mu.Unlock()

	if h != nil {
		h.Shutdown()
	}
}

// Reset shuts the default hub down and clears the Configure options.
func Reset() {
	Shutdown()
	mu.Lock()
	defaultOpts = nil
	mu.Unlock()
}
