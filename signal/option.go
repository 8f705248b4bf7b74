package signal

import (
	"github.com/yaoapp/signals/dispatch"
	"github.com/yaoapp/signals/types"
)

// Option configures a Signal.
type Option func(*options)

type options struct {
	name      string
	priority  types.Priority
	hub       *dispatch.Hub
	cacheSize int
}

// WithPriority sets the priority of emitted tasks.
// Default comes from SIGNALS_PRIORITY, NORMAL when unset.
func WithPriority(p types.Priority) Option {
	return func(o *options) {
		o.priority = p
	}
}

// WithHub sends emissions to h instead of the process default hub.
func WithHub(h *dispatch.Hub) Option {
	return func(o *options) {
		o.hub = h
	}
}

// Named sets the name used in logs and failure records.
func Named(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithCacheSize sets the number of distance lookups kept per signal.
// Default is 10.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}
