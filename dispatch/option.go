package dispatch

import (
	"github.com/yaoapp/signals/config"
	"github.com/yaoapp/signals/types"
)

// Option configures a Hub.
type Option func(*options)

type options struct {
	maxWorkers int
	queueLimit int
	prefix     string
	reporter   types.Reporter
}

// defaultOptions seeds hub options from the process configuration.
func defaultOptions() *options {
	o := &options{
		maxWorkers: config.Conf.Workers,
		queueLimit: config.Conf.QueueLimit,
		prefix:     types.DefaultWorkerPrefix,
	}
	if o.maxWorkers < 1 {
		o.maxWorkers = types.DefaultWorkers
	}
	if o.queueLimit < 0 {
		o.queueLimit = 0
	}
	return o
}

// MaxWorkers caps the number of worker goroutines. Default is 10.
// Workers are started lazily and never shrink.
func MaxWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// QueueLimit bounds the number of queued tasks. When the queue is full,
// Submit returns ErrQueueFull immediately. Default is 0 (unbounded).
func QueueLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.queueLimit = n
		}
	}
}

// WorkerPrefix sets the name prefix of worker goroutines as reported in
// failure records. Default is "SignalProcessor".
func WorkerPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithReporter adds a Reporter that receives every failure record, after
// the log line and before subscribers.
func WithReporter(r types.Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

// ReporterFunc adapts a function to types.Reporter.
type ReporterFunc func(*types.Failure)

// Report calls fn(f).
func (fn ReporterFunc) Report(f *types.Failure) { fn(f) }

// SubscribeOption configures a failure subscription.
type SubscribeOption func(*subEntry)

// Filter restricts a subscription to failures accepted by fn.
func Filter(fn func(*types.Failure) bool) SubscribeOption {
	return func(e *subEntry) {
		e.filter = fn
	}
}

// FromSignal restricts a subscription to failures of tasks emitted by the
// named signal.
func FromSignal(name string) SubscribeOption {
	return Filter(func(f *types.Failure) bool {
		return f.Signal == name
	})
}
