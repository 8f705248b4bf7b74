package instrument

import "github.com/yaoapp/signals/signal"

// Option configures a wrapped function.
type Option func(*options)

type options struct {
	onCall     bool
	onError    bool
	onComplete bool
	signal     []signal.Option
}

func newOptions(opts []Option) *options {
	o := &options{onCall: true, onError: true, onComplete: true}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// signalOptions returns the options of one signal, named after it.
func (o *options) signalOptions(name string) []signal.Option {
	return append([]signal.Option{signal.Named(name)}, o.signal...)
}

// WithoutCall suppresses the OnCall signal.
func WithoutCall() Option {
	return func(o *options) { o.onCall = false }
}

// WithoutError suppresses the OnError signal.
func WithoutError() Option {
	return func(o *options) { o.onError = false }
}

// WithoutComplete suppresses the OnComplete signal.
func WithoutComplete() Option {
	return func(o *options) { o.onComplete = false }
}

// WithSignalOptions applies opts to every signal of the wrapper, e.g.
// signal.WithHub or signal.WithPriority.
func WithSignalOptions(opts ...signal.Option) Option {
	return func(o *options) {
		o.signal = append(o.signal, opts...)
	}
}
