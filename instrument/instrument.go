// Package instrument wraps functions with three signals: OnCall before the
// function runs, OnError when it fails and OnComplete when it returns.
//
// The first argument of every emission is the wrapped function's name.
//
//	parse, _ := instrument.Wrap1("parse", strconv.Atoi)
//	parse.OnError.Connect(signal.Func2(func(name string, err error) error {
//		...
//	}))
//	n, err := parse.Call("42")
package instrument

import (
	"github.com/yaoapp/signals/logger"
	"github.com/yaoapp/signals/signal"
	"github.com/yaoapp/signals/types"
)

var log = logger.New("instrument")

var (
	tString = types.TypeOf[string]()
	tError  = types.TypeOf[error]()
)

// Signals holds the signals of one wrapped function. A suppressed signal
// is nil.
type Signals struct {
	name       string
	OnCall     *signal.Signal // (name, args...)
	OnError    *signal.Signal // (name, error)
	OnComplete *signal.Signal // (name, result)
}

// Name returns the wrapped function's name.
func (s *Signals) Name() string { return s.name }

func newSignals(name string, params types.Signature, result types.Signature, o *options) (*Signals, error) {
	s := &Signals{name: name}
	var err error

	if o.onCall {
		call := append(types.Sig(tString), params...)
		s.OnCall, err = signal.New([]types.Signature{call}, o.signalOptions(name+".call")...)
		if err != nil {
			return nil, err
		}
	}
	if o.onError {
		s.OnError, err = signal.New([]types.Signature{types.Sig(tString, tError)}, o.signalOptions(name+".error")...)
		if err != nil {
			return nil, err
		}
	}
	if o.onComplete {
		complete := append(types.Sig(tString), result...)
		s.OnComplete, err = signal.New([]types.Signature{complete}, o.signalOptions(name+".complete")...)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Signals) call(args ...any) {
	s.emit(s.OnCall, append([]any{s.name}, args...))
}

func (s *Signals) fail(err error) {
	s.emit(s.OnError, []any{s.name, err})
}

func (s *Signals) complete(results ...any) {
	s.emit(s.OnComplete, append([]any{s.name}, results...))
}

// emit never fails the wrapped call; rejected emissions are logged.
func (s *Signals) emit(sig *signal.Signal, args []any) {
	if sig == nil {
		return
	}
	if err := sig.Emit(args...); err != nil {
		log.Warn("%s: emit failed: %v", sig.Name(), err)
	}
}

// Func0 is a wrapped function without arguments.
type Func0[R any] struct {
	*Signals
	fn func() (R, error)
}

// Wrap0 instruments fn.
func Wrap0[R any](name string, fn func() (R, error), opts ...Option) (*Func0[R], error) {
	s, err := newSignals(name, types.Sig(), types.Sig(types.TypeOf[R]()), newOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Func0[R]{Signals: s, fn: fn}, nil
}

// Call emits OnCall, runs the function, then emits OnError or OnComplete.
// The function's own result and error are returned unchanged.
func (f *Func0[R]) Call() (R, error) {
	f.call()
	r, err := f.fn()
	if err != nil {
		f.fail(err)
		return r, err
	}
	f.complete(r)
	return r, nil
}

// Func1 is a wrapped function of one argument.
type Func1[A, R any] struct {
	*Signals
	fn func(A) (R, error)
}

// Wrap1 instruments fn.
func Wrap1[A, R any](name string, fn func(A) (R, error), opts ...Option) (*Func1[A, R], error) {
	params := types.Sig(types.TypeOf[A]())
	s, err := newSignals(name, params, types.Sig(types.TypeOf[R]()), newOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Func1[A, R]{Signals: s, fn: fn}, nil
}

// Call emits OnCall, runs the function, then emits OnError or OnComplete.
func (f *Func1[A, R]) Call(a A) (R, error) {
	f.call(a)
	r, err := f.fn(a)
	if err != nil {
		f.fail(err)
		return r, err
	}
	f.complete(r)
	return r, nil
}

// Func2 is a wrapped function of two arguments.
type Func2[A, B, R any] struct {
	*Signals
	fn func(A, B) (R, error)
}

// Wrap2 instruments fn.
func Wrap2[A, B, R any](name string, fn func(A, B) (R, error), opts ...Option) (*Func2[A, B, R], error) {
	params := types.Sig(types.TypeOf[A](), types.TypeOf[B]())
	s, err := newSignals(name, params, types.Sig(types.TypeOf[R]()), newOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Func2[A, B, R]{Signals: s, fn: fn}, nil
}

// Call emits OnCall, runs the function, then emits OnError or OnComplete.
func (f *Func2[A, B, R]) Call(a A, b B) (R, error) {
	f.call(a, b)
	r, err := f.fn(a, b)
	if err != nil {
		f.fail(err)
		return r, err
	}
	f.complete(r)
	return r, nil
}
