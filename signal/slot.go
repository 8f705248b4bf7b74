package signal

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/yaoapp/signals/types"
)

// funcSlot is a free slot: a function with a declared signature. It is
// held strongly by every Signal it is connected to and identified by its
// pointer, so keep the value returned by Func* to Disconnect it later.
type funcSlot struct {
	name string
	sig  types.Signature
	fn   func(args []any) error
}

func (s *funcSlot) Signature() types.Signature { return s.sig }

func (s *funcSlot) Invoke(args []any) error {
	if len(args) != len(s.sig) {
		return arityError(s.name, len(s.sig), len(args))
	}
	return s.fn(args)
}

func (s *funcSlot) String() string { return s.name }

// Func returns a free slot that receives the raw emitted arguments.
// A nil descriptor in sig means types.Any.
func Func(sig types.Signature, fn func(args []any) error) types.Slot {
	return &funcSlot{name: funcName(fn), sig: normalize(sig), fn: fn}
}

// Func0 returns a free slot for emissions without arguments.
func Func0(fn func() error) types.Slot {
	return &funcSlot{
		name: funcName(fn),
		sig:  types.Sig(),
		fn:   func([]any) error { return fn() },
	}
}

// Func1 returns a free slot declared on (A).
func Func1[A any](fn func(A) error) types.Slot {
	return &funcSlot{
		name: funcName(fn),
		sig:  types.Sig(types.TypeOf[A]()),
		fn: func(args []any) error {
			a, err := Coerce[A](args[0])
			if err != nil {
				return err
			}
			return fn(a)
		},
	}
}

// Func2 returns a free slot declared on (A, B).
//
//	s := signal.Func2(func(n int, name string) error { ... })
func Func2[A, B any](fn func(A, B) error) types.Slot {
	return &funcSlot{
		name: funcName(fn),
		sig:  types.Sig(types.TypeOf[A](), types.TypeOf[B]()),
		fn: func(args []any) error {
			a, err := Coerce[A](args[0])
			if err != nil {
				return err
			}
			b, err := Coerce[B](args[1])
			if err != nil {
				return err
			}
			return fn(a, b)
		},
	}
}

// Func3 returns a free slot declared on (A, B, C).
func Func3[A, B, C any](fn func(A, B, C) error) types.Slot {
	return &funcSlot{
		name: funcName(fn),
		sig:  types.Sig(types.TypeOf[A](), types.TypeOf[B](), types.TypeOf[C]()),
		fn: func(args []any) error {
			a, err := Coerce[A](args[0])
			if err != nil {
				return err
			}
			b, err := Coerce[B](args[1])
			if err != nil {
				return err
			}
			c, err := Coerce[C](args[2])
			if err != nil {
				return err
			}
			return fn(a, b, c)
		},
	}
}

// identify returns the registry key of slot and, for member slots, its
// weak proxy.
func identify(slot types.Slot) (key any, proxy weakProxy, err error) {
	if slot == nil {
		return nil, nil, ErrNilSlot
	}
	if v := reflect.ValueOf(slot); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, nil, ErrNilSlot
	}

	switch s := slot.(type) {
	case weakProxy:
		return s.key(), s, nil
	case boundView:
		p := s.proxy()
		return p.key(), p, nil
	}

	if !reflect.TypeOf(slot).Comparable() {
		return nil, nil, fmt.Errorf("%w: %T", ErrSlotNotComparable, slot)
	}
	return slot, nil, nil
}

// SameSlot reports whether a and b denote the same registration: the same
// free slot, or member slots of the same owner and function. Views
// returned by Signal.Slots compare equal to the slot that was connected.
func SameSlot(a, b types.Slot) bool {
	ka, _, err := identify(a)
	if err != nil {
		return false
	}
	kb, _, err := identify(b)
	if err != nil {
		return false
	}
	return ka == kb
}

// slotName describes a slot in errors and logs.
func slotName(slot types.Slot) string {
	if s, ok := slot.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", slot)
}

// funcName returns the qualified name of the function fn points to.
func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<nil>"
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return fmt.Sprintf("func@%#x", v.Pointer())
}

func normalize(sig types.Signature) types.Signature {
	out := make(types.Signature, len(sig))
	for i, t := range sig {
		out[i] = types.Normalize(t)
	}
	return out
}

func arityError(name string, want, got int) error {
	return fmt.Errorf("%w: %s takes %d, got %d", ErrArity, name, want, got)
}
