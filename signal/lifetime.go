package signal

import (
	"runtime"
	"weak"

	"github.com/yaoapp/signals/types"
)

// proxyKey identifies a member slot by owner and function. owner holds a
// weak.Pointer, which compares equal for the same object and never keeps
// it alive.
type proxyKey struct {
	owner any
	fn    string
}

// weakProxy is the persistent registry entry of a member slot.
type weakProxy interface {
	types.Slot
	key() proxyKey
	// bind returns a view that holds the owner strongly, or nil when the
	// owner was collected.
	bind() types.Slot
	// watch arranges for release to be called with the proxy key once the
	// owner is unreachable. ok is false when the owner is already gone.
	watch(release func(proxyKey)) (c *runtime.Cleanup, ok bool)
}

// boundView is a live member slot returned by Signal.Slots.
type boundView interface {
	types.Slot
	proxy() weakProxy
}

// methodSlot binds a function to a weakly referenced owner.
type methodSlot[T any] struct {
	owner weak.Pointer[T]
	name  string
	sig   types.Signature
	call  func(owner *T, args []any) error
}

func (m *methodSlot[T]) Signature() types.Signature { return m.sig }

// Invoke calls the function on the owner, or returns ErrOwnerReleased.
func (m *methodSlot[T]) Invoke(args []any) error {
	owner := m.owner.Value()
	if owner == nil {
		return ErrOwnerReleased
	}
	return m.invokeOn(owner, args)
}

func (m *methodSlot[T]) invokeOn(owner *T, args []any) error {
	if len(args) != len(m.sig) {
		return arityError(m.name, len(m.sig), len(args))
	}
	return m.call(owner, args)
}

func (m *methodSlot[T]) String() string { return m.name }

func (m *methodSlot[T]) key() proxyKey {
	return proxyKey{owner: m.owner, fn: m.name}
}

func (m *methodSlot[T]) bind() types.Slot {
	owner := m.owner.Value()
	if owner == nil {
		return nil
	}
	return &boundSlot[T]{owner: owner, m: m}
}

func (m *methodSlot[T]) watch(release func(proxyKey)) (*runtime.Cleanup, bool) {
	owner := m.owner.Value()
	if owner == nil {
		return nil, false
	}
	c := runtime.AddCleanup(owner, release, m.key())
	return &c, true
}

// boundSlot keeps the owner alive until the task that holds it has run.
type boundSlot[T any] struct {
	owner *T
	m     *methodSlot[T]
}

func (b *boundSlot[T]) Signature() types.Signature { return b.m.sig }
func (b *boundSlot[T]) Invoke(args []any) error    { return b.m.invokeOn(b.owner, args) }
func (b *boundSlot[T]) String() string             { return b.m.name }
func (b *boundSlot[T]) proxy() weakProxy           { return b.m }

// Method returns a member slot that calls fn on owner with the raw emitted
// arguments. The Signal holds owner weakly: once owner is unreachable the
// slot is dropped from every Signal it was connected to.
//
// fn should be a method expression such as (*Window).OnResize; the
// registry tells member slots apart by owner and function name. owner
// should not be a tiny pointer-free object, whose collection the runtime
// may batch with unrelated allocations.
func Method[T any](owner *T, sig types.Signature, fn func(owner *T, args []any) error) types.Slot {
	return newMethod(owner, funcName(fn), normalize(sig), fn)
}

// Method0 returns a member slot for emissions without arguments.
func Method0[T any](owner *T, fn func(*T) error) types.Slot {
	return newMethod(owner, funcName(fn), types.Sig(), func(o *T, _ []any) error {
		return fn(o)
	})
}

// Method1 returns a member slot declared on (A).
//
//	sig.Connect(signal.Method1(w, (*Window).OnTitle))
func Method1[T, A any](owner *T, fn func(*T, A) error) types.Slot {
	return newMethod(owner, funcName(fn), types.Sig(types.TypeOf[A]()), func(o *T, args []any) error {
		a, err := Coerce[A](args[0])
		if err != nil {
			return err
		}
		return fn(o, a)
	})
}

// Method2 returns a member slot declared on (A, B).
func Method2[T, A, B any](owner *T, fn func(*T, A, B) error) types.Slot {
	sig := types.Sig(types.TypeOf[A](), types.TypeOf[B]())
	return newMethod(owner, funcName(fn), sig, func(o *T, args []any) error {
		a, err := Coerce[A](args[0])
		if err != nil {
			return err
		}
		b, err := Coerce[B](args[1])
		if err != nil {
			return err
		}
		return fn(o, a, b)
	})
}

// Method3 returns a member slot declared on (A, B, C).
func Method3[T, A, B, C any](owner *T, fn func(*T, A, B, C) error) types.Slot {
	sig := types.Sig(types.TypeOf[A](), types.TypeOf[B](), types.TypeOf[C]())
	return newMethod(owner, funcName(fn), sig, func(o *T, args []any) error {
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
		return fn(o, a, b, c)
	})
}

func newMethod[T any](owner *T, name string, sig types.Signature, call func(*T, []any) error) *methodSlot[T] {
	return &methodSlot[T]{
		owner: weak.Make(owner),
		name:  name,
		sig:   sig,
		call:  call,
	}
}

// releaser returns the cleanup run when a member slot owner dies. It
// references the signal weakly so registrations never keep it alive.
func (s *Signal) releaser() func(proxyKey) {
	self := s.self
	return func(k proxyKey) {
		if sig := self.Value(); sig != nil {
			sig.release(k)
		}
	}
}

// release drops the proxy of a collected owner.
func (s *Signal) release(k proxyKey) {
	s.mu.Lock()
	removed := s.removeLocked(k, false)
	s.mu.Unlock()

	if removed {
		s.cache.Purge()
		log.Debug("%s: released member slot %s", s.name, k.fn)
	}
}
