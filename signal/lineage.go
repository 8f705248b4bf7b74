package signal

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/yaoapp/signals/types"
)

// link is one declared generalization step: child -> parent.
type link struct {
	parent reflect.Type
	upcast func(any) any
}

// registry of declared lineage. Chains are memoized and dropped whenever a
// declaration changes; gen lets signals purge their distance caches.
var lineage = struct {
	mu     sync.RWMutex
	links  map[reflect.Type]link
	chains map[reflect.Type][]reflect.Type
	gen    atomic.Uint64
}{
	links:  map[reflect.Type]link{},
	chains: map[reflect.Type][]reflect.Type{},
}

// Derive declares P as the direct parent of C. upcast converts a C into a
// P when a slot declared on P receives a C; when nil, the value is
// converted with reflect, which requires C to be convertible to P.
//
//	type Celsius float64
//	signal.Derive[Celsius, float64](nil)
//
//	signal.Derive(func(c *Circle) *Shape { return &c.Shape })
func Derive[C, P any](upcast func(C) P) error {
	var up func(any) any
	if upcast != nil {
		up = func(v any) any { return upcast(v.(C)) }
	}
	return Extend(reflect.TypeFor[C](), reflect.TypeFor[P](), up)
}

// Extend is the reflect form of Derive. Declaring a new parent for child
// replaces the previous one.
func Extend(child, parent reflect.Type, upcast func(any) any) error {
	if child == nil || parent == nil {
		return fmt.Errorf("%w: nil type in lineage", ErrInvalidSignature)
	}
	if child.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s is an interface; interfaces are matched by implementation", ErrInvalidSignature, child)
	}
	if upcast == nil {
		if !child.ConvertibleTo(parent) {
			return fmt.Errorf("%w: %s is not convertible to %s, an upcast is required", ErrNotDerived, child, parent)
		}
		upcast = func(v any) any {
			return reflect.ValueOf(v).Convert(parent).Interface()
		}
	}

	lineage.mu.Lock()
	defer lineage.mu.Unlock()

	for t := parent; t != nil; {
		if t == child {
			return fmt.Errorf("%w: %s -> %s", ErrLineageCycle, child, parent)
		}
		next, ok := lineage.links[t]
		if !ok {
			break
		}
		t = next.parent
	}

	lineage.links[child] = link{parent: parent, upcast: upcast}
	clear(lineage.chains)
	lineage.gen.Add(1)
	log.Trace("lineage %s -> %s", child, parent)
	return nil
}

// Parent returns the declared parent of t.
func Parent(t reflect.Type) (reflect.Type, bool) {
	lineage.mu.RLock()
	defer lineage.mu.RUnlock()
	l, ok := lineage.links[t]
	return l.parent, ok
}

// Chain returns the ancestry of t, starting with t itself:
// [t, parent(t), parent(parent(t)), ...]. Interfaces are not part of the
// chain. A nil t is treated as types.Any.
func Chain(t reflect.Type) []reflect.Type {
	t = types.Normalize(t)

	lineage.mu.RLock()
	chain, ok := lineage.chains[t]
	lineage.mu.RUnlock()
	if ok {
		return chain
	}

	lineage.mu.Lock()
	defer lineage.mu.Unlock()
	chain = []reflect.Type{t}
	for cur := t; ; {
		l, ok := lineage.links[cur]
		if !ok {
			break
		}
		chain = append(chain, l.parent)
		cur = l.parent
	}
	lineage.chains[t] = chain
	return chain
}

func lineageGeneration() uint64 {
	return lineage.gen.Load()
}

// depth returns how many generalization steps separate candidate from
// registered, or Incompatible. Interfaces implemented anywhere along the
// chain sit one step above its last element.
func depth(candidate, registered reflect.Type) int {
	chain := Chain(candidate)
	if i := slices.Index(chain, registered); i >= 0 {
		return i
	}
	if registered.Kind() == reflect.Interface {
		for _, t := range chain {
			if t.Implements(registered) {
				return len(chain)
			}
		}
	}
	return Incompatible
}

// Coerce converts v to T: directly when v is a T (or implements it),
// otherwise by walking v's declared lineage. A nil v yields the zero T.
func Coerce[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	to := reflect.TypeFor[T]()
	cur := v
	for {
		lineage.mu.RLock()
		l, ok := lineage.links[reflect.TypeOf(cur)]
		lineage.mu.RUnlock()
		if !ok {
			break
		}
		cur = l.upcast(cur)
		if t, ok := cur.(T); ok {
			return t, nil
		}
	}
	return zero, fmt.Errorf("%w: %T is not derived from %s", ErrNotDerived, v, to)
}
