// Package types holds the vocabulary shared by the dispatch and signal
// packages: priorities, signatures, tasks, slots and failure records.
package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidPriority is returned by LookupPriority for unknown names or
// out-of-range values.
var ErrInvalidPriority = errors.New("types: invalid priority")

// Priority orders tasks in the dispatch queue. Lower values are served first.
type Priority int

// Signal priorities, highest first.
const (
	Immediate Priority = iota + 1
	High
	Moderate
	Normal
	Low
	None
)

var priorityNames = [...]string{"", "IMMEDIATE", "HIGH", "MODERATE", "NORMAL", "LOW", "NONE"}

// String returns the member name, e.g. "NORMAL".
func (p Priority) String() string {
	if p.Valid() {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Valid reports whether p is one of the declared priorities.
func (p Priority) Valid() bool {
	return p >= Immediate && p <= None
}

// Priorities returns every declared priority in ascending order.
func Priorities() []Priority {
	return []Priority{Immediate, High, Moderate, Normal, Low, None}
}

// LookupPriority resolves a priority from a member name (case-insensitive)
// or from any integer-like value.
//
//	LookupPriority("high")  // High
//	LookupPriority(5)       // Low
//	LookupPriority("2")     // High
func LookupPriority(v any) (Priority, error) {
	switch val := v.(type) {
	case Priority:
		if val.Valid() {
			return val, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, int(val))
	case string:
		name := strings.ToUpper(strings.TrimSpace(val))
		for i := 1; i < len(priorityNames); i++ {
			if priorityNames[i] == name {
				return Priority(i), nil
			}
		}
	}

	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPriority, v)
	}
	p := Priority(n)
	if !p.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPriority, n)
	}
	return p, nil
}

// Any is the universal descriptor: the empty interface type, which every
// type implements.
var Any = reflect.TypeFor[any]()

// TypeOf returns the descriptor of T. TypeOf[any]() is Any.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Signature is an ordered, fixed-length sequence of type descriptors.
// A nil descriptor means Any.
type Signature []reflect.Type

// Sig builds a Signature from descriptors.
func Sig(ts ...reflect.Type) Signature {
	return Signature(ts)
}

// Of returns the runtime signature of args: the concrete type of each
// argument, Any for nil.
func Of(args ...any) Signature {
	sig := make(Signature, len(args))
	for i, v := range args {
		if v == nil {
			sig[i] = Any
			continue
		}
		sig[i] = reflect.TypeOf(v)
	}
	return sig
}

// Generic returns the fully generalized signature of the same length.
func (s Signature) Generic() Signature {
	g := make(Signature, len(s))
	for i := range g {
		g[i] = Any
	}
	return g
}

// IsGeneric reports whether every position is Any.
func (s Signature) IsGeneric() bool {
	for _, t := range s {
		if Normalize(t) != Any {
			return false
		}
	}
	return true
}

// Equal reports whether s and o have the same length and descriptors.
func (s Signature) Equal(o Signature) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if Normalize(s[i]) != Normalize(o[i]) {
			return false
		}
	}
	return true
}

// Key returns a string that identifies the signature by descriptor
// identity, suitable as a map or cache key.
func (s Signature) Key() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		t = Normalize(t)
		fmt.Fprintf(&b, "%s@%p", t.String(), t)
	}
	b.WriteByte(')')
	return b.String()
}

// String renders the signature as "(int, string)".
func (s Signature) String() string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = Normalize(t).String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// Normalize maps a nil descriptor to Any.
func Normalize(t reflect.Type) reflect.Type {
	if t == nil {
		return Any
	}
	return t
}

// Similarity is one row of a resolver lookup: a registered signature and
// its distance from the queried one.
type Similarity struct {
	Signature Signature
	Distance  int
}

// Task is one unit of work: a slot invocation with fixed arguments.
type Task struct {
	ID       string   // Auto-generated task ID
	Priority Priority // Copied from the emitting signal
	Target   Slot     // Live slot to invoke
	Args     []any    // Emitted arguments, shared read-only across one emission
	Source   string   // Emitting signal name, for diagnostics only
}

// Default configuration values.
const (
	DefaultWorkers      = 10
	DefaultCacheSize    = 10
	DefaultPriority     = Normal
	DefaultWorkerPrefix = "SignalProcessor"
)
