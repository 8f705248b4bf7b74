package types

// Slot receives emissions whose runtime signature is compatible with its
// declared Signature.
//
// Invoke is called on a dispatch worker goroutine with the emitted
// arguments, in emission order. args is shared by every slot of one
// emission and must not be modified. A returned error or a panic is
// reported as a Failure; it never reaches the emitter.
type Slot interface {
	Signature() Signature
	Invoke(args []any) error
}

// Reporter receives the structured record of every failed task.
//
// Report is called on the worker goroutine that ran the task, so it must
// not block for long.
type Reporter interface {
	Report(f *Failure)
}
