package signal_test

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaoapp/signals/dispatch"
	"github.com/yaoapp/signals/signal"
	"github.com/yaoapp/signals/types"
)

var (
	tInt    = types.TypeOf[int]()
	tString = types.TypeOf[string]()
	tAny    = types.Any

	intString = types.Sig(tInt, tString)
	anyAny    = types.Sig(tAny, tAny)
)

// recorder collects slot invocations.
type recorder struct {
	mu    sync.Mutex
	calls [][]any
}

func (r *recorder) add(args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
}

func (r *recorder) snapshot() [][]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]any(nil), r.calls...)
}

func newHub(t *testing.T, opts ...dispatch.Option) *dispatch.Hub {
	t.Helper()
	h := dispatch.NewHub(opts...)
	t.Cleanup(h.Shutdown)
	return h
}

// hold occupies the only worker of h until release is called.
func hold(t *testing.T, h *dispatch.Hub) (release func()) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	s := signal.MustNew([]types.Signature{types.Sig()}, signal.WithHub(h), signal.WithPriority(types.Immediate))
	require.NoError(t, s.Connect(signal.Func0(func() error {
		close(started)
		<-gate
		return nil
	})))
	require.NoError(t, s.Emit())
	<-started
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func contains(slots []types.Slot, slot types.Slot) bool {
	for _, s := range slots {
		if signal.SameSlot(s, slot) {
			return true
		}
	}
	return false
}

// --- Construction ---

func TestNew_Typedefs(t *testing.T) {
	s, err := signal.New([]types.Signature{intString})
	require.NoError(t, err)
	defs := s.Typedefs()
	require.Len(t, defs, 2)
	assert.True(t, defs[0].Equal(intString))
	assert.True(t, defs[1].Equal(anyAny))

	// Generic forms of equal length share a bucket.
	s = signal.MustNew([]types.Signature{intString, types.Sig(tString, tInt), types.Sig(tInt)})
	assert.Len(t, s.Typedefs(), 5)

	// Already generic signatures add one bucket.
	s = signal.MustNew([]types.Signature{anyAny})
	assert.Len(t, s.Typedefs(), 1)

	// Duplicates share a bucket.
	s = signal.MustNew([]types.Signature{intString, intString})
	assert.Len(t, s.Typedefs(), 2)
}

func TestNew_Errors(t *testing.T) {
	_, err := signal.New([]types.Signature{types.Sig(tInt, nil)})
	assert.True(t, errors.Is(err, signal.ErrInvalidSignature), err)

	_, err = signal.New([]types.Signature{intString}, signal.WithPriority(types.Priority(42)))
	assert.True(t, errors.Is(err, types.ErrInvalidPriority), err)

	assert.Panics(t, func() {
		signal.MustNew([]types.Signature{{nil}})
	})
}

func TestNew_Options(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString}, signal.Named("clicked"), signal.WithPriority(types.High), signal.WithCacheSize(2))
	assert.Equal(t, "clicked", s.Name())
	assert.Equal(t, types.High, s.Priority())

	require.NoError(t, s.SetPriority(types.Low))
	assert.Equal(t, types.Low, s.Priority())
	assert.Error(t, s.SetPriority(0))

	d := signal.MustNew(nil)
	assert.Equal(t, types.Normal, d.Priority())
	assert.NotEmpty(t, d.Name())
}

// --- Connect / Disconnect / Slots ---

func TestConnect_RoutesToClosestBucket(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})

	specific := signal.Func2(func(int, string) error { return nil })
	generic := signal.Func2(func(any, any) error { return nil })
	mixed := signal.Func2(func(int, any) error { return nil })
	require.NoError(t, s.Connect(specific))
	require.NoError(t, s.Connect(generic))
	require.NoError(t, s.Connect(mixed))

	exact := s.SlotsWithin(intString, 0)
	assert.True(t, contains(exact, specific))
	assert.False(t, contains(exact, generic))

	// (int, any) is not generalized by (int, string), so it lands in the
	// generic bucket.
	atGeneric := s.SlotsWithin(anyAny, 0)
	assert.True(t, contains(atGeneric, generic))
	assert.True(t, contains(atGeneric, mixed))

	all := s.Slots(intString)
	assert.Len(t, all, 3)
	assert.True(t, signal.SameSlot(all[0], specific), "bucket order then connect order")
}

func TestConnect_NoMatch(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})
	slot := signal.Func3(func(int, string, string) error { return nil })

	err := s.Connect(slot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, signal.ErrNoCompatibleSignature))

	var nm *signal.NoMatchError
	require.True(t, errors.As(err, &nm))
	assert.Len(t, nm.Signature, 3)
	assert.Contains(t, nm.Error(), "TestConnect_NoMatch")

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Slots(types.Sig(tInt, tString, tString)))
}

func TestConnect_Twice(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})
	slot := signal.Func2(func(int, string) error { return nil })

	require.NoError(t, s.Connect(slot))
	require.NoError(t, s.Connect(slot))
	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.Slots(intString), 1)
}

func TestConnect_InvalidSlots(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})

	assert.True(t, errors.Is(s.Connect(nil), signal.ErrNilSlot))

	var typedNil *valueSlot
	assert.True(t, errors.Is(s.Connect(typedNil), signal.ErrNilSlot))

	err := s.Connect(sliceSlot{})
	assert.True(t, errors.Is(err, signal.ErrSlotNotComparable), err)
}

func TestDisconnect(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})
	a := signal.Func2(func(int, string) error { return nil })
	b := signal.Func2(func(any, any) error { return nil })
	require.NoError(t, s.Connect(a))
	require.NoError(t, s.Connect(b))

	s.Disconnect(a)
	assert.False(t, contains(s.Slots(intString), a))
	assert.True(t, contains(s.Slots(intString), b))

	// Absent and nil slots are a no-op.
	s.Disconnect(a)
	s.Disconnect(nil)
	assert.Equal(t, 1, s.Len())
}

// valueSlot is a user-defined comparable slot.
type valueSlot struct {
	id int
}

func (v *valueSlot) Signature() types.Signature { return intString }
func (v *valueSlot) Invoke(args []any) error    { return nil }

// sliceSlot has a non-comparable dynamic type.
type sliceSlot []int

func (sliceSlot) Signature() types.Signature { return intString }
func (sliceSlot) Invoke(args []any) error    { return nil }

func TestCustomSlot(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString})
	v := &valueSlot{id: 1}
	require.NoError(t, s.Connect(v))
	assert.True(t, contains(s.SlotsWithin(intString, 0), v))

	s.Disconnect(&valueSlot{id: 1})
	assert.Equal(t, 1, s.Len(), "identity, not value equality")
	s.Disconnect(v)
	assert.Equal(t, 0, s.Len())
}

// --- Emit ---

func TestEmit_DeliversOnce(t *testing.T) {
	h := newHub(t)
	s := signal.MustNew([]types.Signature{intString}, signal.WithHub(h))

	rec := &recorder{}
	require.NoError(t, s.Connect(signal.Func2(func(v1 int, v2 string) error {
		rec.add(v1, v2)
		return nil
	})))

	require.NoError(t, s.Emit(6, "Boo"))
	h.Join()

	assert.Equal(t, [][]any{{6, "Boo"}}, rec.snapshot())
}

func TestEmit_ReachesGenericSlots(t *testing.T) {
	h := newHub(t)
	s := signal.MustNew([]types.Signature{intString}, signal.WithHub(h))

	var specific, generic atomic.Int32
	require.NoError(t, s.Connect(signal.Func2(func(int, string) error { specific.Add(1); return nil })))
	require.NoError(t, s.Connect(signal.Func2(func(a, b any) error { generic.Add(1); return nil })))

	require.NoError(t, s.Emit(1, "x"))
	require.NoError(t, s.Emit("x", 1))
	h.Join()

	assert.Equal(t, int32(1), specific.Load())
	assert.Equal(t, int32(2), generic.Load())
}

func TestEmit_NothingToDeliver(t *testing.T) {
	h := newHub(t)
	s := signal.MustNew([]types.Signature{intString}, signal.WithHub(h))

	assert.NoError(t, s.Emit(1, "x"))
	assert.NoError(t, s.Emit(1, 2, 3))
	assert.Equal(t, 0, h.Stats().Workers)
}

func TestEmit_Lineage(t *testing.T) {
	type fahrenheit float64
	require.NoError(t, signal.Derive[fahrenheit, float64](nil))

	h := newHub(t)
	s := signal.MustNew([]types.Signature{types.Sig(types.TypeOf[float64]())}, signal.WithHub(h))

	got := make(chan float64, 1)
	require.NoError(t, s.Connect(signal.Func1(func(v float64) error {
		got <- v
		return nil
	})))

	require.NoError(t, s.Emit(fahrenheit(98.6)))
	h.Join()
	assert.Equal(t, 98.6, <-got)
}

func TestEmit_NilArgument(t *testing.T) {
	h := newHub(t)
	s := signal.MustNew([]types.Signature{types.Sig(tString)}, signal.WithHub(h))

	var typed, generic atomic.Int32
	require.NoError(t, s.Connect(signal.Func1(func(string) error { typed.Add(1); return nil })))
	require.NoError(t, s.Connect(signal.Func1(func(v any) error {
		if v == nil {
			generic.Add(1)
		}
		return nil
	})))

	require.NoError(t, s.Emit(nil))
	h.Join()
	assert.Equal(t, int32(0), typed.Load())
	assert.Equal(t, int32(1), generic.Load())
}

func TestEmit_PriorityOrder(t *testing.T) {
	h := newHub(t, dispatch.MaxWorkers(1))
	release := hold(t, h)

	var mu sync.Mutex
	var order []string
	record := func(name string) types.Slot {
		return signal.Func0(func() error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	low := signal.MustNew([]types.Signature{types.Sig()}, signal.WithHub(h), signal.WithPriority(types.Low))
	high := signal.MustNew([]types.Signature{types.Sig()}, signal.WithHub(h), signal.WithPriority(types.High))
	require.NoError(t, low.Connect(record("low")))
	require.NoError(t, high.Connect(record("high")))

	require.NoError(t, low.Emit())
	require.NoError(t, high.Emit())
	release()
	h.Join()

	assert.Equal(t, []string{"high", "low"}, order)
}

func TestEmit_SlotFailureContained(t *testing.T) {
	h := newHub(t)
	failures := make(chan *types.Failure, 4)
	h.Subscribe(failures)

	s := signal.MustNew([]types.Signature{intString}, signal.WithHub(h), signal.Named("saved"))
	require.NoError(t, s.Connect(signal.Func2(func(int, string) error { return errors.New("disk full") })))
	require.NoError(t, s.Connect(signal.Func2(func(int, string) error { panic("oops") })))

	require.NoError(t, s.Emit(1, "a"))
	h.Join()

	got := map[bool]*types.Failure{}
	for i := 0; i < 2; i++ {
		select {
		case f := <-failures:
			got[f.Panic] = f
		case <-time.After(time.Second):
			t.Fatal("failure not reported")
		}
	}
	assert.Equal(t, "disk full", got[false].Message)
	assert.Equal(t, "oops", got[true].Message)
	assert.Equal(t, "saved", got[true].Signal)
	assert.Equal(t, types.Normal, got[true].Priority)
}

func TestEmit_AfterHubShutdown(t *testing.T) {
	h := dispatch.NewHub()
	s := signal.MustNew([]types.Signature{intString}, signal.WithHub(h))
	require.NoError(t, s.Connect(signal.Func2(func(int, string) error { return nil })))
	require.NoError(t, s.Connect(signal.Func2(func(any, any) error { return nil })))

	h.Shutdown()
	err := s.Emit(1, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatch.ErrShutdown))
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestEmit_DefaultHubRebuilt(t *testing.T) {
	dispatch.Reset()
	defer dispatch.Reset()

	s := signal.MustNew([]types.Signature{types.Sig(tInt)})
	var n atomic.Int32
	require.NoError(t, s.Connect(signal.Func1(func(int) error { n.Add(1); return nil })))

	require.NoError(t, s.Emit(1))
	dispatch.Join()
	dispatch.Shutdown()

	require.NoError(t, s.Emit(2))
	dispatch.Join()
	assert.Equal(t, int32(2), n.Load())
}

func TestEmit_ArgsCopied(t *testing.T) {
	h := newHub(t, dispatch.MaxWorkers(1))
	release := hold(t, h)

	s := signal.MustNew([]types.Signature{types.Sig(tInt)}, signal.WithHub(h))
	got := make(chan int, 1)
	require.NoError(t, s.Connect(signal.Func1(func(v int) error { got <- v; return nil })))

	args := []any{1}
	require.NoError(t, s.Emit(args...))
	args[0] = 2
	release()
	h.Join()
	assert.Equal(t, 1, <-got)
}

// --- Similarity / Instances ---

func TestSimilarity(t *testing.T) {
	s := signal.MustNew([]types.Signature{intString, types.Sig(tInt)})
	sim := s.Similarity(intString)
	require.Len(t, sim, 4)

	want := []int{0, 2, signal.ArityMismatch, signal.ArityMismatch}
	for i, w := range want {
		assert.Equal(t, w, sim[i].Distance, sim[i].Signature.String())
	}
	assert.Equal(t, signal.Incompatible, s.Similarity(types.Sig(tString))[2].Distance)
}

func TestInstances(t *testing.T) {
	s := signal.MustNew(nil, signal.Named("tracked"))
	found := false
	for _, x := range signal.Instances() {
		if x == s {
			found = true
		}
	}
	assert.True(t, found)
	runtime.KeepAlive(s)
}

func TestInstances_Collected(t *testing.T) {
	func() {
		signal.MustNew(nil, signal.Named("ephemeral"))
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		for _, x := range signal.Instances() {
			if x.Name() == "ephemeral" {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}
