// Package signal implements typed, priority-tagged signals.
//
// A Signal is built from one or more signatures. Slots connect to the
// registered signature that generalizes their own declared signature the
// least; an emission reaches every slot whose bucket generalizes the
// runtime types of the emitted arguments. Delivery is asynchronous: each
// matched slot becomes one task on a dispatch hub.
//
//	sig := signal.MustNew([]types.Signature{
//		types.Sig(types.TypeOf[int](), types.TypeOf[string]()),
//	})
//	sig.Connect(signal.Func2(func(n int, s string) error { ... }))
//	sig.Emit(6, "Boo")
//	dispatch.Join()
package signal

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/yaoapp/signals/config"
	"github.com/yaoapp/signals/dispatch"
	"github.com/yaoapp/signals/logger"
	"github.com/yaoapp/signals/types"
)

var log = logger.New("signal")

var (
	ErrInvalidSignature      = errors.New("signal: invalid signature")
	ErrNoCompatibleSignature = errors.New("signal: no compatible signature")
	ErrNilSlot               = errors.New("signal: nil slot")
	ErrSlotNotComparable     = errors.New("signal: slot type is not comparable")
	ErrOwnerReleased         = errors.New("signal: slot owner was released")
	ErrNotDerived            = errors.New("signal: type is not derived")
	ErrLineageCycle          = errors.New("signal: lineage cycle")
	ErrArity                 = errors.New("signal: wrong number of arguments")
)

// Unlimited is the tolerance that accepts every compatible signature.
const Unlimited = math.MaxInt

// NoMatchError is returned by Connect when no registered signature is
// compatible with the slot.
type NoMatchError struct {
	Slot      string
	Signature types.Signature
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("signal: no similar signature found for %s with argument types %s", e.Slot, e.Signature)
}

// Unwrap lets errors.Is match ErrNoCompatibleSignature.
func (e *NoMatchError) Unwrap() error { return ErrNoCompatibleSignature }

var taskIDCounter atomic.Uint64

func nextTaskID() string {
	id := taskIDCounter.Add(1)
	return fmt.Sprintf("task-%d", id)
}

var signalCounter atomic.Uint64

// entry is one registration in a bucket.
type entry struct {
	key     any             // registry identity, see identify
	slot    types.Slot      // free slot, or member proxy
	proxy   weakProxy       // nil for free slots
	cleanup *runtime.Cleanup // owner watch of member slots
}

// bucket holds the slots routed to one registered signature, in connect
// order.
type bucket struct {
	sig     types.Signature
	entries []entry
}

// Signal is a typed multicast event source with a priority tag.
//
// All methods are safe for concurrent use: member slot owners are
// released from the runtime cleanup goroutine, so the registry is always
// guarded.
type Signal struct {
	name     string
	priority atomic.Int32
	hub      *dispatch.Hub
	self     weak.Pointer[Signal]

	// buckets is fixed at construction; entries change under mu.
	buckets []*bucket
	mu      sync.RWMutex
	proxies map[proxyKey]int // member key -> bucket index

	cache *lru.Cache // Signature.Key -> distanceRow
}

// New creates a Signal. For every signature in defs the registry gets a
// bucket for it and one for its generic form; duplicates share a bucket.
// A nil descriptor fails with ErrInvalidSignature.
func New(defs []types.Signature, opts ...Option) (*Signal, error) {
	s := &Signal{
		proxies: map[proxyKey]int{},
	}
	s.name = fmt.Sprintf("signal-%d", signalCounter.Add(1))
	s.priority.Store(int32(defaultPriority()))

	o := &options{cacheSize: config.Conf.CacheSize}
	for _, opt := range opts {
		opt(o)
	}
	if o.name != "" {
		s.name = o.name
	}
	if o.priority != 0 {
		if !o.priority.Valid() {
			return nil, fmt.Errorf("%w: %d", types.ErrInvalidPriority, int(o.priority))
		}
		s.priority.Store(int32(o.priority))
	}
	s.hub = o.hub

	index := map[string]int{}
	add := func(sig types.Signature) {
		key := sig.Key()
		if _, ok := index[key]; ok {
			return
		}
		index[key] = len(s.buckets)
		s.buckets = append(s.buckets, &bucket{sig: sig})
	}
	for i, def := range defs {
		for j, t := range def {
			if t == nil {
				return nil, fmt.Errorf("%w: signature %d position %d is nil", ErrInvalidSignature, i, j)
			}
		}
		sig := slices.Clone(def)
		add(sig)
		add(sig.Generic())
	}

	size := o.cacheSize
	if size < 1 {
		size = types.DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	s.self = weak.Make(s)

	track(s)
	log.Trace("%s created: typedefs=%d priority=%s", s.name, len(s.buckets), s.Priority())
	return s, nil
}

// MustNew is like New but panics on error.
func MustNew(defs []types.Signature, opts ...Option) *Signal {
	s, err := New(defs, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func defaultPriority() types.Priority {
	p, err := types.LookupPriority(config.Conf.Priority)
	if err != nil {
		return types.DefaultPriority
	}
	return p
}

// Name returns the signal name used in logs and failure records.
func (s *Signal) Name() string { return s.name }

// Priority returns the priority given to emitted tasks.
func (s *Signal) Priority() types.Priority {
	return types.Priority(s.priority.Load())
}

// SetPriority changes the priority of later emissions.
func (s *Signal) SetPriority(p types.Priority) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %d", types.ErrInvalidPriority, int(p))
	}
	s.priority.Store(int32(p))
	return nil
}

// Typedefs returns the registered signatures in registration order.
func (s *Signal) Typedefs() []types.Signature {
	out := make([]types.Signature, len(s.buckets))
	for i, b := range s.buckets {
		out[i] = slices.Clone(b.sig)
	}
	return out
}

// Len returns the number of live registrations.
func (s *Signal) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, b := range s.buckets {
		for _, e := range b.entries {
			if e.proxy == nil || e.proxy.bind() != nil {
				n++
			}
		}
	}
	return n
}

// Similarity returns the distance of sig to every registered signature,
// in registration order.
func (s *Signal) Similarity(sig types.Signature) []types.Similarity {
	dists := s.distances(sig)
	out := make([]types.Similarity, len(s.buckets))
	for i, b := range s.buckets {
		out[i] = types.Similarity{Signature: slices.Clone(b.sig), Distance: dists[i]}
	}
	return out
}

// distanceRow is a cached distance row. It is only served while the
// lineage generation it was computed under is current.
type distanceRow struct {
	gen   uint64
	dists []int
}

// distances returns the cached per-bucket distances of sig.
func (s *Signal) distances(sig types.Signature) []int {
	gen := lineageGeneration()
	key := sig.Key()
	if v, ok := s.cache.Get(key); ok {
		if row := v.(distanceRow); row.gen == gen {
			return row.dists
		}
	}

	dists := make([]int, len(s.buckets))
	for i, b := range s.buckets {
		dists[i] = Distance(sig, b.sig)
	}
	s.cache.Add(key, distanceRow{gen: gen, dists: dists})
	return dists
}

// Connect routes slot to the registered signature closest to its declared
// one; ties go to the earlier registration. Connecting a slot again moves
// it instead of adding a second registration.
func (s *Signal) Connect(slot types.Slot) error {
	key, proxy, err := identify(slot)
	if err != nil {
		return err
	}

	sig := slot.Signature()
	dists := s.distances(sig)
	best := -1
	for i, d := range dists {
		if d >= 0 && (best < 0 || d < dists[best]) {
			best = i
		}
	}
	if best < 0 {
		return &NoMatchError{Slot: slotName(slot), Signature: normalize(sig)}
	}

	e := entry{key: key, slot: slot}

	// The owner watch is registered under mu so a cleanup that fires right
	// away waits for the entry it has to remove.
	s.mu.Lock()
	if proxy != nil {
		c, ok := proxy.watch(s.releaser())
		if !ok {
			s.mu.Unlock()
			return ErrOwnerReleased
		}
		e.slot, e.proxy, e.cleanup = proxy, proxy, c
	}
	s.removeLocked(key, true)
	s.buckets[best].entries = append(s.buckets[best].entries, e)
	if proxy != nil {
		s.proxies[proxy.key()] = best
	}
	s.mu.Unlock()

	s.cache.Purge()
	log.Trace("%s: connected %s to %s", s.name, slotName(slot), s.buckets[best].sig)
	return nil
}

// Disconnect removes slot from every bucket. Member slots may be given as
// the connected slot or as a view returned by Slots. No-op when absent.
func (s *Signal) Disconnect(slot types.Slot) {
	key, _, err := identify(slot)
	if err != nil {
		return
	}

	s.mu.Lock()
	removed := s.removeLocked(key, true)
	s.mu.Unlock()

	if removed {
		s.cache.Purge()
		log.Trace("%s: disconnected %s", s.name, slotName(slot))
	}
}

// removeLocked drops the registration with key. Member slots are looked up
// in the proxy table; free slots are searched in every bucket. stop ends
// the owner watch. Caller holds s.mu.
func (s *Signal) removeLocked(key any, stop bool) bool {
	if pk, ok := key.(proxyKey); ok {
		i, ok := s.proxies[pk]
		if !ok {
			return false
		}
		delete(s.proxies, pk)
		return s.buckets[i].remove(key, stop)
	}

	removed := false
	for _, b := range s.buckets {
		if b.remove(key, stop) {
			removed = true
		}
	}
	return removed
}

func (b *bucket) remove(key any, stop bool) bool {
	i := slices.IndexFunc(b.entries, func(e entry) bool { return e.key == key })
	if i < 0 {
		return false
	}
	if stop && b.entries[i].cleanup != nil {
		b.entries[i].cleanup.Stop()
	}
	b.entries = slices.Delete(b.entries, i, i+1)
	return true
}

// Slots returns the live slots of every bucket compatible with sig.
func (s *Signal) Slots(sig types.Signature) []types.Slot {
	return s.SlotsWithin(sig, Unlimited)
}

// SlotsWithin returns the live slots of every bucket whose distance from
// sig is between 0 and tolerance, in bucket then connect order. Member
// slots are returned as views that keep their owner alive; slots of
// collected owners are omitted.
func (s *Signal) SlotsWithin(sig types.Signature, tolerance int) []types.Slot {
	dists := s.distances(sig)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Slot
	seen := map[any]struct{}{}
	for i, b := range s.buckets {
		if d := dists[i]; d < 0 || d > tolerance {
			continue
		}
		for _, e := range b.entries {
			if _, dup := seen[e.key]; dup {
				continue
			}
			slot := e.slot
			if e.proxy != nil {
				if slot = e.proxy.bind(); slot == nil {
					continue
				}
			}
			seen[e.key] = struct{}{}
			out = append(out, slot)
		}
	}
	return out
}

// Emit delivers args to every compatible slot, one task per slot, on the
// signal's hub or the process default hub. It never waits for the slots
// and never reports their failures. The returned error aggregates the
// submissions the hub rejected, e.g. after Shutdown of an explicit hub.
func (s *Signal) Emit(args ...any) error {
	payload := slices.Clone(args)
	slots := s.Slots(types.Of(payload...))
	if len(slots) == 0 {
		return nil
	}

	hub := s.hub
	if hub == nil {
		hub = dispatch.GetOrCreate()
	}

	priority := s.Priority()
	var result *multierror.Error
	for _, slot := range slots {
		task := &types.Task{
			ID:       nextTaskID(),
			Priority: priority,
			Target:   slot,
			Args:     payload,
			Source:   s.name,
		}
		if _, err := hub.Submit(task); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %s: %w", s.name, slotName(slot), err))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		log.Warn("%s: %d of %d tasks rejected", s.name, len(result.Errors), len(slots))
		return err
	}
	return nil
}
