package dispatch

import (
	"math"
	"sync"

	"github.com/tidwall/btree"
	"github.com/yaoapp/signals/types"
)

// stopPriority sorts stop markers after every real task, so shutdown drains
// the queue before workers exit.
const stopPriority = math.MaxInt

// queueItem is one entry of the priority queue. seq breaks ties between
// equal priorities so the ordering is total.
type queueItem struct {
	priority int
	seq      uint64
	task     *types.Task
	handle   *Handle
	stop     bool
}

func itemLess(a, b *queueItem) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// taskQueue is the priority queue shared by all workers of a pool.
// It tracks unfinished tasks so callers can block until the queue drains.
type taskQueue struct {
	mu         sync.Mutex
	ready      *sync.Cond // signaled when an item is put
	drained    *sync.Cond // broadcast when unfinished reaches zero
	items      *btree.BTreeG[*queueItem]
	seq        uint64
	queued     int // tasks waiting, stop markers excluded
	unfinished int // tasks put but not yet marked done
	limit      int // 0 = unbounded
}

func newTaskQueue(limit int) *taskQueue {
	q := &taskQueue{
		items: btree.NewBTreeGOptions(itemLess, btree.Options{NoLocks: true}),
		limit: limit,
	}
	q.ready = sync.NewCond(&q.mu)
	q.drained = sync.NewCond(&q.mu)
	return q
}

// put enqueues a task. Returns ErrQueueFull when the limit is reached.
func (q *taskQueue) put(task *types.Task, h *Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && q.queued >= q.limit {
		return ErrQueueFull
	}

	q.seq++
	q.items.Set(&queueItem{
		priority: int(task.Priority),
		seq:      q.seq,
		task:     task,
		handle:   h,
	})
	q.queued++
	q.unfinished++
	q.ready.Signal()
	return nil
}

// putStop enqueues a stop marker for one worker.
func (q *taskQueue) putStop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	q.items.Set(&queueItem{priority: stopPriority, seq: q.seq, stop: true})
	q.ready.Signal()
}

// get blocks until an item is available and removes the highest-priority one.
func (q *taskQueue) get() *queueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 {
		q.ready.Wait()
	}
	item, _ := q.items.PopMin()
	if !item.stop {
		q.queued--
	}
	return item
}

// done marks one task as finished.
func (q *taskQueue) done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.unfinished--
	if q.unfinished <= 0 {
		q.unfinished = 0
		q.drained.Broadcast()
	}
}

// join blocks until every task put so far has been marked done.
func (q *taskQueue) join() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.unfinished > 0 {
		q.drained.Wait()
	}
}

func (q *taskQueue) stats() (queued, unfinished int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queued, q.unfinished
}
