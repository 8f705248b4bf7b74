package dispatch

import (
	"fmt"
	"sync"

	"github.com/yaoapp/signals/types"
)

// Pool runs tasks on a bounded set of worker goroutines that consume one
// shared priority queue. Workers are started lazily, one per submission,
// until maxWorkers is reached or an idle worker can take the task. They
// live until Shutdown.
type Pool struct {
	prefix     string
	maxWorkers int
	queue      *taskQueue
	report     *reporter

	mu       sync.Mutex // guards shutdown, workers, idle
	shutdown bool
	workers  int
	idle     int // finished tasks not yet matched by a submission
	wg       sync.WaitGroup
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Workers    int  // Started worker goroutines
	MaxWorkers int  // Worker cap
	Idle       int  // Finished tasks not yet matched by a submission
	Queued     int  // Tasks waiting for a worker
	Unfinished int  // Tasks submitted but not yet finished
	Shutdown   bool // True once Shutdown was called
}

func newPool(o *options, rep *reporter) *Pool {
	return &Pool{
		prefix:     o.prefix,
		maxWorkers: o.maxWorkers,
		queue:      newTaskQueue(o.queueLimit),
		report:     rep,
	}
}

// Submit enqueues task and returns its Handle.
// Returns ErrShutdown after Shutdown and ErrQueueFull when the queue limit
// is reached.
func (p *Pool) Submit(task *types.Task) (*Handle, error) {
	if task == nil || task.Target == nil {
		return nil, ErrInvalidTask
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shutdown {
		return nil, ErrShutdown
	}

	h := newHandle(task.ID)
	if err := p.queue.put(task, h); err != nil {
		return nil, err
	}
	p.adjustWorkers()
	return h, nil
}

// adjustWorkers starts one worker unless an idle one can take the task or
// the cap is reached. Caller holds p.mu.
func (p *Pool) adjustWorkers() {
	if p.idle > 0 {
		p.idle--
		return
	}
	if p.workers >= p.maxWorkers {
		return
	}
	p.workers++
	name := fmt.Sprintf("%s_%d", p.prefix, p.workers)
	p.wg.Add(1)
	go p.work(name)
}

func (p *Pool) work(name string) {
	defer p.wg.Done()
	log.Trace("worker %s started", name)

	for {
		item := p.queue.get()
		if item.stop {
			log.Trace("worker %s stopped", name)
			return
		}
		p.run(name, item)
	}
}

// run executes one task, resolves its handle and marks it done. The worker
// counts as idle before the queue learns the task is done.
func (p *Pool) run(worker string, item *queueItem) {
	f, err := p.invoke(worker, item.task)
	if f != nil {
		p.report.failure(f)
	}
	item.handle.finish(err)

	p.mu.Lock()
	p.idle++
	p.mu.Unlock()
	p.queue.done()
}

// invoke calls the slot and returns the failure record of an error or a
// panic. Panic records are built inside the recover so their trace still
// reaches the panic site; reporting is left to the caller.
func (p *Pool) invoke(worker string, task *types.Task) (f *types.Failure, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = capturePanic(r, worker, task)
			err = fmt.Errorf("%w: %v", ErrSlotPanic, r)
		}
	}()

	if err := task.Target.Invoke(task.Args); err != nil {
		return captureError(err, worker, task), err
	}
	return nil, nil
}

// Join blocks until every submitted task has finished.
// Must not be called from a slot: it would wait on itself.
func (p *Pool) Join() {
	p.queue.join()
}

// Shutdown stops accepting tasks. Queued tasks still run; each worker
// exits once the queue is empty. When wait is true, Shutdown blocks until
// all workers have exited. Calling it again only waits.
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	first := !p.shutdown
	p.shutdown = true
	workers := p.workers
	p.mu.Unlock()

	if first {
		for i := 0; i < workers; i++ {
			p.queue.putStop()
		}
	}
	if wait {
		p.wg.Wait()
	}
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Workers:    p.workers,
		MaxWorkers: p.maxWorkers,
		Idle:       p.idle,
		Shutdown:   p.shutdown,
	}
	p.mu.Unlock()
	s.Queued, s.Unfinished = p.queue.stats()
	return s
}

// Handle tracks one submitted task.
type Handle struct {
	id   string
	done chan struct{}
	err  error
}

func newHandle(id string) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

// ID returns the task ID.
func (h *Handle) ID() string { return h.id }

// Done returns a channel that is closed when the task has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task has finished and returns its error. A panic
// is returned wrapped in ErrSlotPanic.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Err returns the task error, or nil while the task is still pending.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}
