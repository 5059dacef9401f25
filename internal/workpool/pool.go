// Package workpool executes compile and link instructions on a bounded
// pool of worker goroutines and delivers results correlated by an
// opaque job id (§4.2). It is modeled on the worker/errgroup pattern
// distri's batch scheduler uses (internal/batch.scheduler.run), with
// the job-id correlation the spec calls for layered on top: the
// original Rust work_pool.rs only ever waits for "the next" result,
// never a specific one.
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/nouwaarom/beaver-build/internal/blog"
	"github.com/nouwaarom/beaver-build/internal/trace"
)

type job struct {
	id    JobID
	instr Instruction
}

// queue is an unbounded FIFO of pending jobs, shared by every worker.
// schedule_work must return immediately regardless of how many workers
// are busy, so the queue cannot be a fixed-capacity channel.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []job
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(j job) {
	q.mu.Lock()
	q.items = append(q.items, j)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *queue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return job{}, false
	}
	j := q.items[0]
	q.items = q.items[1:]
	return j, true
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pool is a fixed-size pool of worker goroutines that execute work
// instructions and report results through a single multi-producer,
// single-consumer channel.
type Pool struct {
	tc    Toolchain
	log   *blog.Logger
	queue *queue

	results chan Result
	eg      *errgroup.Group

	mu        sync.Mutex
	nextID    JobID
	scheduled uint64
	delivered uint64
	pending   map[JobID]Result // results delivered before their id was asked for
}

// New constructs a pool of exactly numWorkers worker goroutines, each
// executing instructions via tc until ctx is canceled or Shutdown is
// called. A nil log discards every message, the same default the
// scheduler uses.
func New(ctx context.Context, numWorkers int, tc Toolchain, log *blog.Logger) *Pool {
	if log == nil {
		log = blog.Discard()
	}
	eg, ctx := errgroup.WithContext(ctx)
	p := &Pool{
		tc:      tc,
		log:     log,
		queue:   newQueue(),
		results: make(chan Result),
		eg:      eg,
		pending: make(map[JobID]Result),
	}
	for i := 0; i < numWorkers; i++ {
		worker := i
		p.eg.Go(func() error {
			return p.workerLoop(ctx, worker)
		})
	}
	return p
}

func (p *Pool) workerLoop(ctx context.Context, worker int) error {
	for {
		j, ok := p.queue.pop()
		if !ok {
			return nil
		}
		var stdout string
		var err error
		var name string
		switch instr := j.instr.(type) {
		case Compile:
			name = "compile " + instr.SourceFile
			ev := trace.Event(name, worker)
			stdout, err = p.tc.Compile(ctx, instr)
			ev.Done()
		case Link:
			name = "link " + instr.OutputFile
			ev := trace.Event(name, worker)
			stdout, err = p.tc.Link(ctx, instr)
			ev.Done()
		default:
			err = xerrors.Errorf("unknown work instruction type %T", j.instr)
		}
		if err != nil {
			p.log.WithJob(uint64(j.id)).WithField("worker", worker).WithField("error", err.Error()).Warn(name + " failed")
		}
		select {
		case p.results <- Result{JobID: j.id, WorkerIndex: worker, Stdout: stdout, Err: err}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// ScheduleWork assigns the next monotonically increasing job id, hands
// the instruction to the queue (picked up by an idle worker, or queued
// if none is idle), and returns immediately.
func (p *Pool) ScheduleWork(instr Instruction) JobID {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.scheduled++
	p.mu.Unlock()

	p.queue.push(job{id: id, instr: instr})
	return id
}

// GetResultBlocking blocks until the result for the given job id is
// available, buffering any other results that arrive first.
func (p *Pool) GetResultBlocking(id JobID) Result {
	for {
		p.mu.Lock()
		if r, ok := p.pending[id]; ok {
			delete(p.pending, id)
			p.mu.Unlock()
			return r
		}
		p.mu.Unlock()

		r := <-p.results
		p.mu.Lock()
		p.delivered++
		if r.JobID == id {
			p.mu.Unlock()
			return r
		}
		p.pending[r.JobID] = r
		p.mu.Unlock()
	}
}

// GetNextResultBlocking blocks until any outstanding job completes. It
// returns (Result{}, false) only when there are no outstanding jobs
// (scheduled - delivered == 0) and no buffered result is waiting; in
// that case it returns immediately instead of blocking.
func (p *Pool) GetNextResultBlocking() (Result, bool) {
	p.mu.Lock()
	// A result buffered earlier by GetResultBlocking satisfies this call too.
	for id, r := range p.pending {
		delete(p.pending, id)
		p.mu.Unlock()
		return r, true
	}
	outstanding := p.scheduled - p.delivered
	p.mu.Unlock()
	if outstanding == 0 {
		return Result{}, false
	}

	r := <-p.results
	p.mu.Lock()
	p.delivered++
	p.mu.Unlock()
	return r, true
}

// Shutdown closes the work queue and waits for every worker to finish
// its current job. It is safe to call once all scheduled jobs have
// been retrieved.
func (p *Pool) Shutdown() error {
	p.queue.close()
	return p.eg.Wait()
}
