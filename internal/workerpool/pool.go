// Package workerpool runs jobs on a fixed number of goroutines fed by an
// unbounded FIFO backlog.
package workerpool

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"sync"
)

// DefaultSize is the number of worker slots used when none is configured.
const DefaultSize = 3

// ErrPoolStopped is returned by Submit after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is a unit of work. ctx is cancelled when the pool stops.
type Job func(ctx context.Context)

// Stats is a point-in-time view of the pool.
type Stats struct {
	Size    int `json:"size"`
	Running int `json:"running"`
	Queued  int `json:"queued"`
}

// Pool executes submitted jobs with bounded concurrency.
type Pool struct {
	size   int
	logger *log.Logger

	startOnce sync.Once

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Job
	running int
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pool with size worker slots. Workers start on first Submit.
func New(size int, logger *log.Logger) *Pool {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[workerpool] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:   size,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Size returns the number of worker slots.
func (p *Pool) Size() int {
	return p.size
}

// Submit enqueues job and returns without waiting for it to run.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	p.startOnce.Do(p.start)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrPoolStopped
	}
	p.queue = append(p.queue, job)
	p.cond.Signal()
	return nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		Size:    p.size,
		Running: p.running,
		Queued:  len(p.queue),
	}
}

// Stop refuses new jobs, drops the backlog, cancels the job context and waits
// for running jobs to return or ctx to expire.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	dropped := len(p.queue)
	p.queue = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	if dropped > 0 {
		p.logger.Printf("Dropping %d queued job(s)", dropped)
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Println("Worker pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Printf("Started %d workers", p.size)
}

func (p *Pool) worker(slot int) {
	defer p.wg.Done()

	for {
		job, ok := p.next()
		if !ok {
			return
		}
		p.run(slot, job)

		p.mu.Lock()
		p.running--
		p.mu.Unlock()
	}
}

// next blocks until a job is available or the pool stops.
func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.stopped {
		p.cond.Wait()
	}
	if p.stopped {
		return nil, false
	}

	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.running++
	return job, true
}

func (p *Pool) run(slot int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("Worker %d recovered from panic: %v\n%s", slot, r, debug.Stack())
		}
	}()
	job(p.ctx)
}
