package worker

import (
	"context"
	"sync"
)

// Job is a unit of work executed by the pool.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one job.
type Result interface {
	GetError() error
}

// Pool runs jobs over a fixed set of worker goroutines. Used by the scan
// pipeline to bound concurrent per-article verifications.
type Pool struct {
	workers   int
	jobQueue  chan Job
	results   chan Result
	wg        sync.WaitGroup
	ctx       context.Context
	collected []Result
	done      chan struct{}
}

// NewPool creates a pool. Jobs observe ctx for cancellation.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, workers*2),
		results:  make(chan Result, workers*2),
		ctx:      ctx,
		done:     make(chan struct{}),
	}
}

// Start launches the workers and the result collector. Results are
// drained as they complete, so Submit never blocks on a batch larger
// than the channel buffers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// collect owns p.collected until done is closed.
func (p *Pool) collect() {
	defer close(p.done)
	for result := range p.results {
		p.collected = append(p.collected, result)
	}
}

// Submit enqueues a job. Dropped silently once the context is done.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobQueue <- job:
	}
}

// Wait closes the queue, waits for the workers and the collector, and
// returns all results.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.results)
	<-p.done
	return p.collected
}
