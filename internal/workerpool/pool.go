// Package workerpool provides a small fixed-size goroutine pool for
// blocking work that must not run on the master's event loop — chiefly
// password-hash verification, which the spec requires be memory-hard and
// therefore deliberately slow. The corpus has no dedicated worker-pool
// library, so this is built directly on channels and sync.WaitGroup in the
// teacher's own single-purpose background-task style.
package workerpool

import (
	"context"
	"sync"
)

// Job is one unit of work submitted to the pool.
type Job func(ctx context.Context)

// Pool runs submitted Jobs across a fixed number of worker goroutines.
type Pool struct {
	jobs chan Job
	wg   sync.WaitGroup
}

// New starts a pool with the given number of workers. workers <= 0 is
// treated as 1.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{jobs: make(chan Job, workers*4)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job(context.Background())
	}
}

// Submit enqueues job, blocking if every worker is busy and the queue is
// full.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting new jobs and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
