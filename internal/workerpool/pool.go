// Package workerpool provides a bounded pool with caller-runs overflow.
//
// When every worker is busy and the queue is full, Submit executes the task
// on the submitting goroutine instead of dropping it or blocking forever.
// For the consume loop this is deliberate backpressure: the loop stops
// pulling new records from the stream while it runs the overflow task.
package workerpool

import (
	"context"
	"sync"

	"github.com/rzbill/courier/pkg/log"
)

// Pool runs submitted tasks on a fixed set of workers.
type Pool struct {
	tasks  chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	logger log.Logger
}

// New starts a pool with the given worker count and queue capacity.
func New(workers, queueSize int, logger log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{
		tasks:  make(chan func(), queueSize),
		done:   make(chan struct{}),
		logger: logger.With(log.Component("workerpool")),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		case task := <-p.tasks:
			task()
		}
	}
}

// Submit queues the task, or runs it on the calling goroutine when the pool
// is saturated or shut down. It never blocks and never drops a task.
func (p *Pool) Submit(task func()) {
	select {
	case <-p.done:
		task()
		return
	default:
	}
	select {
	case p.tasks <- task:
	default:
		p.logger.Debug("queue full, running task on caller")
		task()
	}
}

// QueueDepth returns the number of queued, not yet started tasks.
func (p *Pool) QueueDepth() int { return len(p.tasks) }

// Shutdown stops the workers after the queue drains. It returns early with
// the context error if the drain outlives ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.done) })
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
