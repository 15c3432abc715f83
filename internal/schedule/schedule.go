// Package schedule runs functions after a fixed delay on a small dedicated
// pool, keeping delayed work off the main delivery workers.
package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rzbill/courier/pkg/log"
)

type task struct {
	at time.Time
	fn func()
}

type taskHeap []task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}

// Pool executes scheduled functions once their delay elapses.
type Pool struct {
	mu    sync.Mutex
	tasks taskHeap

	wake chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	logger log.Logger
}

// New starts a scheduling pool with the given worker count.
func New(workers int, logger log.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With(log.Component("schedule")),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Schedule queues fn to run once delay has elapsed. After Shutdown the
// function runs immediately on the caller so no scheduled work is lost.
func (p *Pool) Schedule(delay time.Duration, fn func()) {
	select {
	case <-p.done:
		fn()
		return
	default:
	}
	p.mu.Lock()
	heap.Push(&p.tasks, task{at: time.Now().Add(delay), fn: fn})
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of not-yet-executed tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			select {
			case <-p.wake:
				continue
			case <-p.done:
				return
			}
		}
		next := p.tasks[0]
		now := time.Now()
		if !next.at.After(now) {
			heap.Pop(&p.tasks)
			p.mu.Unlock()
			next.fn()
			continue
		}
		wait := next.at.Sub(now)
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
		case <-p.done:
			timer.Stop()
			return
		}
	}
}

// Shutdown stops the workers and runs every still-queued task inline, so a
// scheduled finalization is executed rather than dropped. Returns the
// context error if the inline drain outlives ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() { close(p.done) })
	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	rest := p.tasks
	p.tasks = nil
	p.mu.Unlock()
	if len(rest) > 0 {
		p.logger.Info("running remaining scheduled tasks", log.Int("count", len(rest)))
	}
	for _, t := range rest {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t.fn()
	}
	return nil
}
