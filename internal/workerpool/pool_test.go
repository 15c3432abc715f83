package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rzbill/courier/pkg/log"
)

func TestPoolRunsEveryTask(t *testing.T) {
	p := New(4, 16, log.NewNop())
	var n atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			n.Add(1)
		})
	}
	wg.Wait()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if n.Load() != 100 {
		t.Fatalf("ran %d of 100 tasks", n.Load())
	}
}

func TestSaturatedPoolRunsOnCaller(t *testing.T) {
	p := New(1, 1, log.NewNop())

	block := make(chan struct{})
	p.Submit(func() { <-block }) // occupies the single worker
	p.Submit(func() {})          // fills the queue

	// Submit runs the overflow task synchronously, so the flag is set by
	// the time Submit returns even though the worker is still blocked.
	ran := false
	p.Submit(func() { ran = true })
	if !ran {
		t.Fatalf("overflow task should run on the caller before Submit returns")
	}

	close(block)
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSubmitAfterShutdownRunsInline(t *testing.T) {
	p := New(2, 2, log.NewNop())
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	ran := false
	p.Submit(func() { ran = true })
	if !ran {
		t.Fatalf("post-shutdown task should run on the caller")
	}
}
