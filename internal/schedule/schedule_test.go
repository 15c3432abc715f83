package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rzbill/courier/pkg/log"
)

func TestScheduleRunsAfterDelay(t *testing.T) {
	p := New(2, log.NewNop())
	defer p.Shutdown(context.Background())

	done := make(chan time.Time, 1)
	start := time.Now()
	p.Schedule(30*time.Millisecond, func() { done <- time.Now() })

	select {
	case ran := <-done:
		if ran.Sub(start) < 30*time.Millisecond {
			t.Fatalf("task ran after %v, before its delay", ran.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("task never ran")
	}
}

func TestEarlierTaskPreemptsWait(t *testing.T) {
	p := New(1, log.NewNop())
	defer p.Shutdown(context.Background())

	got := make(chan string, 2)
	p.Schedule(200*time.Millisecond, func() { got <- "late" })
	p.Schedule(10*time.Millisecond, func() { got <- "early" })

	select {
	case first := <-got:
		if first != "early" {
			t.Fatalf("ran %q first", first)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no task ran")
	}
}

func TestShutdownRunsQueuedTasks(t *testing.T) {
	p := New(1, log.NewNop())
	var n atomic.Int64
	for i := 0; i < 5; i++ {
		p.Schedule(time.Hour, func() { n.Add(1) })
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if n.Load() != 5 {
		t.Fatalf("shutdown ran %d of 5 queued tasks", n.Load())
	}
}

func TestScheduleAfterShutdownRunsInline(t *testing.T) {
	p := New(1, log.NewNop())
	_ = p.Shutdown(context.Background())
	ran := false
	p.Schedule(time.Hour, func() { ran = true })
	if !ran {
		t.Fatalf("post-shutdown schedule should run inline")
	}
}
