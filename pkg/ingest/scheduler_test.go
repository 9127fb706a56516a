package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsImmediateCycleAndStopsOnCancel(t *testing.T) {
	var cycles int64
	s := NewScheduler(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context) {
			atomic.AddInt64(&cycles, 1)
		})
	}()

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&cycles) == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an immediate first cycle")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if got := atomic.LoadInt64(&cycles); got != 1 {
		t.Fatalf("expected exactly the immediate cycle before the first tick, got %d", got)
	}
}

func TestSchedulerTicksRepeat(t *testing.T) {
	var cycles int64
	s := NewScheduler(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context) {
			atomic.AddInt64(&cycles, 1)
		})
	}()

	deadline := time.After(5 * time.Second)
	for atomic.LoadInt64(&cycles) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected repeated cycles, got %d", atomic.LoadInt64(&cycles))
		default:
			time.Sleep(20 * time.Millisecond)
		}
	}
	cancel()
	<-done
}
