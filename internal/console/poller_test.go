package console

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPollerBurstWindow(t *testing.T) {
	now := time.Date(2026, 10, 31, 18, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	p := NewPoller(func(context.Context) error { return nil }, PollerOptions{Now: clock})

	if got := p.NextInterval(); got != DefaultBaseline {
		t.Fatalf("expected baseline, got %v", got)
	}
	p.TriggerBurst()
	if got := p.NextInterval(); got != DefaultBurst {
		t.Fatalf("expected burst, got %v", got)
	}

	mu.Lock()
	now = now.Add(DefaultBurstWindow + time.Millisecond)
	mu.Unlock()
	if got := p.NextInterval(); got != DefaultBaseline {
		t.Fatalf("expected baseline after window, got %v", got)
	}
}

func TestPollerNoOverlap(t *testing.T) {
	var active, maxActive, calls int32
	fetch := func(context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&calls, 1)
		return nil
	}
	p := NewPoller(fetch, PollerOptions{Baseline: time.Millisecond, Burst: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	go func() {
		for i := 0; i < 10; i++ {
			p.TriggerBurst()
			time.Sleep(2 * time.Millisecond)
		}
	}()
	_ = p.Run(ctx)

	if atomic.LoadInt32(&calls) < 2 {
		t.Fatalf("expected repeated polls, got %d", calls)
	}
	if got := atomic.LoadInt32(&maxActive); got != 1 {
		t.Fatalf("expected no overlapping polls, got %d concurrent", got)
	}
}
