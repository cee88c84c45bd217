package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clawdia-sh/research-core/internal/errkind"
)

func TestAcquire_ConsumesToken(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"search": {Capacity: 2, RefillPerSec: 1, MaxQueueDepth: 5, MaxWait: time.Second},
	})
	ctx := context.Background()
	if err := r.Acquire(ctx, "search"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := r.Acquire(ctx, "search"); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
}

func TestAcquire_QueueFullRejectsSynchronously(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"search": {Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 0, MaxWait: 5 * time.Second},
	})
	ctx := context.Background()
	if err := r.Acquire(ctx, "search"); err != nil {
		t.Fatalf("drain initial token: %v", err)
	}
	// Bucket is now empty and queue depth is 0, so the very next acquire
	// must reject immediately rather than park.
	start := time.Now()
	err := r.Acquire(ctx, "search")
	if !errors.Is(err, errkind.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("queue_full rejection took too long: %v", time.Since(start))
	}
}

func TestAcquire_TimeoutWhenStarved(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"search": {Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 5, MaxWait: 50 * time.Millisecond},
	})
	ctx := context.Background()
	_ = r.Acquire(ctx, "search")
	err := r.Acquire(ctx, "search")
	if !errors.Is(err, errkind.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestAcquire_FIFO(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"search": {Capacity: 1, RefillPerSec: 20, MaxQueueDepth: 10, MaxWait: 2 * time.Second},
	})
	ctx := context.Background()
	_ = r.Acquire(ctx, "search") // drain the single token

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := r.Acquire(ctx, "search"); err == nil {
				mu.Lock()
				order = append(order, n)
				mu.Unlock()
			}
			// Stagger goroutine start so enqueue order is deterministic.
		}(i)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 {
		t.Fatalf("expected 4 resolved waiters, got %d (%v)", len(order), order)
	}
	for i := range order {
		if order[i] != i {
			t.Fatalf("expected FIFO order 0,1,2,3; got %v", order)
		}
	}
}

func TestAcquire_CancelDoesNotConsumeToken(t *testing.T) {
	r := NewRegistry(map[string]Config{
		"search": {Capacity: 1, RefillPerSec: 0.001, MaxQueueDepth: 5, MaxWait: 5 * time.Second},
	})
	ctx := context.Background()
	_ = r.Acquire(ctx, "search") // drain

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- r.Acquire(cctx, "search") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	err := <-done
	if !errors.Is(err, errkind.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
