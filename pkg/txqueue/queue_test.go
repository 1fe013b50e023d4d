package txqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := New(zap.NewNop(), 128)
	q.Start(context.Background())

	var mu sync.Mutex
	var order []int

	for i := 0; i < 50; i++ {
		i := i
		if err := q.Enqueue("test", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}

	q.Stop()

	if len(order) != 50 {
		t.Fatalf("expected 50 executed jobs, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("jobs ran out of order: position %d executed job %d", i, got)
		}
	}
}

func TestQueue_NeverConcurrent(t *testing.T) {
	q := New(zap.NewNop(), 256)
	q.Start(context.Background())

	var running, peak int64
	var wg sync.WaitGroup

	// Flood the queue from many goroutines at once.
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_ = q.Enqueue("flood", func(ctx context.Context) error {
					n := atomic.AddInt64(&running, 1)
					for {
						p := atomic.LoadInt64(&peak)
						if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
							break
						}
					}
					time.Sleep(100 * time.Microsecond)
					atomic.AddInt64(&running, -1)
					return nil
				})
			}
		}()
	}

	wg.Wait()
	q.Stop()

	if got := atomic.LoadInt64(&peak); got != 1 {
		t.Fatalf("peak concurrent job executions = %d, want 1", got)
	}
}

func TestQueue_FailureDoesNotHaltQueue(t *testing.T) {
	q := New(zap.NewNop(), 8)
	q.Start(context.Background())

	var ran atomic.Int64

	_ = q.Enqueue("boom", func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("submission rejected")
	})
	_ = q.Enqueue("after", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	q.Stop()

	if got := ran.Load(); got != 2 {
		t.Fatalf("expected the job after a failure to still run, executed = %d", got)
	}
}

func TestQueue_EnqueueAfterStop(t *testing.T) {
	q := New(zap.NewNop(), 8)
	q.Start(context.Background())
	q.Stop()

	if err := q.Enqueue("late", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("expected error enqueueing on a stopped queue")
	}
}
