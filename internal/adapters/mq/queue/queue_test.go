package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/model"
)

func contribution(id string) model.Contribution {
	return model.Contribution{ID: id, ScopeID: "scope", SubjectID: "alice", Amount: 1}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, contribution("c1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	item := <-q.Dequeue(ctx)
	if item.ID != "c1" {
		t.Errorf("expected c1, got %v", item.ID)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, contribution("c1")) || !q.Enqueue(ctx, contribution("c2")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, contribution("c3")) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A full queue with a cancelled context must not block.
	q.Enqueue(context.Background(), contribution("c1"))
	if q.Enqueue(ctx, contribution("c2")) {
		t.Error("expected enqueue to fail")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx := context.Background()
	const (
		producers = 10
		perProd   = 100
	)

	var consumed sync.WaitGroup
	consumed.Add(producers * perProd)
	seen := make(chan string, producers*perProd)
	for i := 0; i < 4; i++ {
		go func() {
			for item := range q.Dequeue(ctx) {
				seen <- item.ID
				consumed.Done()
			}
		}()
	}

	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		go func(p int) {
			defer produced.Done()
			for j := 0; j < perProd; j++ {
				for !q.Enqueue(ctx, contribution(fmt.Sprintf("c%d_%d", p, j))) {
					time.Sleep(time.Millisecond)
				}
			}
		}(p)
	}
	produced.Wait()
	consumed.Wait()

	unique := make(map[string]struct{})
	for len(unique) < producers*perProd {
		unique[<-seen] = struct{}{}
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	q.Enqueue(ctx, contribution("c1"))
	q.Enqueue(ctx, contribution("c2"))
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, contribution("c3")) {
		t.Error("expected enqueue to fail after closing")
	}

	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case item, ok := <-ch:
			if !ok {
				done = true
				break
			}
			drained = append(drained, item.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if len(drained) != 2 {
		t.Errorf("expected queued items to drain, got %v", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
