package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	queue "github.com/okian/podium/internal/adapters/mq/queue"
	worker "github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/repository"
	model "github.com/okian/podium/internal/domain/model"
	logging "github.com/okian/podium/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	items chan queue.Item
	once  sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{items: make(chan queue.Item, 64)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Item { return mq.items }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.items) })
	return nil
}

type mockRecorder struct {
	mu     sync.Mutex
	stored map[string]model.Contribution
	errs   map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{stored: make(map[string]model.Contribution), errs: make(map[string]error)}
}

func (r *mockRecorder) AddContribution(ctx context.Context, c model.Contribution) (model.Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[c.ID]; ok {
		return model.Contribution{}, err
	}
	r.stored[c.ID] = c
	return c, nil
}

func (r *mockRecorder) setError(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[id] = err
}

func (r *mockRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

type mockForgetter struct {
	mu  sync.Mutex
	ids []string
}

func (f *mockForgetter) Unrecord(ctx context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
}

func (f *mockForgetter) forgotten() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func item(id string) queue.Item {
	return queue.Item{ID: id, ScopeID: "scope", SubjectID: "alice", Amount: 2}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		recorder := newMockRecorder()
		forgetter := &mockForgetter{}
		var notified atomic.Int64
		notifier := worker.NotifierFunc(func(context.Context) { notified.Add(1) })

		w := worker.NewInMemoryWorker(q, recorder, notifier,
			worker.WithLogger(logging.Nop()),
			worker.WithName("test-worker"),
			worker.WithForgetter(forgetter),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a contribution is queued", func() {
			q.items <- item("c-1")

			convey.Convey("Then it is persisted and the notifier fires", func() {
				convey.So(waitFor(func() bool { return notified.Load() == 1 }), convey.ShouldBeTrue)
				convey.So(recorder.count(), convey.ShouldEqual, 1)
				convey.So(forgetter.forgotten(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When persisting reports a duplicate", func() {
			recorder.setError("c-dup", fmt.Errorf("%w: c-dup", repository.ErrDuplicate))
			q.items <- item("c-dup")
			q.items <- item("c-2")

			convey.Convey("Then it is dropped without notifying or forgetting", func() {
				convey.So(waitFor(func() bool { return recorder.count() == 1 }), convey.ShouldBeTrue)
				convey.So(waitFor(func() bool { return notified.Load() == 1 }), convey.ShouldBeTrue)
				convey.So(forgetter.forgotten(), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When persisting fails", func() {
			recorder.setError("c-bad", errors.New("disk full"))
			q.items <- item("c-bad")

			convey.Convey("Then the id is released for a retry", func() {
				convey.So(waitFor(func() bool { return len(forgetter.forgotten()) == 1 }), convey.ShouldBeTrue)
				convey.So(forgetter.forgotten()[0], convey.ShouldEqual, "c-bad")
				convey.So(int(notified.Load()), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly and a second shutdown is harmless", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := newMockQueue()
		recorder := newMockRecorder()
		var notified atomic.Int64
		notifier := worker.NotifierFunc(func(context.Context) { notified.Add(1) })

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, recorder, notifier, worker.WithLogger(logging.Nop()))

			convey.Convey("Then it picks a default size", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When started and fed contributions", func() {
			pool := worker.NewPool(3, q, recorder, notifier, worker.WithLogger(logging.Nop()))
			pool.Start(context.Background())
			for i := 0; i < 20; i++ {
				q.items <- item(fmt.Sprintf("c-%d", i))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then shutdown drains the queue", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(recorder.count(), convey.ShouldEqual, 20)
				convey.So(int(notified.Load()), convey.ShouldEqual, 20)
			})
		})
	})
}

func TestWorkerWithRealQueue(t *testing.T) {
	convey.Convey("Given the in-memory queue feeding a worker", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		recorder := newMockRecorder()
		pool := worker.NewPool(2, q, recorder, nil, worker.WithLogger(logging.Nop()))
		pool.Start(context.Background())

		for i := 0; i < 5; i++ {
			convey.So(q.Enqueue(context.Background(), item(fmt.Sprintf("c-%d", i))), convey.ShouldBeTrue)
		}
		convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)

		convey.Convey("Then every queued contribution is persisted", func() {
			convey.So(recorder.count(), convey.ShouldEqual, 5)
		})
	})
}
