package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/tailor/internal/adapters/mq/queue"
	"github.com/okian/tailor/internal/adapters/mq/worker"
	"github.com/okian/tailor/internal/domain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (r *recorder) Apply(_ context.Context, e model.Event) error { //nolint:gocritic // hugeParam: interface signature
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[e.ID]; ok {
		return err
	}
	r.seen = append(r.seen, e.ID)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func enqueue(q *queue.InMemoryQueue, n int) {
	for i := 0; i < n; i++ {
		_ = q.Enqueue(context.Background(), model.Event{
			ID:       fmt.Sprintf("e%d", i),
			Identity: "guest:1",
			Type:     model.EventProductOpen,
			Handle:   "red-hoodie",
		})
	}
}

// closeCounter counts Close calls on the queue it wraps.
type closeCounter struct {
	*queue.InMemoryQueue
	mu     sync.Mutex
	closes int
}

func (c *closeCounter) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return c.InMemoryQueue.Close()
}

func (c *closeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func TestPool(t *testing.T) {
	Convey("Given a pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		rec := &recorder{fail: map[string]error{"e3": errors.New("store down")}}
		p := worker.NewPool(q, rec, worker.WithWorkers(3), worker.WithEventTimeout(time.Second))

		Convey("Shutdown drains every queued event", func() {
			enqueue(q, 20)
			p.Start()
			p.Start()
			So(p.Shutdown(context.Background()), ShouldBeNil)

			So(rec.count(), ShouldEqual, 19)
			st := p.Stats()
			So(st.Workers, ShouldEqual, 3)
			So(st.Processed, ShouldEqual, 19)
			So(st.Failed, ShouldEqual, 1)
			So(st.Active, ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeTrue)
		})

		Convey("Shutdown of a pool that never started closes the queue", func() {
			So(p.Shutdown(context.Background()), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
		})
	})

	Convey("Given an applier that panics", t, func() {
		q := queue.NewInMemoryQueue()
		p := worker.NewPool(q, worker.ApplierFunc(func(context.Context, model.Event) error {
			panic("boom")
		}), worker.WithWorkers(1))
		enqueue(q, 2)
		p.Start()
		So(p.Shutdown(context.Background()), ShouldBeNil)
		So(p.Stats().Failed, ShouldEqual, 2)
	})

	Convey("Given a slow applier and a short drain timeout", t, func() {
		q := queue.NewInMemoryQueue()
		release := make(chan struct{})
		p := worker.NewPool(q, worker.ApplierFunc(func(ctx context.Context, _ model.Event) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return ctx.Err()
		}), worker.WithWorkers(1), worker.WithDrainTimeout(30*time.Millisecond), worker.WithEventTimeout(time.Second))
		enqueue(q, 5)
		p.Start()

		err := p.Shutdown(context.Background())
		close(release)
		So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		So(p.Stats().Processed, ShouldBeLessThan, 5)
	})

	Convey("Given a supervised pool", t, func() {
		q := queue.NewInMemoryQueue()
		rec := &recorder{}
		p := worker.NewPool(q, rec, worker.WithWorkers(2))
		ctx, cancel := context.WithCancel(context.Background())
		enqueue(q, 4)

		done := make(chan error, 1)
		go func() { done <- p.Serve(ctx) }()
		So(func() bool {
			deadline := time.Now().Add(time.Second)
			for time.Now().Before(deadline) {
				if rec.count() == 4 {
					return true
				}
				time.Sleep(5 * time.Millisecond)
			}
			return false
		}(), ShouldBeTrue)

		cancel()
		So(errors.Is(<-done, worker.ErrStopped), ShouldBeTrue)
	})

	Convey("Given a supervised pool that the service also shuts down", t, func() {
		q := &closeCounter{InMemoryQueue: queue.NewInMemoryQueue()}
		rec := &recorder{}
		p := worker.NewPool(q, rec, worker.WithWorkers(2))
		ctx, cancel := context.WithCancel(context.Background())
		enqueue(q.InMemoryQueue, 3)

		done := make(chan error, 1)
		go func() { done <- p.Serve(ctx) }()
		So(eventuallyCount(rec, 3), ShouldBeTrue)
		cancel()
		So(errors.Is(<-done, worker.ErrStopped), ShouldBeTrue)

		Convey("Then later shutdowns succeed without closing the queue again", func() {
			So(p.Shutdown(context.Background()), ShouldBeNil)
			So(p.Shutdown(context.Background()), ShouldBeNil)
			So(q.count(), ShouldEqual, 1)
		})
	})

	Convey("Given a pool shut down before it started", t, func() {
		q := queue.NewInMemoryQueue()
		rec := &recorder{}
		p := worker.NewPool(q, rec, worker.WithWorkers(1))
		enqueue(q, 2)
		So(p.Shutdown(context.Background()), ShouldBeNil)

		Convey("Then Start launches no workers", func() {
			p.Start()
			So(p.Stats().Processed, ShouldEqual, 0)
			So(rec.count(), ShouldEqual, 0)
		})
	})
}

func eventuallyCount(rec *recorder, n int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if rec.count() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
