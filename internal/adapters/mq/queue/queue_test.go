package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/tailor/internal/domain/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func event(id string) model.Event {
	return model.Event{ID: id, Identity: "guest:1", Type: model.EventProductOpen, Handle: "red-hoodie"}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue of capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		So(q.Len(), ShouldEqual, 0)
		So(q.Cap(), ShouldEqual, 2)

		Convey("When events are enqueued they come out in order", func() {
			So(q.Enqueue(ctx, event("e1")), ShouldBeNil)
			So(q.Enqueue(ctx, event("e2")), ShouldBeNil)
			So(q.Len(), ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			So((<-ch).ID, ShouldEqual, "e1")
			So((<-ch).ID, ShouldEqual, "e2")
		})

		Convey("When the queue is full it pushes back", func() {
			So(q.Enqueue(ctx, event("e1")), ShouldBeNil)
			So(q.Enqueue(ctx, event("e2")), ShouldBeNil)
			So(q.Enqueue(ctx, event("e3")), ShouldEqual, ErrFull)
			So(q.Len(), ShouldEqual, 2)
		})

		Convey("When the caller already gave up nothing is queued", func() {
			dead, stop := context.WithCancel(context.Background())
			stop()
			So(errors.Is(q.Enqueue(dead, event("e1")), context.Canceled), ShouldBeTrue)
			So(q.Len(), ShouldEqual, 0)
		})

		Convey("When closed, queued events drain and the channel closes", func() {
			So(q.Enqueue(ctx, event("e1")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, event("e2")), ShouldEqual, ErrClosed)
			So(q.Close(), ShouldBeNil)

			var got []string
			for e := range q.Dequeue(ctx) {
				got = append(got, e.ID)
			}
			So(got, ShouldResemble, []string{"e1"})
		})
	})
}

func TestInMemoryQueueConcurrentAccess(t *testing.T) {
	Convey("Given concurrent producers and consumers", t, func() {
		q := NewInMemoryQueue(WithCapacity(64))
		ctx := context.Background()
		const producers, perProducer = 8, 50

		var consumed sync.Map
		var consumers sync.WaitGroup
		for i := 0; i < 4; i++ {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for e := range q.Dequeue(ctx) {
					consumed.Store(e.ID, true)
				}
			}()
		}

		var producersWG sync.WaitGroup
		for p := 0; p < producers; p++ {
			producersWG.Add(1)
			go func(p int) {
				defer producersWG.Done()
				for j := 0; j < perProducer; j++ {
					for q.Enqueue(ctx, event(fmt.Sprintf("e%d_%d", p, j))) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		producersWG.Wait()
		So(q.Close(), ShouldBeNil)
		consumers.Wait()

		Convey("Then every event is consumed exactly once", func() {
			n := 0
			consumed.Range(func(_, _ any) bool { n++; return true })
			So(n, ShouldEqual, producers*perProducer)
			So(q.Len(), ShouldEqual, 0)
		})
	})
}
