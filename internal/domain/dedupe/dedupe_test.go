package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/dedupe"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		So(d.Size(), ShouldEqual, 0)

		Convey("A retried event id is reported as seen", func() {
			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "evt-2"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 2)
		})

		Convey("Ids are kept however many arrive", func() {
			for i := range 5000 {
				d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i))
			}
			So(d.Size(), ShouldEqual, 5000)
			So(d.SeenAndRecord(ctx, "evt-0"), ShouldBeTrue)
		})

		Convey("An unrecorded id can be accepted again", func() {
			d.SeenAndRecord(ctx, "evt-1")
			d.Unrecord(ctx, "evt-1")
			So(d.Size(), ShouldEqual, 0)
			So(d.SeenAndRecord(ctx, "evt-1"), ShouldBeFalse)

			d.Unrecord(ctx, "never-seen")
			So(d.Size(), ShouldEqual, 1)
		})
	})

	Convey("Given a deduper bounded to three ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for _, id := range []string{"a", "b", "c"} {
			So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
		}

		Convey("The oldest id is forgotten first", func() {
			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
		})

		Convey("Reclaiming the slot of an unrecorded id evicts nothing else", func() {
			d.Unrecord(ctx, "b")
			So(d.Size(), ShouldEqual, 2)

			So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 3)
			So(d.SeenAndRecord(ctx, "c"), ShouldBeTrue)
			So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
		})
	})

	Convey("Given an id recorded again after a backpressure rejection", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		d.SeenAndRecord(ctx, "x")
		d.Unrecord(ctx, "x")
		So(d.SeenAndRecord(ctx, "x"), ShouldBeFalse)

		Convey("Its stale slot does not evict the newer record", func() {
			d.SeenAndRecord(ctx, "y")
			d.SeenAndRecord(ctx, "z")
			So(d.SeenAndRecord(ctx, "x"), ShouldBeTrue)
			So(d.Size(), ShouldEqual, 3)
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given many goroutines submitting overlapping ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

		const (
			goroutines = 16
			ids        = 200
		)
		var (
			wg    sync.WaitGroup
			fresh atomic.Int64
		)
		for range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range ids {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("evt-%d", i)) {
						fresh.Add(1)
					}
				}
			}()
		}
		wg.Wait()

		Convey("Each id is accepted exactly once", func() {
			So(fresh.Load(), ShouldEqual, ids)
			So(d.Size(), ShouldEqual, ids)
		})
	})

	Convey("Given a small bound under concurrent load", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(50))

		var wg sync.WaitGroup
		for g := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range 500 {
					id := fmt.Sprintf("g%d-%d", g, i)
					d.SeenAndRecord(ctx, id)
					if i%3 == 0 {
						d.Unrecord(ctx, id)
					}
				}
			}()
		}
		wg.Wait()

		Convey("The size never exceeds the bound", func() {
			So(d.Size(), ShouldBeLessThanOrEqualTo, 50)
			So(d.Size(), ShouldBeGreaterThan, 0)
		})
	})
}
