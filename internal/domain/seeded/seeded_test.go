package seeded_test

import (
	"testing"

	"github.com/okian/tailor/internal/domain/seeded"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRand(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := seeded.New("2026-01-01|denim-jacket")
		b := seeded.New("2026-01-01|denim-jacket")

		Convey("Then they produce identical sequences", func() {
			for i := 0; i < 100; i++ {
				So(a.Uint32(), ShouldEqual, b.Uint32())
			}
		})
	})

	Convey("Given a generator", t, func() {
		r := seeded.New("bounds")

		Convey("Then Float64 stays within [0,1)", func() {
			for i := 0; i < 10_000; i++ {
				v := r.Float64()
				So(v >= 0 && v < 1, ShouldBeTrue)
			}
		})
	})

	Convey("Given different seeds", t, func() {
		Convey("Then the first values differ", func() {
			So(seeded.Unit("a", "b"), ShouldNotEqual, seeded.Unit("a", "c"))
		})
	})
}

func TestHash32(t *testing.T) {
	Convey("Given the FNV-1a reference vectors", t, func() {
		So(seeded.Hash32(""), ShouldEqual, uint32(0x811c9dc5))
		So(seeded.Hash32("a"), ShouldEqual, uint32(0xe40c292c))
	})
}

func TestJitter(t *testing.T) {
	Convey("Given an amplitude", t, func() {
		Convey("Then jitter stays within the symmetric bound", func() {
			for i := 0; i < 500; i++ {
				j := seeded.Jitter(0.04, "day", string(rune('a'+i%26)), string(rune(i)))
				So(j, ShouldBeBetweenOrEqual, -0.04, 0.04)
			}
		})

		Convey("Then it is stable for identical parts", func() {
			So(seeded.Jitter(0.1, "x", "y"), ShouldEqual, seeded.Jitter(0.1, "x", "y"))
		})
	})
}
