package cache

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
)

func TestPoolCache(t *testing.T) {
	Convey("Given pool keys", t, func() {
		a := Key("feed", "female", "", "cursor", "hash")
		So(a, ShouldStartWith, "feed:")
		So(Key("feed", "female", "", "cursor", "hash"), ShouldEqual, a)
		So(Key("feed", "female", "cursor", "", "hash"), ShouldNotEqual, a)
		So(Key("reel", "female", "", "cursor", "hash"), ShouldNotEqual, a)
	})

	Convey("Given a TTL cache", t, func() {
		c := NewTTL(50 * time.Millisecond)
		pool := Pool{Items: []model.Candidate{{Handle: "a"}, {Handle: "b"}}, Next: "n1", More: true}
		c.Set("k", pool)

		Convey("Then a fresh entry is returned as a copy", func() {
			got, ok := c.Get("k")
			So(ok, ShouldBeTrue)
			So(got, ShouldResemble, pool)
			got.Items[0].Handle = "mutated"
			again, _ := c.Get("k")
			So(again.Items[0].Handle, ShouldEqual, "a")
			So(c.Len(), ShouldEqual, 1)
		})

		Convey("Then it expires", func() {
			time.Sleep(80 * time.Millisecond)
			_, ok := c.Get("k")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a disabled cache", t, func() {
		c := New(0)
		c.Set("k", Pool{Next: "x"})
		_, ok := c.Get("k")
		So(ok, ShouldBeFalse)
		So(Describe(c), ShouldEqual, "noop")
		So(Describe(New(time.Minute)), ShouldEqual, "ttl(0 entries)")
	})
}
