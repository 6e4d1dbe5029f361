package reel

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/signal"
)

var now = time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)

func item(handle, title, productType, vendor string, tags ...string) model.Candidate {
	return model.Candidate{
		ID:          handle,
		Handle:      handle,
		Title:       title,
		ProductType: productType,
		Vendor:      vendor,
		Tags:        tags,
		CreatedAt:   now.Add(-10 * 24 * time.Hour),
		Available:   true,
	}
}

func categoryOf(c model.Candidate) signal.Category {
	return signal.Infer(signal.InputFromCandidate(&c)).Category
}

func mixedPool(nA, nOther int) []model.Candidate {
	var pool []model.Candidate
	for i := 0; i < nOther; i++ {
		pool = append(pool, item(fmt.Sprintf("tee-%02d", i), "Boxy Tee", "T-Shirt", "Loom"))
		pool = append(pool, item(fmt.Sprintf("sneaker-%02d", i), "Court Sneakers", "Shoes", "Stride"))
	}
	for i := 0; i < nA; i++ {
		pool = append(pool, item(fmt.Sprintf("jeans-%02d", i), "Straight Jeans", "Jeans", fmt.Sprintf("Mill %d", i)))
	}
	return pool
}

func TestDistance(t *testing.T) {
	Convey("Given the category graph", t, func() {
		So(Distance(signal.CategoryDenim, signal.CategoryDenim), ShouldEqual, 0)
		So(Distance(signal.CategoryDenim, signal.CategoryPants), ShouldEqual, 1)
		So(Distance(signal.CategoryPants, signal.CategoryDenim), ShouldEqual, 1)
		So(Distance(signal.CategoryDenim, signal.CategoryShorts), ShouldEqual, 2)
		So(Distance(signal.CategoryDenim, signal.CategoryFootwear), ShouldEqual, MaxDistance)
		So(Distance("", signal.CategoryBags), ShouldEqual, 1)
		So(Distance(signal.CategoryBags, ""), ShouldEqual, 2)
		So(Distance("capes", signal.CategoryBags), ShouldEqual, MaxDistance)
	})

	Convey("Given page sizes", t, func() {
		So(ClampPageSize(0), ShouldEqual, DefaultPageSize)
		So(ClampPageSize(3), ShouldEqual, MinPageSize)
		So(ClampPageSize(10), ShouldEqual, 10)
		So(ClampPageSize(100), ShouldEqual, MaxPageSize)
	})
}

func TestEarlyGuard(t *testing.T) {
	seed := item("selvedge-jeans", "Slim Selvedge Jeans", "Jeans", "Northfold", "denim", "indigo", "cotton", "slim")

	Convey("Given a denim seed and a pool where other categories outnumber denim 10:1", t, func() {
		p := signal.CreateEmpty(now)
		pool := mixedPool(3, 15)

		Convey("When the first page is ranked", func() {
			res := New().Rank(seed, p, pool, Options{Now: now, Page: 0, Limit: DefaultPageSize})

			Convey("Then the leading results stay in the seed category", func() {
				So(len(res.Items), ShouldBeLessThanOrEqualTo, DefaultPageSize)
				for _, c := range res.Items[:3] {
					So(categoryOf(c), ShouldEqual, signal.CategoryDenim)
				}
				So(res.Stats.CategorySwitchPrevented, ShouldEqual, DefaultGuardSlots-3)
			})
		})

		Convey("When a later page is ranked", func() {
			res := New().Rank(seed, p, pool, Options{Now: now, Page: 1, Limit: DefaultPageSize})

			Convey("Then drift is allowed", func() {
				So(res.Items, ShouldHaveLength, DefaultPageSize)
				So(res.Stats.CategorySwitchPrevented, ShouldEqual, 0)
				So(res.Stats.Guarded, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a visitor with strong affinity for an off-category vendor", t, func() {
		p := signal.CreateEmpty(now)
		for i := 0; i < 20; i++ {
			p = signal.ApplyEvent(p, model.Event{Type: model.EventAddToCart, Vendor: "Loom"}, now)
		}
		pool := mixedPool(3, 15)

		Convey("When the first page is ranked", func() {
			res := New().Rank(seed, p, pool, Options{Now: now, Page: 0, Limit: DefaultPageSize})

			Convey("Then every seed-category candidate leads the page", func() {
				So(res.Stats.ColdStart, ShouldBeFalse)
				So(len(res.Items), ShouldBeGreaterThanOrEqualTo, 3)
				for _, c := range res.Items[:3] {
					So(categoryOf(c), ShouldEqual, signal.CategoryDenim)
				}
				So(res.Stats.Guarded, ShouldEqual, 30)
			})
		})

		Convey("When a later page is ranked", func() {
			res := New().Rank(seed, p, pool, Options{Now: now, Page: 1, Limit: DefaultPageSize})

			Convey("Then affinity may pull another category ahead", func() {
				So(categoryOf(res.Items[0]), ShouldNotEqual, signal.CategoryDenim)
			})
		})
	})

	Convey("Given enough seed-category candidates", t, func() {
		res := New().Rank(seed, signal.CreateEmpty(now), mixedPool(12, 60), Options{Now: now, Limit: DefaultPageSize})

		Convey("Then the first ten are all in the seed category", func() {
			for _, c := range res.Items[:10] {
				So(categoryOf(c), ShouldEqual, signal.CategoryDenim)
			}
		})
	})

	Convey("Given a similar product in an adjacent category", t, func() {
		jacket := item("selvedge-jacket", "Selvedge Trucker Jacket", "Jacket", "Northfold", "denim", "indigo", "cotton", "slim")
		pool := []model.Candidate{jacket, item("jeans-a", "Straight Jeans", "Jeans", "Mill")}

		Convey("When ranked on the first page with debug rows", func() {
			res := New().Rank(seed, signal.CreateEmpty(now), pool, Options{Now: now, Debug: true})

			Convey("Then it is penalised but kept behind the seed category", func() {
				So(handlesOf(res.Items), ShouldResemble, []string{"jeans-a", "selvedge-jacket"})
				So(res.Breakdown[1].Components["guard"], ShouldEqual, -guardPenalty)
				So(res.Breakdown[1].Components["distance"], ShouldEqual, 1)
			})
		})

		Convey("When the guard is disabled", func() {
			res := New(WithEarlyGuard(0)).Rank(seed, signal.CreateEmpty(now), pool, Options{Now: now, Debug: true})
			So(res.Stats.Guarded, ShouldEqual, 0)
		})
	})
}

func handlesOf(items []model.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Handle
	}
	return out
}

func TestRankBasics(t *testing.T) {
	seed := item("linen-shirt", "Linen Shirt", "Shirt", "Mara", "linen")

	Convey("Given a pool that contains the seed and duplicates", t, func() {
		pool := []model.Candidate{seed, item("oxford", "Oxford Shirt", "Shirt", "Mara"), item("oxford", "Oxford Shirt", "Shirt", "Mara"), item("tee", "Tee", "T-Shirt", "Loom")}
		res := New().Rank(seed, signal.CreateEmpty(now), pool, Options{Now: now, Page: 1})

		Convey("Then the seed and duplicates are skipped", func() {
			So(handlesOf(res.Items), ShouldResemble, []string{"oxford", "tee"})
		})
	})

	Convey("Given identical inputs", t, func() {
		pool := mixedPool(5, 10)
		a := New().Rank(seed, signal.CreateEmpty(now), pool, Options{Now: now, Page: 2})
		b := New().Rank(seed, signal.CreateEmpty(now), pool, Options{Now: now, Page: 2})
		So(cmp.Diff(handlesOf(a.Items), handlesOf(b.Items)), ShouldBeEmpty)
	})

	Convey("Given a warm profile that likes a vendor", t, func() {
		p := signal.CreateEmpty(now)
		for i := 0; i < 4; i++ {
			p = signal.ApplyEvent(p, model.Event{Type: model.EventAddToCart, Vendor: "Loom"}, now)
		}
		pool := []model.Candidate{item("tee-a", "Tee", "T-Shirt", "Other"), item("tee-b", "Tee", "T-Shirt", "Loom")}

		Convey("Then affinity breaks the tie", func() {
			res := New().Rank(seed, p, pool, Options{Now: now, Page: 1})
			So(res.Stats.ColdStart, ShouldBeFalse)
			So(res.Items[0].Handle, ShouldEqual, "tee-b")
		})
	})

	Convey("Given a seed with no recognisable category", t, func() {
		odd := item("mystery", "Mystery Box", "", "")
		res := New().Rank(odd, signal.CreateEmpty(now), mixedPool(2, 10), Options{Now: now})

		Convey("Then the guard does not run", func() {
			So(res.Stats.Guarded, ShouldEqual, 0)
			So(res.Items, ShouldHaveLength, DefaultPageSize)
		})
	})
}
