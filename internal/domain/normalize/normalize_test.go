package normalize

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
)

func TestFromNode(t *testing.T) {
	Convey("Given a storefront product node", t, func() {
		n := ProductNode{
			ID:               "gid://shop/Product/1",
			Handle:           " linen-shirt ",
			Title:            "Linen Shirt",
			Vendor:           "Mara",
			ProductType:      "Shirt",
			Tags:             []string{"linen", " ", "linen", "relaxed"},
			CreatedAt:        "2026-02-01T10:00:00Z",
			AvailableForSale: true,
			PriceRange: PriceRange{
				MinVariantPrice: MoneyV2{Amount: "49.90", CurrencyCode: "EUR"},
				MaxVariantPrice: MoneyV2{Amount: "59.90", CurrencyCode: "EUR"},
			},
			CompareAtPriceRange: &PriceRange{MinVariantPrice: MoneyV2{Amount: "79.00", CurrencyCode: "EUR"}},
		}
		for i := 0; i < 9; i++ {
			n.Images.Nodes = append(n.Images.Nodes, ImageNode{URL: "https://cdn/img.jpg"})
		}

		Convey("When it is normalized", func() {
			c, ok := FromNode(n)

			Convey("Then the canonical fields are filled", func() {
				So(ok, ShouldBeTrue)
				So(c.Handle, ShouldEqual, "linen-shirt")
				So(c.Tags, ShouldResemble, []string{"linen", "relaxed"})
				So(c.CreatedAt, ShouldEqual, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
				So(c.MinPrice, ShouldResemble, model.Money{Amount: 49.9, CurrencyCode: "EUR"})
				So(c.CompareAtPrice.Amount, ShouldEqual, 79)
				So(c.Images, ShouldHaveLength, MaxImages)
				So(c.FeaturedImage, ShouldNotBeNil)
				So(c.FeaturedImage.URL, ShouldEqual, "https://cdn/img.jpg")
			})
		})

		Convey("When the handle is missing", func() {
			n.Handle = ""
			_, ok := FromNode(n)
			So(ok, ShouldBeFalse)
		})

		Convey("When the prices and dates are garbage", func() {
			n.CreatedAt = "last tuesday"
			n.PriceRange.MinVariantPrice.Amount = "n/a"
			c, ok := FromNode(n)
			So(ok, ShouldBeTrue)
			So(c.CreatedAt.IsZero(), ShouldBeTrue)
			So(c.MinPrice.Amount, ShouldEqual, 0)
		})
	})

	Convey("Given connection edges with one invalid record", t, func() {
		edges := []ProductEdge{{Node: ProductNode{Handle: "a"}}, {Node: ProductNode{}}, {Node: ProductNode{Handle: "b"}}}
		got := FromEdges(edges)
		So(len(got), ShouldEqual, 2)
		So(got[1].Handle, ShouldEqual, "b")
		So(got[0].ID, ShouldEqual, "a")
	})
}

func TestFromRecommendation(t *testing.T) {
	Convey("Given a recommendation record", t, func() {
		compare := int64(12000)
		r := Recommendation{
			ID:             42,
			Handle:         "wool-coat",
			Title:          "Wool Coat",
			Type:           "Coat",
			Tags:           "wool, winter,,wool",
			PriceMin:       9900,
			CompareAtPrice: &compare,
			FeaturedImage:  "//cdn.shop/coat.jpg",
			Available:      true,
		}

		Convey("Then it is converted to a candidate", func() {
			c, ok := FromRecommendation(r, "USD")
			So(ok, ShouldBeTrue)
			So(c.ID, ShouldEqual, "42")
			So(c.ProductType, ShouldEqual, "Coat")
			So(c.Tags, ShouldResemble, []string{"wool", "winter"})
			So(c.MinPrice, ShouldResemble, model.Money{Amount: 99, CurrencyCode: "USD"})
			So(c.MaxPrice.Amount, ShouldEqual, 99)
			So(c.CompareAtPrice.Amount, ShouldEqual, 120)
			So(c.FeaturedImage.URL, ShouldEqual, "https://cdn.shop/coat.jpg")
		})

		Convey("Then blank handles are rejected", func() {
			r.Handle = "  "
			So(FromRecommendations([]Recommendation{r}, "USD"), ShouldBeEmpty)
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given overlapping pools", t, func() {
		a := []model.Candidate{{Handle: "seed"}, {Handle: "x", Title: "first"}, {Handle: "y"}}
		b := []model.Candidate{{Handle: "x", Title: "second"}, {Handle: "z"}, {Handle: ""}}

		Convey("When merged excluding the seed", func() {
			got := Merge(map[string]struct{}{"seed": {}}, a, b)

			Convey("Then the first occurrence wins and order is kept", func() {
				want := []model.Candidate{{Handle: "x", Title: "first"}, {Handle: "y"}, {Handle: "z"}}
				So(cmp.Diff(want, got), ShouldBeEmpty)
			})
		})
	})
}
