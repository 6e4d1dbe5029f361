package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
)

const fixture = `
currency: eur
products:
  - id: gid://shop/Product/101
    handle: red-hoodie
    title: Red Hoodie
    vendor: Acme
    productType: Hoodies
    tags: [hoodie, cotton, red]
    createdAt: "2026-03-01T00:00:00Z"
    availableForSale: true
    gender: female
    priceRange:
      minVariantPrice: {amount: "49.90"}
      maxVariantPrice: {amount: "59.90"}
    compareAtPriceRange:
      minVariantPrice: {amount: "79.00"}
      maxVariantPrice: {amount: "79.00"}
  - id: gid://shop/Product/102
    handle: grey-hoodie
    title: Grey Hoodie
    vendor: Acme
    productType: Hoodies
    tags: [hoodie, fleece, grey]
    createdAt: "2026-03-05T00:00:00Z"
    availableForSale: true
    gender: male
  - id: gid://shop/Product/103
    handle: slim-jeans
    title: Slim Jeans
    vendor: Denimco
    productType: Jeans
    tags: [denim, slim]
    createdAt: "2026-02-01T00:00:00Z"
    availableForSale: false
  - handle: ""
    title: dropped
  - id: gid://shop/Product/104
    handle: white-tee
    title: White Tee
    vendor: Basics
    productType: T-Shirts
    tags: [cotton, tee, white]
    createdAt: "2026-03-03T00:00:00Z"
    availableForSale: true
    gender: female
collections:
  womens-tops: [red-hoodie, white-tee]
  all: [red-hoodie, grey-hoodie, slim-jeans, white-tee]
`

func handles(items []model.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Handle
	}
	return out
}

func TestCatalog(t *testing.T) {
	Convey("Given a parsed catalog", t, func() {
		ctx := context.Background()
		c, err := Parse([]byte(fixture))
		So(err, ShouldBeNil)
		So(c.Len(), ShouldEqual, 4)
		So(c.Collections(), ShouldResemble, []string{"all", "womens-tops"})

		Convey("Newest pages by creation date", func() {
			p, err := c.Newest(ctx, "", 2)
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"grey-hoodie", "white-tee"})
			So(p.HasNext, ShouldBeTrue)

			p, err = c.Newest(ctx, p.Cursor, 2)
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"red-hoodie", "slim-jeans"})
			So(p.HasNext, ShouldBeFalse)
			So(p.Cursor, ShouldBeEmpty)
		})

		Convey("Collection pages keep merchandised order and fill currency", func() {
			p, err := c.CollectionPage(ctx, "womens-tops", "", 10)
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"red-hoodie", "white-tee"})
			So(p.Items[0].MinPrice, ShouldResemble, model.Money{Amount: 49.90, CurrencyCode: "EUR"})
			So(p.Items[0].CompareAtPrice.Amount, ShouldEqual, 79.0)

			_, err = c.CollectionPage(ctx, "missing", "", 10)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = c.CollectionPage(ctx, "all", "not-a-number", 10)
			So(errors.Is(err, ErrInvalidCursor), ShouldBeTrue)
		})

		Convey("Search ranks by matching terms and applies filters", func() {
			p, err := c.Search(ctx, SearchQuery{Terms: []string{"cotton", "hoodie"}, Limit: 10})
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"red-hoodie", "grey-hoodie", "white-tee"})

			p, err = c.Search(ctx, SearchQuery{Terms: []string{"hoodie"}, Gender: model.GenderMale, Limit: 10})
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"grey-hoodie"})

			p, err = c.Search(ctx, SearchQuery{Vendors: []string{"ACME"}, ProductTypes: []string{"hoodies"}, Limit: 1})
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"grey-hoodie"})
			So(p.HasNext, ShouldBeTrue)
		})

		Convey("Recommendations come back through the recommendation shape", func() {
			items, err := c.Recommended(ctx, "red-hoodie", 5)
			So(err, ShouldBeNil)
			So(handles(items), ShouldResemble, []string{"grey-hoodie", "white-tee"})
			So(items[0].ID, ShouldEqual, "102")
			So(items[0].MinPrice.CurrencyCode, ShouldEqual, "EUR")

			_, err = c.Recommended(ctx, "nope", 5)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Single product lookup", func() {
			p, ok, err := c.ProductByHandle(ctx, "slim-jeans")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(p.Available, ShouldBeFalse)

			_, ok, err = c.ProductByHandle(ctx, "nope")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("A cancelled context fails fast", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.Newest(cctx, "", 1)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given invalid catalogs", t, func() {
		_, err := Parse([]byte("products: [oops"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)

		_, err = Parse([]byte("products:\n  - handle: a\n  - handle: a\n"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)

		_, err = Parse([]byte("products:\n  - handle: a\ncollections:\n  c: [b]\n"))
		So(errors.Is(err, ErrInvalidCatalog), ShouldBeTrue)
	})
}

type flakySource struct {
	Source
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *flakySource) Newest(ctx context.Context, _ string, _ int) (Page, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Page{}, f.err
	}
	return Page{Items: []model.Candidate{{Handle: "a"}}}, nil
}

func (f *flakySource) Recommended(context.Context, string, int) ([]model.Candidate, error) {
	f.calls.Add(1)
	return nil, ErrNotFound
}

func TestResilient(t *testing.T) {
	Convey("Given a resilient wrapper", t, func() {
		ctx := context.Background()

		Convey("Successful calls pass through", func() {
			r := NewResilient(&flakySource{})
			p, err := r.Newest(ctx, "", 10)
			So(err, ShouldBeNil)
			So(handles(p.Items), ShouldResemble, []string{"a"})
		})

		Convey("Consecutive failures open the breaker", func() {
			src := &flakySource{err: errors.New("upstream 502")}
			r := NewResilient(src, WithBreaker(2, time.Minute), WithRateLimit(0, 0))
			for i := 0; i < 2; i++ {
				_, err := r.Newest(ctx, "", 10)
				So(err, ShouldNotBeNil)
			}
			So(r.State(SourceNewest), ShouldEqual, gobreaker.StateOpen)

			_, err := r.Newest(ctx, "", 10)
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
			So(src.calls.Load(), ShouldEqual, 2)
			So(r.State(SourceSearch), ShouldEqual, gobreaker.StateClosed)
		})

		Convey("Not-found answers do not trip the breaker", func() {
			src := &flakySource{}
			r := NewResilient(src, WithBreaker(1, time.Minute))
			for i := 0; i < 3; i++ {
				_, err := r.Recommended(ctx, "x", 5)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			}
			So(r.State(SourceRecommended), ShouldEqual, gobreaker.StateClosed)
		})

		Convey("Slow calls time out as unavailable", func() {
			src := &flakySource{delay: time.Second}
			r := NewResilient(src, WithTimeout(20*time.Millisecond))
			_, err := r.Newest(ctx, "", 10)
			So(errors.Is(err, ErrSourceUnavailable), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})
	})
}
