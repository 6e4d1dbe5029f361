package shopsim

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/seeded"
)

// Share of events that land on a favorite product type.
const favoriteShare = 0.7

// eventWeights make cheap signals common and purchases rare.
var eventWeights = []struct {
	t model.EventType
	w float64
}{
	{model.EventProductOpen, 40},
	{model.EventTimeOnProduct8s, 15},
	{model.EventScroll75, 12},
	{model.EventVariantSelect, 10},
	{model.EventScroll100, 8},
	{model.EventAddToWishlist, 7},
	{model.EventAddToCart, 6},
	{model.EventSearchClick, 2},
}

// visitorNamespace derives stable visitor ids from the run seed.
var visitorNamespace = uuid.MustParse("6f1c2a0e-5d4b-4f7e-9a51-3c2b1d0e8f77")

// Shelf is the part of the catalog a simulation browses.
type Shelf struct {
	byGender map[model.Gender][]model.Candidate
	all      []model.Candidate
}

// LoadShelf reads every product from src, grouped by the gender filters the
// source applies.
func LoadShelf(ctx context.Context, src catalog.Source) (*Shelf, error) {
	s := &Shelf{byGender: make(map[model.Gender][]model.Candidate, 3)}
	for _, g := range []model.Gender{model.GenderFemale, model.GenderMale, model.GenderUnknown} {
		items, err := searchAll(ctx, src, g)
		if err != nil {
			return nil, err
		}
		s.byGender[g] = items
	}
	s.all = s.byGender[model.GenderUnknown]
	if len(s.all) == 0 {
		return nil, fmt.Errorf("shopsim: catalog has no products")
	}
	return s, nil
}

func searchAll(ctx context.Context, src catalog.Source, g model.Gender) ([]model.Candidate, error) {
	var (
		out    []model.Candidate
		cursor string
	)
	for {
		page, err := src.Search(ctx, catalog.SearchQuery{Gender: g, Cursor: cursor, Limit: 100})
		if err != nil {
			return nil, fmt.Errorf("shopsim: list %s products: %w", g, err)
		}
		out = append(out, page.Items...)
		if !page.HasNext {
			return out, nil
		}
		cursor = page.Cursor
	}
}

// Generate builds cfg.Visitors visitors with cfg.EventsPerVisitor events
// each. The same seed and shelf always give the same visitors.
func Generate(cfg *Config, shelf *Shelf, now time.Time) []Visitor {
	rng := seeded.New("shopsim:" + cfg.Seed)
	visitors := make([]Visitor, cfg.Visitors)
	for i := range visitors {
		visitors[i] = generateVisitor(rng, cfg, shelf, i, now)
	}
	return visitors
}

func generateVisitor(rng *seeded.Rand, cfg *Config, shelf *Shelf, index int, now time.Time) Visitor {
	id := uuid.NewSHA1(visitorNamespace, []byte(cfg.Seed+":"+strconv.Itoa(index)))
	v := Visitor{Identity: "guest:" + id.String()}

	switch r := rng.Float64(); {
	case r < 0.45:
		v.Gender = model.GenderFemale
	case r < 0.9:
		v.Gender = model.GenderMale
	default:
		v.Gender = model.GenderUnknown
	}
	pool := shelf.byGender[v.Gender]
	if len(pool) == 0 {
		pool = shelf.all
	}

	types := productTypes(pool)
	for len(v.Favorites) < 2 && len(v.Favorites) < len(types) {
		t := types[int(rng.Uint32())%len(types)]
		if !slices.Contains(v.Favorites, t) {
			v.Favorites = append(v.Favorites, t)
		}
	}
	var favored []model.Candidate
	for _, c := range pool {
		if slices.Contains(v.Favorites, c.ProductType) {
			favored = append(favored, c)
		}
	}

	v.Events = make([]Event, cfg.EventsPerVisitor)
	start := now.Add(-time.Duration(cfg.EventsPerVisitor) * time.Minute)
	for k := range v.Events {
		from := pool
		if len(favored) > 0 && rng.Float64() < favoriteShare {
			from = favored
		}
		c := from[int(rng.Uint32())%len(from)]
		v.Events[k] = Event{
			EventID:     fmt.Sprintf("%s-%04d", id.String()[:8], k),
			Identity:    v.Identity,
			Type:        string(pickType(rng)),
			Handle:      c.Handle,
			Vendor:      c.Vendor,
			ProductType: c.ProductType,
			Title:       c.Title,
			Tags:        c.Tags,
			TS:          start.Add(time.Duration(k) * time.Minute).UTC().Format(time.RFC3339),
		}
	}
	return v
}

func pickType(rng *seeded.Rand) model.EventType {
	total := 0.0
	for _, w := range eventWeights {
		total += w.w
	}
	r := rng.Float64() * total
	for _, w := range eventWeights {
		if r < w.w {
			return w.t
		}
		r -= w.w
	}
	return model.EventProductOpen
}

func productTypes(pool []model.Candidate) []string {
	var out []string
	for _, c := range pool {
		if c.ProductType != "" && !slices.Contains(out, c.ProductType) {
			out = append(out, c.ProductType)
		}
	}
	slices.Sort(out)
	return out
}
