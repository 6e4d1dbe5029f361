package catalog

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/normalize"
	"github.com/okian/tailor/internal/domain/signal"
)

// DefaultCurrency is used when a catalog file names none.
const DefaultCurrency = "USD"

// File is the on-disk catalog document.
type File struct {
	Currency    string              `yaml:"currency"`
	Products    []Product           `yaml:"products"`
	Collections map[string][]string `yaml:"collections"`
}

// Product is one catalog record: a storefront product node plus the
// audience it is merchandised to.
type Product struct {
	normalize.ProductNode `yaml:",inline"`
	Gender                string `yaml:"gender"`
}

type entry struct {
	node      normalize.ProductNode
	candidate model.Candidate
	gender    model.Gender
	text      string
}

// Catalog serves every Source operation from an in-memory product list.
// It is safe for concurrent use; nothing mutates it after construction.
type Catalog struct {
	currency    string
	entries     []entry
	byHandle    map[string]int
	newest      []int
	collections map[string][]int
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return New(f)
}

// New builds a catalog from f. Products without a handle are skipped;
// duplicate handles and collections naming unknown products are rejected.
func New(f File) (*Catalog, error) {
	c := &Catalog{
		currency:    strings.ToUpper(strings.TrimSpace(f.Currency)),
		byHandle:    make(map[string]int, len(f.Products)),
		collections: make(map[string][]int, len(f.Collections)),
	}
	if c.currency == "" {
		c.currency = DefaultCurrency
	}
	for _, p := range f.Products {
		cand, ok := normalize.FromNode(p.ProductNode)
		if !ok {
			continue
		}
		if _, dup := c.byHandle[cand.Handle]; dup {
			return nil, fmt.Errorf("%w: duplicate handle %q", ErrInvalidCatalog, cand.Handle)
		}
		c.fillCurrency(&cand)
		c.byHandle[cand.Handle] = len(c.entries)
		c.entries = append(c.entries, entry{
			node:      p.ProductNode,
			candidate: cand,
			gender:    model.ParseGender(p.Gender),
			text:      searchText(cand),
		})
	}
	for name, handles := range f.Collections {
		idx := make([]int, 0, len(handles))
		for _, h := range handles {
			i, ok := c.byHandle[strings.TrimSpace(h)]
			if !ok {
				return nil, fmt.Errorf("%w: collection %q names unknown product %q", ErrInvalidCatalog, name, h)
			}
			idx = append(idx, i)
		}
		c.collections[strings.TrimSpace(name)] = idx
	}
	c.newest = make([]int, len(c.entries))
	for i := range c.newest {
		c.newest[i] = i
	}
	slices.SortStableFunc(c.newest, func(a, b int) int {
		ea, eb := c.entries[a].candidate, c.entries[b].candidate
		if d := eb.CreatedAt.Compare(ea.CreatedAt); d != 0 {
			return d
		}
		return strings.Compare(ea.Handle, eb.Handle)
	})
	return c, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.entries) }

// Collections returns the collection handles, sorted.
func (c *Catalog) Collections() []string {
	out := make([]string, 0, len(c.collections))
	for name := range c.collections {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Handles returns every product handle in catalog order.
func (c *Catalog) Handles() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.candidate.Handle
	}
	return out
}

// CollectionPage implements Source.
func (c *Catalog) CollectionPage(ctx context.Context, handle, cursor string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	idx, ok := c.collections[strings.TrimSpace(handle)]
	if !ok {
		return Page{}, fmt.Errorf("collection %q: %w", handle, ErrNotFound)
	}
	off, err := parseOffset(cursor)
	if err != nil {
		return Page{}, err
	}
	window, next, hasNext := paginate(idx, off, limit)
	nodes := make([]normalize.ProductNode, len(window))
	for i, j := range window {
		nodes[i] = c.entries[j].node
	}
	return Page{Items: c.priced(normalize.FromNodes(nodes)), Cursor: next, HasNext: hasNext}, nil
}

// Search implements Source. Products match when they contain at least one
// term (or when no terms are given) and pass every filter; more matching
// terms rank first, then newer products.
func (c *Catalog) Search(ctx context.Context, q SearchQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	off, err := parseOffset(q.Cursor)
	if err != nil {
		return Page{}, err
	}
	terms := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if t = signal.NormalizeKey(t); t != "" {
			terms = append(terms, " "+t+" ")
		}
	}
	types := keySet(q.ProductTypes)
	vendors := keySet(q.Vendors)

	type hit struct{ i, n int }
	var hits []hit
	for _, i := range c.newest {
		e := c.entries[i]
		if !genderMatches(q.Gender, e.gender) ||
			!inSet(types, e.candidate.ProductType) ||
			!inSet(vendors, e.candidate.Vendor) {
			continue
		}
		n := 0
		for _, t := range terms {
			if strings.Contains(e.text, t) {
				n++
			}
		}
		if len(terms) > 0 && n == 0 {
			continue
		}
		hits = append(hits, hit{i, n})
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return b.n - a.n })

	order := make([]int, len(hits))
	for k, h := range hits {
		order[k] = h.i
	}
	window, next, hasNext := paginate(order, off, q.Limit)
	edges := make([]normalize.ProductEdge, len(window))
	for k, i := range window {
		edges[k] = normalize.ProductEdge{Cursor: strconv.Itoa(off + k + 1), Node: c.entries[i].node}
	}
	return Page{Items: c.priced(normalize.FromEdges(edges)), Cursor: next, HasNext: hasNext}, nil
}

// Recommended implements Source. Products sharing tags, type or vendor with
// the seed are returned in the recommendation API shape.
func (c *Catalog) Recommended(ctx context.Context, handle string, limit int) ([]model.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	si, ok := c.byHandle[strings.TrimSpace(handle)]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", handle, ErrNotFound)
	}
	seed := c.entries[si].candidate
	seedTags := keySet(seed.Tags)

	type hit struct{ i, n int }
	var hits []hit
	for _, i := range c.newest {
		if i == si {
			continue
		}
		cand := c.entries[i].candidate
		n := 0
		for _, t := range cand.Tags {
			if inSet(seedTags, t) {
				n++
			}
		}
		if seed.ProductType != "" && strings.EqualFold(seed.ProductType, cand.ProductType) {
			n += 2
		}
		if seed.Vendor != "" && strings.EqualFold(seed.Vendor, cand.Vendor) {
			n++
		}
		if n > 0 {
			hits = append(hits, hit{i, n})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int { return b.n - a.n })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	recs := make([]normalize.Recommendation, len(hits))
	for k, h := range hits {
		recs[k] = toRecommendation(c.entries[h.i].node, h.i+1)
	}
	return normalize.FromRecommendations(recs, c.currency), nil
}

// ProductByHandle implements Source.
func (c *Catalog) ProductByHandle(ctx context.Context, handle string) (model.Candidate, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Candidate{}, false, err
	}
	i, ok := c.byHandle[strings.TrimSpace(handle)]
	if !ok {
		return model.Candidate{}, false, nil
	}
	return c.entries[i].candidate, true, nil
}

// Newest implements Source.
func (c *Catalog) Newest(ctx context.Context, cursor string, limit int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	off, err := parseOffset(cursor)
	if err != nil {
		return Page{}, err
	}
	window, next, hasNext := paginate(c.newest, off, limit)
	items := make([]model.Candidate, len(window))
	for k, i := range window {
		items[k] = c.entries[i].candidate
	}
	return Page{Items: items, Cursor: next, HasNext: hasNext}, nil
}

// priced fills in the catalog currency where a source record omitted it.
func (c *Catalog) priced(items []model.Candidate) []model.Candidate {
	for k := range items {
		c.fillCurrency(&items[k])
	}
	return items
}

func (c *Catalog) fillCurrency(cand *model.Candidate) {
	for _, m := range []*model.Money{&cand.MinPrice, &cand.MaxPrice, cand.CompareAtPrice} {
		if m != nil && m.CurrencyCode == "" {
			m.CurrencyCode = c.currency
		}
	}
}

func paginate(idx []int, off, limit int) (window []int, next string, hasNext bool) {
	if limit <= 0 {
		limit = len(idx)
	}
	if off >= len(idx) {
		return nil, "", false
	}
	end := min(off+limit, len(idx))
	if end < len(idx) {
		return idx[off:end], strconv.Itoa(end), true
	}
	return idx[off:end], "", false
}

func parseOffset(cursor string) (int, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return n, nil
}

func searchText(c model.Candidate) string {
	parts := []string{c.Handle, c.Title, c.Vendor, c.ProductType}
	parts = append(parts, c.Tags...)
	tokens := signal.Tokenize(strings.Join(parts, " "))
	return " " + strings.Join(tokens, " ") + " " + strings.Join(signal.DeriveTags(parts...), " ") + " "
}

// genderMatches admits unisex products for everyone and everything for
// visitors of unknown gender.
func genderMatches(want, have model.Gender) bool {
	if !known(want) || !known(have) {
		return true
	}
	return want == have
}

func known(g model.Gender) bool {
	return g == model.GenderMale || g == model.GenderFemale
}

func keySet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if k := signal.NormalizeKey(v); k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

// inSet reports whether v is in set; an empty set admits everything.
func inSet(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[signal.NormalizeKey(v)]
	return ok
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// toRecommendation renders a node the way the recommendation API does.
func toRecommendation(n normalize.ProductNode, fallbackID int) normalize.Recommendation {
	r := normalize.Recommendation{
		ID:        int64(fallbackID),
		Handle:    n.Handle,
		Title:     n.Title,
		Vendor:    n.Vendor,
		Type:      n.ProductType,
		Tags:      strings.Join(n.Tags, ", "),
		CreatedAt: n.CreatedAt,
		Available: n.AvailableForSale,
		PriceMin:  minorUnits(n.PriceRange.MinVariantPrice.Amount),
		PriceMax:  minorUnits(n.PriceRange.MaxVariantPrice.Amount),
	}
	if m := trailingDigits.FindString(n.ID); m != "" {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			r.ID = id
		}
	}
	if n.CompareAtPriceRange != nil {
		if v := minorUnits(n.CompareAtPriceRange.MinVariantPrice.Amount); v > 0 {
			r.CompareAtPrice = &v
		}
	}
	if n.FeaturedImage != nil {
		r.FeaturedImage = n.FeaturedImage.URL
	}
	for _, img := range n.Images.Nodes {
		r.Images = append(r.Images, img.URL)
	}
	return r
}

func minorUnits(amount string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f*100 + 0.5)
}
