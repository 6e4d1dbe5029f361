// Package normalize maps heterogeneous product records onto model.Candidate.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/okian/tailor/internal/domain/model"
)

// MaxImages caps the gallery kept per candidate.
const MaxImages = 6

// MoneyV2 is a storefront money value with a decimal string amount.
type MoneyV2 struct {
	Amount       string `json:"amount" yaml:"amount"`
	CurrencyCode string `json:"currencyCode" yaml:"currencyCode"`
}

// PriceRange is a storefront min/max variant price.
type PriceRange struct {
	MinVariantPrice MoneyV2 `json:"minVariantPrice" yaml:"minVariantPrice"`
	MaxVariantPrice MoneyV2 `json:"maxVariantPrice" yaml:"maxVariantPrice"`
}

// ImageNode is a storefront image.
type ImageNode struct {
	URL     string `json:"url" yaml:"url"`
	AltText string `json:"altText" yaml:"altText"`
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
}

// ImageConnection wraps a list of images.
type ImageConnection struct {
	Nodes []ImageNode `json:"nodes" yaml:"nodes"`
}

// ProductNode is the product shape of collection pages, search results and
// single product lookups.
type ProductNode struct {
	ID                  string          `json:"id" yaml:"id"`
	Handle              string          `json:"handle" yaml:"handle"`
	Title               string          `json:"title" yaml:"title"`
	Vendor              string          `json:"vendor" yaml:"vendor"`
	ProductType         string          `json:"productType" yaml:"productType"`
	Tags                []string        `json:"tags" yaml:"tags"`
	CreatedAt           string          `json:"createdAt" yaml:"createdAt"`
	AvailableForSale    bool            `json:"availableForSale" yaml:"availableForSale"`
	FeaturedImage       *ImageNode      `json:"featuredImage" yaml:"featuredImage"`
	Images              ImageConnection `json:"images" yaml:"images"`
	PriceRange          PriceRange      `json:"priceRange" yaml:"priceRange"`
	CompareAtPriceRange *PriceRange     `json:"compareAtPriceRange" yaml:"compareAtPriceRange"`
}

// ProductEdge is the connection wrapper used by paginated sources.
type ProductEdge struct {
	Cursor string      `json:"cursor"`
	Node   ProductNode `json:"node"`
}

// Recommendation is the shape returned by the product recommendation API:
// numeric ids, comma separated tags and prices in minor units.
type Recommendation struct {
	ID             int64    `json:"id"`
	Handle         string   `json:"handle"`
	Title          string   `json:"title"`
	Vendor         string   `json:"vendor"`
	Type           string   `json:"type"`
	Tags           string   `json:"tags"`
	CreatedAt      string   `json:"created_at"`
	Available      bool     `json:"available"`
	PriceMin       int64    `json:"price_min"`
	PriceMax       int64    `json:"price_max"`
	CompareAtPrice *int64   `json:"compare_at_price"`
	FeaturedImage  string   `json:"featured_image"`
	Images         []string `json:"images"`
}

// FromNode converts a storefront product. Records without a handle are
// rejected.
func FromNode(n ProductNode) (model.Candidate, bool) {
	handle := strings.TrimSpace(n.Handle)
	if handle == "" {
		return model.Candidate{}, false
	}
	c := model.Candidate{
		ID:          n.ID,
		Handle:      handle,
		Title:       strings.TrimSpace(n.Title),
		Vendor:      strings.TrimSpace(n.Vendor),
		ProductType: strings.TrimSpace(n.ProductType),
		Tags:        cleanTags(n.Tags),
		CreatedAt:   parseTime(n.CreatedAt),
		Available:   n.AvailableForSale,
		MinPrice:    money(n.PriceRange.MinVariantPrice),
		MaxPrice:    money(n.PriceRange.MaxVariantPrice),
	}
	if c.ID == "" {
		c.ID = handle
	}
	for _, img := range n.Images.Nodes {
		if len(c.Images) == MaxImages {
			break
		}
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		c.Images = append(c.Images, image(img))
	}
	switch {
	case n.FeaturedImage != nil && strings.TrimSpace(n.FeaturedImage.URL) != "":
		img := image(*n.FeaturedImage)
		c.FeaturedImage = &img
	case len(c.Images) > 0:
		img := c.Images[0]
		c.FeaturedImage = &img
	}
	if n.CompareAtPriceRange != nil {
		if m := money(n.CompareAtPriceRange.MinVariantPrice); m.Amount > 0 {
			c.CompareAtPrice = &m
		}
	}
	return c, true
}

// FromNodes converts every valid node, keeping order.
func FromNodes(nodes []ProductNode) []model.Candidate {
	out := make([]model.Candidate, 0, len(nodes))
	for _, n := range nodes {
		if c, ok := FromNode(n); ok {
			out = append(out, c)
		}
	}
	return out
}

// FromEdges converts connection edges, keeping order.
func FromEdges(edges []ProductEdge) []model.Candidate {
	out := make([]model.Candidate, 0, len(edges))
	for _, e := range edges {
		if c, ok := FromNode(e.Node); ok {
			out = append(out, c)
		}
	}
	return out
}

// FromRecommendation converts a recommendation record priced in currency.
func FromRecommendation(r Recommendation, currency string) (model.Candidate, bool) {
	handle := strings.TrimSpace(r.Handle)
	if handle == "" {
		return model.Candidate{}, false
	}
	c := model.Candidate{
		ID:          strconv.FormatInt(r.ID, 10),
		Handle:      handle,
		Title:       strings.TrimSpace(r.Title),
		Vendor:      strings.TrimSpace(r.Vendor),
		ProductType: strings.TrimSpace(r.Type),
		Tags:        cleanTags(strings.Split(r.Tags, ",")),
		CreatedAt:   parseTime(r.CreatedAt),
		Available:   r.Available,
		MinPrice:    cents(r.PriceMin, currency),
		MaxPrice:    cents(max(r.PriceMax, r.PriceMin), currency),
	}
	if r.ID == 0 {
		c.ID = handle
	}
	for _, u := range r.Images {
		if len(c.Images) == MaxImages {
			break
		}
		if u = normalizeURL(u); u != "" {
			c.Images = append(c.Images, model.Image{URL: u})
		}
	}
	if u := normalizeURL(r.FeaturedImage); u != "" {
		c.FeaturedImage = &model.Image{URL: u}
	} else if len(c.Images) > 0 {
		img := c.Images[0]
		c.FeaturedImage = &img
	}
	if r.CompareAtPrice != nil && *r.CompareAtPrice > 0 {
		m := cents(*r.CompareAtPrice, currency)
		c.CompareAtPrice = &m
	}
	return c, true
}

// FromRecommendations converts every valid record, keeping order.
func FromRecommendations(recs []Recommendation, currency string) []model.Candidate {
	out := make([]model.Candidate, 0, len(recs))
	for _, r := range recs {
		if c, ok := FromRecommendation(r, currency); ok {
			out = append(out, c)
		}
	}
	return out
}

// Merge concatenates pools de-duplicated by handle. The first occurrence
// wins; handles in excluded are skipped.
func Merge(excluded map[string]struct{}, pools ...[]model.Candidate) []model.Candidate {
	total := 0
	for _, p := range pools {
		total += len(p)
	}
	out := make([]model.Candidate, 0, total)
	seen := make(map[string]struct{}, total+len(excluded))
	for h := range excluded {
		seen[h] = struct{}{}
	}
	for _, pool := range pools {
		for _, c := range pool {
			if c.Handle == "" {
				continue
			}
			if _, dup := seen[c.Handle]; dup {
				continue
			}
			seen[c.Handle] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func money(m MoneyV2) model.Money {
	amount, err := strconv.ParseFloat(strings.TrimSpace(m.Amount), 64)
	if err != nil || amount < 0 {
		amount = 0
	}
	return model.Money{Amount: amount, CurrencyCode: m.CurrencyCode}
}

func cents(v int64, currency string) model.Money {
	if v < 0 {
		v = 0
	}
	return model.Money{Amount: float64(v) / 100, CurrencyCode: currency}
}

func image(n ImageNode) model.Image {
	return model.Image{URL: strings.TrimSpace(n.URL), AltText: n.AltText, Width: n.Width, Height: n.Height}
}

// normalizeURL resolves protocol-relative CDN URLs.
func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
