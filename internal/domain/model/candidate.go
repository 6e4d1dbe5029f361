package model

import "time"

// Image is a product image reference.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// Money is an amount in a currency.
type Money struct {
	Amount       float64 `json:"amount"`
	CurrencyCode string  `json:"currencyCode"`
}

// Candidate is the normalized, source-agnostic projection of a product.
// Candidates are values; ranking never mutates them.
type Candidate struct {
	ID             string    `json:"id"`
	Handle         string    `json:"handle"`
	Title          string    `json:"title"`
	Vendor         string    `json:"vendor,omitempty"`
	ProductType    string    `json:"productType,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Available      bool      `json:"availableForSale"`
	FeaturedImage  *Image    `json:"featuredImage,omitempty"`
	Images         []Image   `json:"images,omitempty"`
	MinPrice       Money     `json:"minPrice"`
	MaxPrice       Money     `json:"maxPrice"`
	CompareAtPrice *Money    `json:"compareAtPrice,omitempty"`
}

// AgeDays returns the candidate age in days at now. Unknown creation dates
// count as a year old so they never look fresh.
func (c *Candidate) AgeDays(now time.Time) float64 {
	if c.CreatedAt.IsZero() {
		return 365
	}
	d := now.Sub(c.CreatedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

// ScoreRow is one debug breakdown line for a ranked candidate.
type ScoreRow struct {
	Rank       int                `json:"rank"`
	Handle     string             `json:"handle"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}
