// Package catalog provides the candidate sources the retrieval orchestrator
// fans out to, and a decorator that bounds each call.
package catalog

import (
	"context"

	"github.com/okian/tailor/internal/domain/model"
)

// Source names, used as metric and log labels.
const (
	SourceCollection  = "collection"
	SourceSearch      = "search"
	SourceRecommended = "recommended"
	SourceProduct     = "product"
	SourceNewest      = "newest"
)

// Page is one page of a paginated source. Cursor is empty when HasNext is false.
type Page struct {
	Items   []model.Candidate
	Cursor  string
	HasNext bool
}

// SearchQuery is a term search with optional filters.
type SearchQuery struct {
	Terms        []string
	Gender       model.Gender
	ProductTypes []string
	Vendors      []string
	Cursor       string
	Limit        int
}

// Source provides candidate products.
type Source interface {
	// CollectionPage returns one page of the collection with handle.
	CollectionPage(ctx context.Context, handle, cursor string, limit int) (Page, error)
	// Search returns one page of products matching q.
	Search(ctx context.Context, q SearchQuery) (Page, error)
	// Recommended returns products recommended alongside handle.
	Recommended(ctx context.Context, handle string, limit int) ([]model.Candidate, error)
	// ProductByHandle looks up a single product.
	ProductByHandle(ctx context.Context, handle string) (model.Candidate, bool, error)
	// Newest returns one page of products, newest first.
	Newest(ctx context.Context, cursor string, limit int) (Page, error)
}
