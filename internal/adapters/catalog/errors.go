package catalog

import "errors"

var (
	// ErrNotFound is returned when a collection or product does not exist.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalidCursor is returned for a continuation token this source did not issue.
	ErrInvalidCursor = errors.New("catalog: invalid cursor")
	// ErrInvalidCatalog is returned when a catalog document cannot be used.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
	// ErrSourceUnavailable is returned when a source is throttled, open or timed out.
	ErrSourceUnavailable = errors.New("catalog: source unavailable")
)
