// Package repository persists visitor profiles.
//
// Stores keep the encoded wire form and decode it defensively on read, so a
// corrupted or outdated record degrades to an empty profile instead of an
// error.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/metrics"
)

// Store reads and writes profiles by opaque visitor identity.
type Store interface {
	// Get returns the stored profile and whether one existed.
	Get(ctx context.Context, identity string) (signal.Profile, bool, error)
	// Set replaces the stored profile. Last write wins.
	Set(ctx context.Context, identity string, p signal.Profile) error
	// Reset deletes the stored profile. Deleting a missing profile is not an error.
	Reset(ctx context.Context, identity string) error
	// Count returns the number of stored profiles.
	Count(ctx context.Context) (int, error)
}

func normalizeIdentity(identity string) (string, error) {
	id := strings.TrimSpace(identity)
	if id == "" {
		return "", ErrEmptyIdentity
	}
	return id, nil
}

// observe records latency and failures of one store operation.
func observe(op string, start time.Time, err error) {
	metrics.RecordProfileStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordProfileStoreError(op)
	}
}
