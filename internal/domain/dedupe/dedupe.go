// Package dedupe tracks behavioral event ids so a retried event is applied to
// a profile at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize is the number of ids remembered when no size is configured.
const DefaultMaxSize = 50000

// Deduper records seen event IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a rejected event (queue backpressure) can be
	// retried by the client.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper remembers ids in insertion order. In bounded mode a ring of
// maxSize slots records the order; when the ring is full the oldest slot is
// reclaimed, evicting its id unless it was already unrecorded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]uint64 // id -> insertion sequence
	ring    []slot            // bounded mode only
	next    uint64            // sequence of the next insertion
	oldest  uint64            // sequence of the oldest occupied slot
	maxSize int
	size    atomic.Int64
}

type slot struct {
	id  string
	seq uint64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64)
	if d.maxSize > 0 {
		d.ring = make([]slot, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 {
		if d.next-d.oldest >= uint64(d.maxSize) {
			d.reclaimOldest()
		}
		d.ring[d.next%uint64(d.maxSize)] = slot{id: id, seq: d.next}
	}
	d.seen[id] = d.next
	d.next++
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// reclaimOldest frees the oldest ring slot. Must be called with d.mu held.
func (d *inMemoryDeduper) reclaimOldest() {
	s := d.ring[d.oldest%uint64(d.maxSize)]
	d.oldest++
	if seq, ok := d.seen[s.id]; ok && seq == s.seq {
		delete(d.seen, s.id)
		d.size.Add(-1)
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
