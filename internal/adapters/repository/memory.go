package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/metrics"
)

// MemoryStore keeps encoded profiles in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	opts options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{data: make(map[string][]byte), opts: o}
}

// Get returns the stored profile for identity.
func (s *MemoryStore) Get(ctx context.Context, identity string) (p signal.Profile, ok bool, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return signal.Profile{}, false, err
	}
	s.mu.RLock()
	raw, ok := s.data[id]
	s.mu.RUnlock()
	now := s.opts.now()
	if !ok {
		return signal.CreateEmpty(now), false, nil
	}
	return s.opts.decode(ctx, id, raw, now), true, nil
}

// Set stores p for identity.
func (s *MemoryStore) Set(_ context.Context, identity string, p signal.Profile) (err error) {
	defer func(start time.Time) { observe("set", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}
	raw, err := signal.Encode(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	metrics.RecordProfileBytes(len(raw))
	s.mu.Lock()
	s.data[id] = raw
	s.mu.Unlock()
	return nil
}

// Reset removes the profile of identity.
func (s *MemoryStore) Reset(_ context.Context, identity string) (err error) {
	defer func(start time.Time) { observe("reset", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored profiles.
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}
