package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/metrics"
)

// Key prefix for BadgerDB storage.
const profileKeyPrefix = "profile:"

// BadgerStore persists encoded profiles in BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	owned  bool
	closed atomic.Bool
	opts   options
}

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, opts ...Option) *BadgerStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &BadgerStore{db: db, opts: o}
}

// OpenBadgerStore opens (or creates) a database at path. An empty path opens
// an in-memory database. Close releases it.
func OpenBadgerStore(path string, opts ...Option) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	s := NewBadgerStore(db, opts...)
	s.owned = true
	return s, nil
}

func profileKey(id string) []byte {
	return []byte(profileKeyPrefix + id)
}

// Get returns the stored profile for identity.
func (s *BadgerStore) Get(ctx context.Context, identity string) (p signal.Profile, ok bool, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return signal.Profile{}, false, err
	}
	if s.closed.Load() {
		return signal.Profile{}, false, ErrClosed
	}

	var raw []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return signal.Profile{}, false, err
	}

	now := s.opts.now()
	if raw == nil {
		return signal.CreateEmpty(now), false, nil
	}
	return s.opts.decode(ctx, id, raw, now), true, nil
}

// Set stores p for identity.
func (s *BadgerStore) Set(_ context.Context, identity string, p signal.Profile) (err error) {
	defer func(start time.Time) { observe("set", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	raw, err := signal.Encode(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	metrics.RecordProfileBytes(len(raw))
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(profileKey(id), raw); err != nil {
			return fmt.Errorf("set profile: %w", err)
		}
		return nil
	})
}

// Reset removes the profile of identity.
func (s *BadgerStore) Reset(_ context.Context, identity string) (err error) {
	defer func(start time.Time) { observe("reset", start, err) }(time.Now())

	id, err := normalizeIdentity(identity)
	if err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(profileKey(id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete profile: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored profiles.
func (s *BadgerStore) Count(context.Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(profileKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !s.owned {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}
