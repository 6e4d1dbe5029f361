package service

import (
	"context"

	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/mq/worker"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/metrics"
)

// ProfileView is a stored profile with derived facts about it.
type ProfileView struct {
	Identity  string         `json:"identity"`
	Exists    bool           `json:"exists"`
	ColdStart bool           `json:"coldStart"`
	Hash      string         `json:"hash"`
	Bytes     int            `json:"bytes"`
	Profile   signal.Profile `json:"profile"`
}

func (s *Service) view(identity string, p signal.Profile, exists bool) ProfileView {
	return ProfileView{
		Identity:  identity,
		Exists:    exists,
		ColdStart: signal.ColdStart(p, s.now(), s.cfg.HalfLifeDays),
		Hash:      signal.Hash(p),
		Bytes:     signal.EncodedSize(p),
		Profile:   p,
	}
}

// Profile returns the normalized stored profile for identity. A missing
// profile is returned empty with Exists false.
func (s *Service) Profile(ctx context.Context, identity string) (ProfileView, error) {
	if !s.running() {
		return ProfileView{}, ErrNotStarted
	}
	p, ok, err := s.store.Get(ctx, identity)
	if err != nil {
		return ProfileView{}, err
	}
	return s.view(identity, p, ok), nil
}

// ResetProfile deletes the stored profile for identity.
func (s *Service) ResetProfile(ctx context.Context, identity string) error {
	if !s.running() {
		return ErrNotStarted
	}
	unlock := s.locks.lock(identity)
	defer unlock()
	return s.store.Reset(ctx, identity)
}

// SetGender stores gender on the profile of identity.
func (s *Service) SetGender(ctx context.Context, identity string, g model.Gender) (ProfileView, error) {
	if !s.running() {
		return ProfileView{}, ErrNotStarted
	}
	unlock := s.locks.lock(identity)
	defer unlock()

	p, _, err := s.store.Get(ctx, identity)
	if err != nil {
		return ProfileView{}, err
	}
	p = signal.SetGender(p, g, s.now())
	if err := s.store.Set(ctx, identity, p); err != nil {
		return ProfileView{}, err
	}
	return s.view(identity, p, true), nil
}

// Stats are service statistics for monitoring.
type Stats struct {
	Started      bool              `json:"started"`
	DebugMode    bool              `json:"debugMode"`
	Products     int               `json:"products"`
	Profiles     int               `json:"profiles"`
	QueueLength  int               `json:"queueLength"`
	QueueSize    int               `json:"queueSize"`
	DedupeSize   int64             `json:"dedupeSize"`
	Workers      worker.Stats      `json:"workers"`
	PoolCache    string            `json:"poolCache"`
	SourceStates map[string]string `json:"sourceStates"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Started:   s.started,
		DebugMode: s.cfg.DebugMode,
		QueueSize: s.cfg.EventQueueSize,
	}
	if !s.started {
		return st
	}

	st.Products = s.products
	if n, err := s.store.Count(ctx); err == nil {
		st.Profiles = n
	}
	st.QueueLength = s.queue.Len()
	st.DedupeSize = s.deduper.Size()
	st.Workers = s.workers.Stats()
	st.PoolCache = cache.Describe(s.pools)
	st.SourceStates = make(map[string]string, 5)
	for _, src := range []string{
		catalog.SourceCollection, catalog.SourceSearch, catalog.SourceRecommended,
		catalog.SourceProduct, catalog.SourceNewest,
	} {
		st.SourceStates[src] = s.resilient.State(src).String()
	}

	metrics.UpdateQueueSize(st.QueueLength)
	return st
}
