package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/tailor/internal/adapters/mq/queue"
	"github.com/okian/tailor/internal/domain/compact"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

const lockStripes = 64

// identityLocks serializes read-modify-write cycles per visitor so two workers
// never interleave updates to the same profile.
type identityLocks [lockStripes]sync.Mutex

func (l *identityLocks) lock(identity string) func() {
	m := &l[xxhash.Sum64String(strings.TrimSpace(identity))%lockStripes]
	m.Lock()
	return m.Unlock
}

// SubmitEvent validates e and queues it for the worker pool. It reports
// duplicate=true without queueing when the event id was already accepted.
// A full queue forgets the id again so the client can retry.
func (s *Service) SubmitEvent(ctx context.Context, e model.Event) (duplicate bool, err error) { //nolint:gocritic // hugeParam: events travel by value
	if !s.running() {
		return false, ErrNotStarted
	}
	e.Identity = strings.TrimSpace(e.Identity)
	switch {
	case strings.TrimSpace(e.ID) == "":
		return false, fmt.Errorf("%w: missing event id", ErrInvalidEvent)
	case e.Identity == "":
		return false, fmt.Errorf("%w: missing identity", ErrInvalidEvent)
	case !e.Type.Valid():
		metrics.RecordEventRejected("unknown_type")
		return false, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}

	if s.deduper.SeenAndRecord(ctx, e.ID) {
		metrics.RecordEventDuplicate()
		s.logger.Debug(ctx, "duplicate event detected, skipping",
			logger.String("event_id", e.ID),
			logger.String("identity", e.Identity))
		return true, nil
	}

	if err := s.queue.Enqueue(ctx, e); err != nil {
		s.deduper.Unrecord(ctx, e.ID)
		if errors.Is(err, queue.ErrFull) || errors.Is(err, queue.ErrClosed) {
			metrics.RecordEventRejected("backpressure")
			return false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return false, err
	}
	metrics.RecordEventAccepted()
	return false, nil
}

// apply folds one event into the stored profile.
func (s *Service) apply(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	unlock := s.locks.lock(e.Identity)
	defer unlock()

	p, _, err := s.store.Get(ctx, e.Identity)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", e.Identity, err)
	}
	at := s.now()
	if !e.At.IsZero() && e.At.Before(at) {
		at = e.At
	}
	p = signal.ApplyEvent(p, e, at)
	p = s.compact(ctx, e.Identity, p)
	if err := s.store.Set(ctx, e.Identity, p); err != nil {
		return fmt.Errorf("store profile %s: %w", e.Identity, err)
	}
	return nil
}

func (s *Service) compact(ctx context.Context, identity string, p signal.Profile) signal.Profile {
	out, rep := compact.Run(p, s.cfg.ProfileBudgetBytes, s.now())
	metrics.RecordCompaction(string(rep.Stage))
	metrics.RecordProfileBytes(rep.Bytes)
	if rep.Stage != compact.StageAsIs {
		s.logger.Info(ctx, "profile compacted",
			logger.String("identity", identity),
			logger.String("stage", string(rep.Stage)),
			logger.Int("bytes", rep.Bytes))
	}
	return out
}
