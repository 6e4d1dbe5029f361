// Package service wires the profile store, candidate sources, ranking and the
// event pipeline into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/okian/tailor/configs"
	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/mq/queue"
	"github.com/okian/tailor/internal/adapters/mq/worker"
	"github.com/okian/tailor/internal/adapters/repository"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/config"
	"github.com/okian/tailor/internal/domain/dedupe"
	"github.com/okian/tailor/internal/domain/feed"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/reel"
	"github.com/okian/tailor/internal/retrieval"
	"github.com/okian/tailor/pkg/logger"
)

// Service implements the API dependencies for the personalization system.
type Service struct {
	mu sync.RWMutex

	cfg       *config.Config
	now       func() time.Time
	logger    logger.Logger
	extraSink telemetry.Sink

	// Core components
	store     repository.Store
	source    catalog.Source
	resilient *catalog.Resilient
	products  int
	pools     cache.PoolCache
	orch      *retrieval.Orchestrator
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	workers   *worker.Pool
	locks     identityLocks

	closers []io.Closer
	started bool
}

// New constructs a Service. Nothing is opened until Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg: config.New(context.Background()),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NamedOrNop("service")
	}
	return s
}

// Start opens the store, loads the catalog and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.logger.Info(ctx, "starting personalization service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	if err := s.openSource(ctx); err != nil {
		s.closeAll(ctx)
		return err
	}

	s.resilient = catalog.NewResilient(s.source,
		catalog.WithTimeout(s.cfg.SourceTimeout()),
		catalog.WithRateLimit(s.cfg.SourceRatePerSec, s.cfg.SourceBurst),
		catalog.WithBreaker(uint32(s.cfg.BreakerFailureThreshold), s.cfg.BreakerOpenFor()), //nolint:gosec // validated positive
		catalog.WithLogger(s.logger.Named("catalog")),
	)
	s.pools = cache.New(s.cfg.PoolCacheTTL())

	sinks := telemetry.Multi{telemetry.Prometheus{}, telemetry.NewLog(s.logger.Named("telemetry"))}
	if s.extraSink != nil {
		sinks = append(sinks, s.extraSink)
	}

	s.orch = retrieval.New(s.resilient, s.store,
		retrieval.WithFeedRanker(feed.New(
			feed.WithHalfLife(s.cfg.HalfLifeDays),
			feed.WithVendorCap(s.cfg.VendorCap, s.cfg.DiversityWindow),
		)),
		retrieval.WithReelRanker(reel.New(
			reel.WithHalfLife(s.cfg.HalfLifeDays),
			reel.WithEarlyGuard(s.cfg.EarlyGuardSlots),
		)),
		retrieval.WithPoolCache(s.pools),
		retrieval.WithTelemetry(sinks),
		retrieval.WithCollections(collections(s.cfg.Collections)),
		retrieval.WithBudget(s.cfg.ProfileBudgetBytes),
		retrieval.WithHalfLife(s.cfg.HalfLifeDays),
		retrieval.WithSourceTimeout(s.cfg.SourceTimeout()),
		retrieval.WithFeedLimits(s.cfg.FeedDefaultLimit, s.cfg.FeedMaxLimit),
		retrieval.WithReelPageSize(s.cfg.ReelPageSize),
		retrieval.WithDebugMode(s.cfg.DebugMode),
		retrieval.WithClock(s.now),
		retrieval.WithLogger(s.logger.Named("retrieval")),
	)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.EventQueueSize))
	s.workers = worker.NewPool(s.queue, worker.ApplierFunc(s.apply),
		worker.WithWorkers(s.cfg.WorkerCount),
		worker.WithLogger(s.logger.Named("worker-pool")),
	)
	s.workers.Start()

	s.started = true
	s.logger.Info(ctx, "personalization service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queue_size", s.cfg.EventQueueSize),
		logger.Int("products", s.products),
		logger.String("profile_store", s.cfg.ProfileStore),
		logger.String("pool_cache", cache.Describe(s.pools)),
		logger.Bool("debug_mode", s.cfg.DebugMode),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.store != nil {
		return nil
	}
	switch s.cfg.ProfileStore {
	case config.StoreBadger:
		st, err := repository.OpenBadgerStore(s.cfg.BadgerPath,
			repository.WithClock(s.now),
			repository.WithLogger(s.logger.Named("badger-store")))
		if err != nil {
			return fmt.Errorf("open profile store: %w", err)
		}
		s.store = st
		s.closers = append(s.closers, st)
	default:
		s.store = repository.NewMemoryStore(
			repository.WithClock(s.now),
			repository.WithLogger(s.logger.Named("memory-store")))
	}
	s.logger.Info(ctx, "profile store ready", logger.String("kind", s.cfg.ProfileStore))
	return nil
}

func (s *Service) openSource(ctx context.Context) error {
	if s.source != nil {
		return nil
	}
	var (
		cat *catalog.Catalog
		err error
	)
	if s.cfg.CatalogPath != "" {
		cat, err = catalog.LoadFile(s.cfg.CatalogPath)
	} else {
		cat, err = catalog.Parse(configs.SampleCatalog)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s.source = cat
	s.products = cat.Len()
	s.logger.Info(ctx, "catalog loaded",
		logger.Int("products", cat.Len()),
		logger.Int("collections", len(cat.Collections())),
		logger.String("path", s.cfg.CatalogPath))
	return nil
}

func collections(in map[string][]string) map[model.Gender][]string {
	out := make(map[model.Gender][]string, len(in))
	for g, hs := range in {
		if strings.EqualFold(strings.TrimSpace(g), string(model.GenderUnknown)) {
			out[model.GenderUnknown] = append(out[model.GenderUnknown], hs...)
			continue
		}
		gender := model.ParseGender(g)
		out[gender] = append(out[gender], hs...)
	}
	return out
}

// Stop drains the worker pool and closes owned resources.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping personalization service...")

	var errs []error
	if err := s.workers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.closeAll(ctx)...)

	s.started = false
	s.logger.Info(ctx, "personalization service stopped")
	return errors.Join(errs...)
}

func (s *Service) closeAll(ctx context.Context) []error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.logger.Error(ctx, "close failed", logger.Error(err))
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errs
}

// Workers returns the event worker pool so it can be supervised.
func (s *Service) Workers() *worker.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workers
}

func (s *Service) running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Feed returns one page of the personalized home feed.
func (s *Service) Feed(ctx context.Context, req retrieval.FeedRequest) (retrieval.FeedPage, error) {
	if !s.running() {
		return retrieval.FeedPage{}, ErrNotStarted
	}
	return s.orch.Feed(ctx, req), nil
}

// Reel returns one page of the product reel seeded by req.Handle.
func (s *Service) Reel(ctx context.Context, req retrieval.ReelRequest) (retrieval.ReelPage, error) {
	if !s.running() {
		return retrieval.ReelPage{}, ErrNotStarted
	}
	return s.orch.Reel(ctx, req)
}

// DebugMode reports whether score breakdowns may be requested.
func (s *Service) DebugMode() bool { return s.cfg.DebugMode }
