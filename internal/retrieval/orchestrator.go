// Package retrieval drives a page request end to end: it loads the visitor
// profile, fans out to the candidate sources, merges their results, ranks
// them, and persists the cooled-down, compacted profile.
//
// Sources are best-effort. A source that fails or times out contributes no
// candidates; a page is only empty when every source failed.
package retrieval

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/repository"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/domain/compact"
	"github.com/okian/tailor/internal/domain/feed"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/reel"
	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// Defaults.
const (
	DefaultSourceTimeout = 2500 * time.Millisecond
	DefaultFeedLimit     = 20
	DefaultFeedMaxLimit  = 60

	walkFanout      = 2
	backfillHandles = 4
	maxSourcePage   = 100
)

// Orchestrator serves feed and reel pages. It is safe for concurrent use;
// concurrent requests for the same visitor race and the last write wins.
type Orchestrator struct {
	source catalog.Source
	store  repository.Store
	feed   *feed.Ranker
	reel   *reel.Ranker
	cache  cache.PoolCache
	sink   telemetry.Sink
	logger logger.Logger
	now    func() time.Time

	collections   map[model.Gender][]string
	budget        int
	halfLife      float64
	sourceTimeout time.Duration
	feedDefault   int
	feedMax       int
	reelPageSize  int
	debugMode     bool
}

// New creates an orchestrator over source and store.
func New(source catalog.Source, store repository.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:        source,
		store:         store,
		feed:          feed.New(),
		reel:          reel.New(),
		cache:         cache.Noop{},
		sink:          telemetry.Noop{},
		logger:        logger.NamedOrNop("retrieval"),
		now:           time.Now,
		budget:        compact.DefaultBudget,
		halfLife:      signal.DefaultHalfLifeDays,
		sourceTimeout: DefaultSourceTimeout,
		feedDefault:   DefaultFeedLimit,
		feedMax:       DefaultFeedMaxLimit,
		reelPageSize:  reel.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DebugMode reports whether score breakdowns are enabled.
func (o *Orchestrator) DebugMode() bool { return o.debugMode }

// visitor is the profile loaded for one request.
type visitor struct {
	identity string
	profile  signal.Profile
	// persist is false for anonymous requests and when the stored profile
	// could not be read, so a failed read never overwrites it.
	persist bool
}

func (o *Orchestrator) load(ctx context.Context, identity string, now time.Time) visitor {
	if identity == "" {
		return visitor{profile: signal.CreateEmpty(now)}
	}
	p, _, err := o.store.Get(ctx, identity)
	if err != nil {
		o.logger.Warn(ctx, "profile read failed; ranking without personalization",
			logger.String("identity", identity), logger.Error(err))
		return visitor{identity: identity, profile: signal.CreateEmpty(now)}
	}
	return visitor{identity: identity, profile: p, persist: true}
}

// finish applies the served cooldown, compacts and stores the profile.
func (o *Orchestrator) finish(ctx context.Context, v visitor, served []string, now time.Time) {
	if !v.persist || len(served) == 0 {
		return
	}
	p := signal.ApplyServedCooldown(v.profile, served, now)
	p, rep := compact.Run(p, o.budget, now)
	metrics.RecordCompaction(string(rep.Stage))
	if rep.Stage != compact.StageAsIs {
		o.logger.Info(ctx, "profile compacted",
			logger.String("identity", v.identity),
			logger.String("stage", string(rep.Stage)),
			logger.Int("steps", rep.Steps),
			logger.Int("bytes", rep.Bytes))
	}
	if err := o.store.Set(ctx, v.identity, p); err != nil {
		o.logger.Warn(ctx, "profile write failed",
			logger.String("identity", v.identity), logger.Error(err))
	}
}

// collectionsFor returns the collection handles walked for g.
func (o *Orchestrator) collectionsFor(g model.Gender) []string {
	if hs := o.collections[g]; len(hs) > 0 {
		return hs
	}
	if hs := o.collections[model.GenderUnknown]; len(hs) > 0 {
		return hs
	}
	genders := make([]string, 0, len(o.collections))
	for k := range o.collections {
		genders = append(genders, string(k))
	}
	slices.Sort(genders)
	var out []string
	for _, k := range genders {
		for _, h := range o.collections[model.Gender(k)] {
			if !slices.Contains(out, h) {
				out = append(out, h)
			}
		}
	}
	return out
}

// topHandles returns the visitor's strongest product handles.
func (o *Orchestrator) topHandles(p signal.Profile, now time.Time, n int) []string {
	keys := signal.TopKeys(p.Signals.ByProductHandle, n, now, o.halfLife)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Key)
	}
	return out
}

func (o *Orchestrator) emit(ctx context.Context, surface, identity string, counters map[string]int, rows []model.ScoreRow) {
	for name, n := range counters {
		if n > 0 {
			o.sink.Count(ctx, surface, name, n)
		}
	}
	if len(rows) > 0 {
		o.sink.Breakdown(ctx, surface, identity, rows)
	}
}

// fanout runs source calls concurrently. Each call gets its own timeout;
// failures are logged and counted but never abort the other calls. Only
// cancellation of the parent context stops the group.
type fanout struct {
	o       *Orchestrator
	ctx     context.Context
	g       *errgroup.Group
	surface string

	mu        sync.Mutex
	attempted int
	failed    []string
}

func (o *Orchestrator) fanout(ctx context.Context, surface string) *fanout {
	g, gctx := errgroup.WithContext(ctx)
	return &fanout{o: o, ctx: gctx, g: g, surface: surface}
}

func (f *fanout) run(source string, fn func(ctx context.Context) error) {
	f.mu.Lock()
	f.attempted++
	f.mu.Unlock()
	f.g.Go(func() error {
		ctx, cancel := context.WithTimeout(f.ctx, f.o.sourceTimeout)
		defer cancel()
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if f.ctx.Err() != nil {
			return f.ctx.Err()
		}
		f.o.logger.Warn(f.ctx, "candidate source failed",
			logger.String("surface", f.surface),
			logger.String("source", source),
			logger.Error(err))
		f.mu.Lock()
		f.failed = append(f.failed, source)
		f.mu.Unlock()
		return nil
	})
}

// wait blocks until every call returned. It reports the parent context
// error if the request was abandoned.
func (f *fanout) wait() (attempted int, failed []string, err error) {
	err = f.g.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	slices.Sort(f.failed)
	return f.attempted, f.failed, err
}

func sourcePage(n int) int {
	return min(max(n, 1), maxSourcePage)
}
