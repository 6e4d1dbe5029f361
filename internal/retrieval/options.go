package retrieval

import (
	"time"

	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/domain/feed"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/reel"
	"github.com/okian/tailor/pkg/logger"
)

// Option applies a configuration option to the orchestrator.
type Option func(*Orchestrator)

// WithFeedRanker sets the feed ranker.
func WithFeedRanker(r *feed.Ranker) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.feed = r
		}
	}
}

// WithReelRanker sets the reel ranker.
func WithReelRanker(r *reel.Ranker) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reel = r
		}
	}
}

// WithPoolCache sets the merged pool cache.
func WithPoolCache(c cache.PoolCache) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithTelemetry sets the telemetry sink.
func WithTelemetry(s telemetry.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithCollections sets the collection handles walked for each gender.
// Handles under GenderUnknown are used for visitors without a gender.
func WithCollections(c map[model.Gender][]string) Option {
	return func(o *Orchestrator) {
		o.collections = make(map[model.Gender][]string, len(c))
		for g, hs := range c {
			o.collections[g] = append([]string(nil), hs...)
		}
	}
}

// WithBudget sets the persisted profile byte budget.
func WithBudget(bytes int) Option {
	return func(o *Orchestrator) {
		if bytes > 0 {
			o.budget = bytes
		}
	}
}

// WithHalfLife sets the decay half-life used to pick personalized terms.
func WithHalfLife(days float64) Option {
	return func(o *Orchestrator) {
		if days > 0 {
			o.halfLife = days
		}
	}
}

// WithSourceTimeout bounds each source call.
func WithSourceTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.sourceTimeout = d
		}
	}
}

// WithFeedLimits sets the default and maximum feed page size.
func WithFeedLimits(def, maxLimit int) Option {
	return func(o *Orchestrator) {
		if def > 0 {
			o.feedDefault = def
		}
		if maxLimit > 0 {
			o.feedMax = maxLimit
		}
		if o.feedDefault > o.feedMax {
			o.feedDefault = o.feedMax
		}
	}
}

// WithReelPageSize sets the default reel page size.
func WithReelPageSize(n int) Option {
	return func(o *Orchestrator) {
		o.reelPageSize = reel.ClampPageSize(n)
	}
}

// WithDebugMode enables score breakdowns.
func WithDebugMode(on bool) Option {
	return func(o *Orchestrator) {
		o.debugMode = on
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}
