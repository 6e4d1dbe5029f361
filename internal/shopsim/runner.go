package shopsim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tailor/configs"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/reel"
	"github.com/okian/tailor/pkg/logger"
)

// Runner executes one simulation.
type Runner struct {
	cfg    *Config
	client *Client
	logger logger.Logger
	now    func() time.Time

	stats      Stats
	rankingNS  atomic.Int64
	mu         sync.Mutex
	violations []string
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *Config, l logger.Logger) *Runner {
	if l == nil {
		l = logger.NamedOrNop("shopsim")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg, client: NewClient(cfg.BaseURL, cfg.Timeout), logger: l, now: time.Now}
}

// Run generates visitors, submits their events and verifies the pages the
// service serves them. Page violations are reported in Stats; the error is
// reserved for runs that could not complete.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	start := r.now()

	src, err := LoadCatalog(r.cfg.CatalogPath)
	if err != nil {
		return r.stats, err
	}
	shelf, err := LoadShelf(ctx, src)
	if err != nil {
		return r.stats, err
	}

	visitors := Generate(r.cfg, shelf, start)
	r.stats.Visitors = len(visitors)
	for _, v := range visitors {
		r.stats.EventsGenerated += len(v.Events)
	}
	r.logger.Info(ctx, "generated visitors",
		logger.Int("visitors", len(visitors)),
		logger.Int("events", r.stats.EventsGenerated))

	if r.cfg.OutputFile != "" {
		if err := WriteVisitors(r.cfg.OutputFile, visitors); err != nil {
			return r.stats, err
		}
	}

	if err := r.submit(ctx, visitors); err != nil {
		return r.finish(start), err
	}
	if r.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return r.finish(start), ctx.Err()
		case <-time.After(r.cfg.SettleDelay):
		}
	}
	if err := r.browse(ctx, visitors); err != nil {
		return r.finish(start), err
	}
	return r.finish(start), nil
}

// LoadCatalog reads the catalog at path, or the bundled sample when path is
// empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path != "" {
		return catalog.LoadFile(path)
	}
	return catalog.Parse(configs.SampleCatalog)
}

func (r *Runner) finish(start time.Time) Stats {
	st := r.stats
	st.Duration = r.now().Sub(start)
	if secs := st.Duration.Seconds(); secs > 0 {
		st.EventsPerSecond = float64(st.EventsAccepted) / secs
	}
	if pages := st.FeedPages + st.ReelPages; pages > 0 {
		st.RankingRequestMS = float64(r.rankingNS.Load()) / float64(pages) / 1e6
	}
	r.mu.Lock()
	st.Violations = append([]string(nil), r.violations...)
	r.mu.Unlock()
	return st
}

func (r *Runner) violate(msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	r.mu.Lock()
	r.violations = append(r.violations, msgs...)
	r.mu.Unlock()
}

// submit posts every event, keeping each visitor's events in order.
func (r *Runner) submit(ctx context.Context, visitors []Visitor) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range visitors {
		v := &visitors[i]
		g.Go(func() error {
			if v.Gender != model.GenderUnknown {
				if err := r.client.SetGender(ctx, v.Identity, v.Gender); err != nil {
					return fmt.Errorf("set gender for %s: %w", v.Identity, err)
				}
			}
			for k := range v.Events {
				r.submitOne(ctx, &v.Events[k])
			}
			return ctx.Err()
		})
	}
	err := g.Wait()
	r.logger.Info(ctx, "events submitted",
		logger.Int64("accepted", atomic.LoadInt64(&r.stats.EventsAccepted)),
		logger.Int64("duplicate", atomic.LoadInt64(&r.stats.EventsDuplicate)),
		logger.Int64("failed", atomic.LoadInt64(&r.stats.EventsFailed)))
	return err
}

func (r *Runner) submitOne(ctx context.Context, e *Event) {
	ack, err := r.client.SubmitEvent(ctx, e)
	switch {
	case err != nil:
		atomic.AddInt64(&r.stats.EventsFailed, 1)
		r.logger.Debug(ctx, "event rejected", logger.String("event_id", e.EventID), logger.Error(err))
	case ack.Duplicate:
		atomic.AddInt64(&r.stats.EventsDuplicate, 1)
	default:
		atomic.AddInt64(&r.stats.EventsAccepted, 1)
	}
}

// browse pages each visitor's feed, then a reel seeded by the first product
// of the feed.
func (r *Runner) browse(ctx context.Context, visitors []Visitor) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range visitors {
		v := &visitors[i]
		g.Go(func() error {
			seed, err := r.browseFeed(ctx, v)
			if err != nil {
				return err
			}
			if seed == "" && len(v.Events) > 0 {
				seed = v.Events[0].Handle
			}
			if seed == "" {
				return nil
			}
			return r.browseReel(ctx, v, seed)
		})
	}
	return g.Wait()
}

func (r *Runner) browseFeed(ctx context.Context, v *Visitor) (seed string, err error) {
	limit := maxFeedPage
	if r.cfg.PageLimit > 0 {
		limit = r.cfg.PageLimit
	}
	cursor := ""
	for page := 0; page < r.cfg.FeedPages; page++ {
		start := time.Now()
		resp, err := r.client.Feed(ctx, v.Identity, cursor, r.cfg.PageLimit)
		r.rankingNS.Add(int64(time.Since(start)))
		if err != nil {
			return seed, fmt.Errorf("feed page %d for %s: %w", page, v.Identity, err)
		}
		r.countPage(&r.stats.FeedPages, resp)
		r.violate(CheckPage("feed "+v.Identity, resp.Items, limit)...)
		if seed == "" && len(resp.Items) > 0 {
			seed = resp.Items[0].Handle
		}
		if resp.Cursor == nil {
			break
		}
		if *resp.Cursor == cursor {
			r.violate(fmt.Sprintf("feed %s: cursor did not advance on page %d", v.Identity, page))
			break
		}
		cursor = *resp.Cursor
	}
	return seed, nil
}

func (r *Runner) browseReel(ctx context.Context, v *Visitor, seed string) error {
	limit := maxReelPage
	if r.cfg.PageLimit > 0 {
		limit = reel.ClampPageSize(r.cfg.PageLimit) + 1
	}
	tracker := newReelTracker(seed)
	cursor := ""
	for page := 0; page < r.cfg.ReelPages; page++ {
		start := time.Now()
		resp, err := r.client.Reel(ctx, v.Identity, seed, cursor, r.cfg.PageLimit)
		r.rankingNS.Add(int64(time.Since(start)))
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && se.Status == 404 {
				r.violate(fmt.Sprintf("reel %s: seed served by the feed is unknown", seed))
				return nil
			}
			return fmt.Errorf("reel page %d for %s: %w", page, v.Identity, err)
		}
		r.countPage(&r.stats.ReelPages, resp)
		r.violate(CheckPage("reel "+seed, resp.Items, limit)...)
		r.violate(tracker.observe(page, resp.Items)...)
		if resp.Cursor == nil {
			break
		}
		cursor = *resp.Cursor
	}
	return nil
}

func (r *Runner) countPage(counter *int64, resp PageResponse) {
	atomic.AddInt64(counter, 1)
	atomic.AddInt64(&r.stats.ItemsServed, int64(len(resp.Items)))
	if resp.ColdStart {
		atomic.AddInt64(&r.stats.ColdStartPages, 1)
	}
	if len(resp.Failed) > 0 {
		atomic.AddInt64(&r.stats.DegradedPages, 1)
	}
}

// WriteVisitors stores visitors as indented JSON.
func WriteVisitors(path string, visitors []Visitor) error {
	data, err := json.MarshalIndent(visitors, "", "  ")
	if err != nil {
		return fmt.Errorf("encode visitors: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
