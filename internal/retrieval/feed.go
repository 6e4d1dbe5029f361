package retrieval

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/domain/cursor"
	"github.com/okian/tailor/internal/domain/feed"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/normalize"
	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// Personalized search terms taken from each bucket.
const (
	searchTags     = 3
	searchTypes    = 2
	searchVendors  = 2
	feedPoolFactor = 2
)

// FeedRequest asks for one feed page.
type FeedRequest struct {
	Identity string
	Cursor   string
	Limit    int
	Debug    bool
}

// FeedPage is one ranked feed page. Cursor is empty when there is nothing
// further to page through.
type FeedPage struct {
	Items     []model.Candidate
	Cursor    string
	ColdStart bool
	Debug     []model.ScoreRow
	Failed    []string
}

// feedPool is the merged retrieval result plus the source state after it.
type feedPool struct {
	items     []model.Candidate
	state     cursor.Feed
	exhausted bool
	attempted int
	failed    []string
}

// Feed serves one feed page.
func (o *Orchestrator) Feed(ctx context.Context, req FeedRequest) FeedPage {
	start := time.Now()
	now := o.now()
	v := o.load(ctx, req.Identity, now)

	state, ok := cursor.DecodeFeed(req.Cursor)
	if !ok && req.Cursor != "" {
		o.logger.Warn(ctx, "discarding unreadable feed cursor",
			logger.String("identity", req.Identity), logger.String("surface", telemetry.SurfaceFeed))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = o.feedDefault
	}
	limit = min(limit, o.feedMax)

	pool, err := o.feedPool(ctx, v.profile, state, limit, now, req.Cursor)
	if err != nil {
		return FeedPage{Cursor: req.Cursor}
	}
	if pool.attempted > 0 && len(pool.failed) == pool.attempted {
		o.logger.Warn(ctx, "every feed source failed",
			logger.String("identity", req.Identity), logger.Any("sources", pool.failed))
		return FeedPage{Cursor: req.Cursor, Failed: pool.failed}
	}

	res := o.feed.Rank(v.profile, pool.items, feed.Options{
		Now:              now,
		Limit:            limit,
		DateKey:          feed.DateKey(now),
		ExplorationRatio: feed.ExplorationRatio(state.Page),
		PageDepth:        state.Page,
		Debug:            o.debugMode,
	})

	next := pool.state
	next.Page = state.Page + 1
	page := FeedPage{Items: res.Items, ColdStart: res.Stats.ColdStart, Failed: pool.failed}
	if !(pool.exhausted && len(res.Items) < limit) && len(res.Items) > 0 {
		page.Cursor = cursor.EncodeFeed(next)
	}
	if req.Debug {
		page.Debug = res.Breakdown
	}

	o.emit(ctx, telemetry.SurfaceFeed, req.Identity, map[string]int{
		telemetry.CooldownDeferred:  res.Stats.CooldownDeferred,
		telemetry.VendorCapDeferred: res.Stats.VendorCapDeferred,
		telemetry.SourceFailed:      len(pool.failed),
	}, res.Breakdown)
	metrics.RecordPageServed(telemetry.SurfaceFeed, res.Stats.ColdStart)
	metrics.RecordRankingLatency(telemetry.SurfaceFeed, float64(time.Since(start).Microseconds())/1000)

	o.finish(ctx, v, handlesOf(res.Items), now)
	return page
}

// feedPool returns the merged candidates for state, from the cache when
// possible.
func (o *Orchestrator) feedPool(ctx context.Context, p signal.Profile, state cursor.Feed, limit int, now time.Time, raw string) (feedPool, error) {
	key := cache.Key(telemetry.SurfaceFeed, string(p.Gender), "", raw, signal.Hash(p))
	if hit, ok := o.cache.Get(key); ok {
		if st, ok := cursor.DecodeFeed(hit.Next); ok || hit.Next == "" {
			return feedPool{items: hit.Items, state: st, exhausted: !hit.More}, nil
		}
	}
	pool, err := o.fetchFeed(ctx, p, state, limit, now)
	if err != nil {
		return pool, err
	}
	if len(pool.failed) == 0 {
		o.cache.Set(key, cache.Pool{Items: pool.items, Next: cursor.EncodeFeed(pool.state), More: !pool.exhausted})
	}
	return pool, nil
}

func (o *Orchestrator) fetchFeed(ctx context.Context, p signal.Profile, state cursor.Feed, limit int, now time.Time) (feedPool, error) {
	per := sourcePage(limit * feedPoolFactor)
	next := state
	next.Walk = state.Walk.Clone()
	f := o.fanout(ctx, telemetry.SurfaceFeed)

	var newest catalog.Page
	if !state.NewestDone {
		f.run(catalog.SourceNewest, func(ctx context.Context) (err error) {
			newest, err = o.source.Newest(ctx, state.Newest, per)
			return err
		})
	}

	handles := o.collectionsFor(p.Gender)
	picks := state.Walk.Pick(handles, walkFanout)
	walked := make([]*catalog.Page, len(picks))
	for i, h := range picks {
		f.run(catalog.SourceCollection, func(ctx context.Context) error {
			pg, err := o.source.CollectionPage(ctx, h, state.Walk.Token(h), per/2+1)
			if errors.Is(err, catalog.ErrNotFound) {
				pg, err = catalog.Page{}, nil
			}
			if err != nil {
				return err
			}
			walked[i] = &pg
			return nil
		})
	}

	cold := signal.ColdStart(p, now, o.halfLife)
	var searched catalog.Page
	query := o.personalQuery(p, now)
	searching := !cold && !state.SearchDone && len(query.Terms) > 0
	if searching {
		query.Cursor, query.Limit = state.Search, per
		f.run(catalog.SourceSearch, func(ctx context.Context) (err error) {
			searched, err = o.source.Search(ctx, query)
			return err
		})
	}

	var found []*model.Candidate
	if state.Page == 0 && !cold {
		top := o.topHandles(p, now, backfillHandles)
		found = make([]*model.Candidate, len(top))
		for i, h := range top {
			f.run(catalog.SourceProduct, func(ctx context.Context) error {
				c, ok, err := o.source.ProductByHandle(ctx, h)
				if ok {
					found[i] = &c
				}
				return err
			})
		}
	}

	attempted, failed, err := f.wait()
	if err != nil {
		return feedPool{}, err
	}

	if !state.NewestDone && !slices.Contains(failed, catalog.SourceNewest) {
		next.Newest, next.NewestDone = newest.Cursor, !newest.HasNext
	}
	for i, h := range picks {
		if walked[i] != nil {
			next.Walk.Record(h, walked[i].Cursor, walked[i].HasNext)
		}
	}
	next.Walk.Advance(len(picks), len(handles))
	if searching && !slices.Contains(failed, catalog.SourceSearch) {
		next.Search, next.SearchDone = searched.Cursor, !searched.HasNext
	}

	var backfill, walkItems []model.Candidate
	for _, c := range found {
		if c != nil {
			backfill = append(backfill, *c)
		}
	}
	for _, pg := range walked {
		if pg != nil {
			walkItems = append(walkItems, pg.Items...)
		}
	}
	searchable := !cold && len(query.Terms) > 0
	return feedPool{
		items:     normalize.Merge(nil, backfill, searched.Items, walkItems, newest.Items),
		state:     next,
		attempted: attempted,
		failed:    failed,
		exhausted: next.NewestDone && next.Walk.Done(handles) && (next.SearchDone || !searchable),
	}, nil
}

// personalQuery builds a term search from the visitor's strongest tags,
// product types and vendors.
func (o *Orchestrator) personalQuery(p signal.Profile, now time.Time) catalog.SearchQuery {
	q := catalog.SearchQuery{Gender: p.Gender}
	for _, k := range signal.TopKeys(p.Signals.ByTag, searchTags, now, o.halfLife) {
		q.Terms = append(q.Terms, k.Key)
	}
	for _, k := range signal.TopKeys(p.Signals.ByProductType, searchTypes, now, o.halfLife) {
		q.Terms = append(q.Terms, k.Key)
	}
	for _, k := range signal.TopKeys(p.Signals.ByVendor, searchVendors, now, o.halfLife) {
		q.Terms = append(q.Terms, k.Key)
	}
	return q
}

func handlesOf(items []model.Candidate) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Handle
	}
	return out
}
