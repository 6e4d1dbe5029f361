package retrieval

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/okian/tailor/internal/adapters/cache"
	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/domain/cursor"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/normalize"
	"github.com/okian/tailor/internal/domain/reel"
	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

const (
	reelSearchTerms = 6
	reelPoolFactor  = 2
)

// ReelRequest asks for one reel page around the product Handle.
type ReelRequest struct {
	Identity string
	Handle   string
	Cursor   string
	Limit    int
	Debug    bool
}

// ReelPage is one ranked reel page. The first page starts with the seed.
type ReelPage struct {
	Items     []model.Candidate
	Cursor    string
	ColdStart bool
	Debug     []model.ScoreRow
	Failed    []string
}

type reelPool struct {
	items     []model.Candidate
	state     cursor.Reel
	exhausted bool
	attempted int
	failed    []string
}

// Reel serves one reel page. It fails only when the seed product does not
// exist or the request was abandoned.
func (o *Orchestrator) Reel(ctx context.Context, req ReelRequest) (ReelPage, error) {
	start := time.Now()
	now := o.now()

	state, ok := cursor.DecodeReel(req.Cursor)
	if req.Cursor != "" && (!ok || state.Seed != req.Handle) {
		o.logger.Warn(ctx, "discarding unreadable reel cursor",
			logger.String("identity", req.Identity),
			logger.String("surface", telemetry.SurfaceReel),
			logger.String("seed", req.Handle))
	}
	if !ok || state.Seed != req.Handle {
		state = cursor.Reel{Seed: req.Handle}
	}

	seed, found, err := o.seed(ctx, req.Handle)
	if err != nil {
		return ReelPage{}, err
	}
	if !found {
		return ReelPage{}, ErrSeedNotFound
	}

	v := o.load(ctx, req.Identity, now)
	limit := o.reelPageSize
	if req.Limit > 0 {
		limit = reel.ClampPageSize(req.Limit)
	}

	pool, err := o.reelPool(ctx, v.profile, seed, state, limit, req.Cursor, now)
	if err != nil {
		return ReelPage{}, err
	}
	if pool.attempted > 0 && len(pool.failed) == pool.attempted {
		o.logger.Warn(ctx, "every reel source failed",
			logger.String("identity", req.Identity),
			logger.String("seed", req.Handle),
			logger.Any("sources", pool.failed))
		page := ReelPage{Cursor: req.Cursor, Failed: pool.failed}
		if state.Page == 0 {
			page.Items = []model.Candidate{seed}
		}
		return page, nil
	}

	res := o.reel.Rank(seed, v.profile, pool.items, reel.Options{
		Now:   now,
		Page:  state.Page,
		Limit: limit,
		Debug: o.debugMode,
	})

	page := ReelPage{ColdStart: res.Stats.ColdStart, Failed: pool.failed}
	if state.Page == 0 {
		page.Items = append(page.Items, seed)
	}
	page.Items = append(page.Items, res.Items...)
	if req.Debug {
		page.Debug = res.Breakdown
	}

	next := pool.state
	next.Page = state.Page + 1
	next.AddServed(handlesOf(page.Items)...)
	if !(pool.exhausted && len(res.Items) < limit) && len(res.Items) > 0 {
		page.Cursor = cursor.EncodeReel(next)
	}

	o.emit(ctx, telemetry.SurfaceReel, req.Identity, map[string]int{
		telemetry.CategorySwitchPrevented: res.Stats.CategorySwitchPrevented,
		telemetry.SourceFailed:            len(pool.failed),
	}, res.Breakdown)
	metrics.RecordPageServed(telemetry.SurfaceReel, res.Stats.ColdStart)
	metrics.RecordRankingLatency(telemetry.SurfaceReel, float64(time.Since(start).Microseconds())/1000)

	o.finish(ctx, v, handlesOf(page.Items), now)
	return page, nil
}

// seed looks the seed product up. A failing lookup degrades to a bare
// candidate carrying only the handle.
func (o *Orchestrator) seed(ctx context.Context, handle string) (model.Candidate, bool, error) {
	lctx, cancel := context.WithTimeout(ctx, o.sourceTimeout)
	defer cancel()
	c, ok, err := o.source.ProductByHandle(lctx, handle)
	switch {
	case err == nil:
		return c, ok, nil
	case ctx.Err() != nil:
		return model.Candidate{}, false, ctx.Err()
	default:
		o.logger.Warn(ctx, "seed lookup failed",
			logger.String("seed", handle), logger.String("source", catalog.SourceProduct), logger.Error(err))
		return model.Candidate{ID: handle, Handle: handle}, true, nil
	}
}

func (o *Orchestrator) reelPool(ctx context.Context, p signal.Profile, seed model.Candidate, state cursor.Reel, limit int, raw string, now time.Time) (reelPool, error) {
	key := cache.Key(telemetry.SurfaceReel, string(p.Gender), seed.Handle, raw, signal.Hash(p))
	if hit, ok := o.cache.Get(key); ok {
		if st, ok := cursor.DecodeReel(hit.Next); ok {
			return reelPool{items: hit.Items, state: st, exhausted: !hit.More}, nil
		}
	}
	pool, err := o.fetchReel(ctx, p, seed, state, limit, now)
	if err != nil {
		return pool, err
	}
	if len(pool.failed) == 0 {
		o.cache.Set(key, cache.Pool{Items: pool.items, Next: cursor.EncodeReel(pool.state), More: !pool.exhausted})
	}
	return pool, nil
}

func (o *Orchestrator) fetchReel(ctx context.Context, p signal.Profile, seed model.Candidate, state cursor.Reel, limit int, now time.Time) (reelPool, error) {
	per := sourcePage(limit * reelPoolFactor)
	next := state
	next.Walk = state.Walk.Clone()
	next.Served = slices.Clone(state.Served)
	f := o.fanout(ctx, telemetry.SurfaceReel)

	var recommended []model.Candidate
	if state.Page == 0 {
		f.run(catalog.SourceRecommended, func(ctx context.Context) error {
			items, err := o.source.Recommended(ctx, seed.Handle, per)
			if errors.Is(err, catalog.ErrNotFound) {
				return nil
			}
			recommended = items
			return err
		})
	}

	var searched catalog.Page
	terms := seedTerms(seed)
	searching := !state.SearchDone && len(terms) > 0
	if searching {
		q := catalog.SearchQuery{Terms: terms, Gender: p.Gender, Cursor: state.Search, Limit: per}
		f.run(catalog.SourceSearch, func(ctx context.Context) (err error) {
			searched, err = o.source.Search(ctx, q)
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

	top := o.topHandles(p, now, backfillHandles)
	found := make([]*model.Candidate, len(top))
	for i, h := range top {
		if h == seed.Handle {
			continue
		}
		f.run(catalog.SourceProduct, func(ctx context.Context) error {
			c, ok, err := o.source.ProductByHandle(ctx, h)
			if ok {
				found[i] = &c
			}
			return err
		})
	}

	attempted, failed, err := f.wait()
	if err != nil {
		return reelPool{}, err
	}

	if searching && !slices.Contains(failed, catalog.SourceSearch) {
		next.Search, next.SearchDone = searched.Cursor, !searched.HasNext
	}
	for i, h := range picks {
		if walked[i] != nil {
			next.Walk.Record(h, walked[i].Cursor, walked[i].HasNext)
		}
	}
	next.Walk.Advance(len(picks), len(handles))

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
	excluded := state.ServedSet()
	excluded[seed.Handle] = struct{}{}
	return reelPool{
		items:     normalize.Merge(excluded, recommended, searched.Items, walkItems, backfill),
		state:     next,
		attempted: attempted,
		failed:    failed,
		exhausted: (next.SearchDone || len(terms) == 0) && next.Walk.Done(handles),
	}, nil
}

// seedTerms are the search terms derived from the seed's tags, title,
// vendor and product type.
func seedTerms(seed model.Candidate) []string {
	texts := append([]string{seed.ProductType, seed.Title}, seed.Tags...)
	texts = append(texts, seed.Vendor)
	var out []string
	for _, t := range signal.DeriveTags(texts...) {
		if len(out) == reelSearchTerms {
			break
		}
		if _, err := strconv.Atoi(t); err == nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
