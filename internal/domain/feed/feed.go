// Package feed ranks a candidate pool for the personalized product feed.
//
// Warm profiles get a blend of personalized affinity and exploration
// (novelty and freshness) followed by a vendor diversity pass. Cold profiles
// fall back to availability and recency.
package feed

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/seeded"
	"github.com/okian/tailor/internal/domain/signal"
)

// Default tuning.
const (
	DefaultVendorCap       = 3
	DefaultWindow          = 12
	DefaultCooldownPenalty = 3.0
	DefaultDebugRows       = 10

	repeatPenalty   = 1.8
	jitterAmplitude = 0.04
	coldJitter      = 0.1
	coldInStock     = 2.0
	freshnessDays   = 20.0
	recentBoost     = 1.25
	noveltyWeight   = 3.0
	freshnessWeight = 1.6
	maxDepthBoost   = 0.4
	depthBoostStep  = 0.04

	minExploration  = 0.08
	maxExploration  = 0.42
	explorationStep = 0.068
)

// Affinity weights of the personalized score and of familiarity.
var (
	personalWeights    = termWeights{handle: 2.8, vendor: 1.7, productType: 1.3, tags: 0.9}
	familiarityWeights = termWeights{handle: 1.0, vendor: 0.6, productType: 0.5, tags: 0.3}
)

type termWeights struct {
	handle, vendor, productType, tags float64
}

// Options are the per-call ranking inputs.
type Options struct {
	Now              time.Time
	Limit            int
	DateKey          string // jitter seed, DateKey(Now) when empty
	ExplorationRatio float64
	PageDepth        int
	Debug            bool
}

// Stats counts what the pass did.
type Stats struct {
	Candidates        int
	ColdStart         bool
	CooldownDeferred  int
	VendorCapDeferred int
}

// Result is a ranked page. Items carry no scores; Breakdown is only filled
// for debug passes.
type Result struct {
	Items     []model.Candidate
	Breakdown []model.ScoreRow
	Stats     Stats
}

// Ranker ranks feed pages. It is stateless and safe for concurrent use.
type Ranker struct {
	halfLife        float64
	vendorCap       int
	window          int
	cooldownPenalty float64
	debugRows       int
}

// New creates a ranker with configuration options.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		halfLife:        signal.DefaultHalfLifeDays,
		vendorCap:       DefaultVendorCap,
		window:          DefaultWindow,
		cooldownPenalty: DefaultCooldownPenalty,
		debugRows:       DefaultDebugRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExplorationRatio is the exploration share for a page depth: 0.08 on the
// first page rising to 0.42.
func ExplorationRatio(depth int) float64 {
	if depth < 0 {
		depth = 0
	}
	return math.Min(maxExploration, minExploration+explorationStep*float64(depth))
}

// DateKey is the UTC calendar day used to seed jitter.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// scored is a candidate with its ephemeral scores.
type scored struct {
	c          model.Candidate
	key        string // diversity key: vendor, or handle when vendor is blank
	cooldown   bool
	base       float64
	adjusted   float64
	components map[string]float64
}

// Rank orders candidates for one page of at most o.Limit items.
func (r *Ranker) Rank(p signal.Profile, candidates []model.Candidate, o Options) Result {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.DateKey == "" {
		o.DateKey = DateKey(o.Now)
	}
	pool := uniqueByHandle(candidates)
	res := Result{Stats: Stats{Candidates: len(pool)}}
	if o.Limit <= 0 || len(pool) == 0 {
		return res
	}

	var ranked []*scored
	if signal.ColdStart(p, o.Now, r.halfLife) {
		res.Stats.ColdStart = true
		ranked = r.rankCold(p, pool, o)
	} else {
		ranked = r.rankWarm(p, pool, o, &res.Stats)
	}

	for _, s := range ranked {
		if s.cooldown {
			res.Stats.CooldownDeferred++
		}
		res.Items = append(res.Items, s.c)
	}
	if o.Debug {
		res.Breakdown = breakdown(ranked, r.debugRows)
	}
	return res
}

func (r *Ranker) rankCold(p signal.Profile, pool []model.Candidate, o Options) []*scored {
	seed := strconv.FormatInt(p.UpdatedAt.UnixMilli(), 10)
	items := make([]*scored, 0, len(pool))
	for _, c := range pool {
		stock := 0.0
		if c.Available {
			stock = coldInStock
		}
		fresh := freshness(c.AgeDays(o.Now))
		jitter := seeded.Jitter(coldJitter, o.DateKey, seed, c.Handle)
		score := stock + fresh + jitter
		items = append(items, &scored{
			c:        c,
			cooldown: p.InCooldown(c.Handle),
			base:     score,
			adjusted: score,
			components: map[string]float64{
				"in_stock":  stock,
				"freshness": fresh,
				"jitter":    jitter,
			},
		})
	}
	ordered := cooldownLast(items)
	if len(ordered) > o.Limit {
		ordered = ordered[:o.Limit]
	}
	return ordered
}

func (r *Ranker) rankWarm(p signal.Profile, pool []model.Candidate, o Options, st *Stats) []*scored {
	ratio := math.Max(0, math.Min(1, o.ExplorationRatio))
	amplifier := 1 + math.Min(maxDepthBoost, depthBoostStep*float64(max(o.PageDepth, 0)))
	seed := strconv.FormatInt(p.UpdatedAt.UnixMilli(), 10)

	items := make([]*scored, 0, len(pool))
	for _, c := range pool {
		t := r.terms(p, c, o.Now)
		personal := t.weighted(personalWeights)
		if p.IsRecent(c.Handle) {
			personal += recentBoost
		}
		novelty := 1 / (1 + t.weighted(familiarityWeights))
		fresh := freshness(c.AgeDays(o.Now))
		exploration := noveltyWeight*novelty + freshnessWeight*fresh
		blended := personal*(1-ratio) + exploration*ratio*amplifier

		cooldown := p.InCooldown(c.Handle)
		penalty := 0.0
		if cooldown {
			penalty = r.cooldownPenalty
		}
		jitter := seeded.Jitter(jitterAmplitude, o.DateKey, seed, c.Handle)
		score := blended - penalty + jitter

		items = append(items, &scored{
			c:        c,
			key:      diversityKey(c),
			cooldown: cooldown,
			base:     score,
			adjusted: score,
			components: map[string]float64{
				"personalized": personal,
				"novelty":      novelty,
				"freshness":    fresh,
				"exploration":  exploration,
				"blended":      blended,
				"cooldown":     -penalty,
				"jitter":       jitter,
			},
		})
	}

	selected := r.selectDiverse(cooldownLast(items), o.Limit, st)
	sort.SliceStable(selected, func(i, j int) bool { return less(selected[i], selected[j]) })
	return r.enforceWindow(selected)
}

// selectDiverse walks the ordered list applying the repeat-vendor penalty
// and deferring items that would exceed the cap inside the window. Deferred
// items fill the page only when nothing else is left.
func (r *Ranker) selectDiverse(ordered []*scored, limit int, st *Stats) []*scored {
	counts := make(map[string]int)
	selected := make([]*scored, 0, min(limit, len(ordered)))
	var deferred []*scored
	for _, s := range ordered {
		if len(selected) >= limit {
			break
		}
		n := counts[s.key]
		if len(selected) < r.window && n >= r.vendorCap {
			st.VendorCapDeferred++
			deferred = append(deferred, s)
			continue
		}
		r.take(s, n)
		counts[s.key]++
		selected = append(selected, s)
	}
	for _, s := range deferred {
		if len(selected) >= limit {
			break
		}
		r.take(s, counts[s.key])
		counts[s.key]++
		selected = append(selected, s)
	}
	return selected
}

func (r *Ranker) take(s *scored, seenBefore int) {
	pen := repeatPenalty * float64(seenBefore)
	s.adjusted = s.base - pen
	s.components["repeat_penalty"] = -pen
}

// enforceWindow rebuilds the order greedily so that no key exceeds the cap
// within the window after the final re-sort. When only capped keys remain
// the best of them is taken anyway.
func (r *Ranker) enforceWindow(sorted []*scored) []*scored {
	remaining := append([]*scored(nil), sorted...)
	out := make([]*scored, 0, len(sorted))
	counts := make(map[string]int)
	for len(remaining) > 0 {
		pick := 0
		if len(out) < r.window {
			for i, s := range remaining {
				if counts[s.key] < r.vendorCap {
					pick = i
					break
				}
			}
		}
		s := remaining[pick]
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		if len(out) < r.window {
			counts[s.key]++
		}
		out = append(out, s)
	}
	return out
}

type termScores struct {
	handle, vendor, productType, tags float64
}

func (t termScores) weighted(w termWeights) float64 {
	return w.handle*t.handle + w.vendor*t.vendor + w.productType*t.productType + w.tags*t.tags
}

func (r *Ranker) terms(p signal.Profile, c model.Candidate, now time.Time) termScores {
	t := termScores{
		handle:      p.Signals.ByProductHandle.Lookup(c.Handle, now, r.halfLife),
		vendor:      p.Signals.ByVendor.Lookup(c.Vendor, now, r.halfLife),
		productType: p.Signals.ByProductType.Lookup(c.ProductType, now, r.halfLife),
	}
	texts := append(append([]string{}, c.Tags...), c.Title)
	for _, tag := range signal.DeriveTags(texts...) {
		t.tags += p.Signals.ByTag.Lookup(tag, now, r.halfLife)
	}
	return t
}

func freshness(ageDays float64) float64 {
	return 1 / (1 + ageDays/freshnessDays)
}

func diversityKey(c model.Candidate) string {
	if v := signal.NormalizeKey(c.Vendor); v != "" {
		return "v:" + v
	}
	return "h:" + c.Handle
}

// cooldownLast sorts by score with recently served items moved behind the
// rest.
func cooldownLast(items []*scored) []*scored {
	out := make([]*scored, 0, len(items))
	var cooled []*scored
	for _, s := range items {
		if s.cooldown {
			cooled = append(cooled, s)
		} else {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	sort.SliceStable(cooled, func(i, j int) bool { return less(cooled[i], cooled[j]) })
	return append(out, cooled...)
}

func less(a, b *scored) bool {
	if a.adjusted != b.adjusted {
		return a.adjusted > b.adjusted
	}
	return a.c.Handle < b.c.Handle
}

func uniqueByHandle(cands []model.Candidate) []model.Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		h := strings.TrimSpace(c.Handle)
		if h == "" {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, c)
	}
	return out
}

func breakdown(ranked []*scored, n int) []model.ScoreRow {
	rows := make([]model.ScoreRow, 0, min(n, len(ranked)))
	for i, s := range ranked {
		if i >= n {
			break
		}
		rows = append(rows, model.ScoreRow{Rank: i + 1, Handle: s.c.Handle, Score: s.adjusted, Components: s.components})
	}
	return rows
}
