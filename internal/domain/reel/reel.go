// Package reel ranks a "more like this" sequence around a seed product.
//
// Candidates score on similarity to the seed, the visitor's affinity and a
// small category-aware exploration term. Category distance is penalised and,
// on the first page, an early guard keeps the leading slots in the seed's
// category.
package reel

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/seeded"
	"github.com/okian/tailor/internal/domain/signal"
)

// Page size bounds.
const (
	DefaultPageSize = 14
	MinPageSize     = 8
	MaxPageSize     = 24
)

// Default tuning.
const (
	DefaultGuardSlots = 10
	DefaultDebugRows  = 10

	guardPenalty   = 8.0
	guardDropBelow = -4.0

	categoryMatch    = 10.0
	subCategoryMatch = 6.0
	vendorMatch      = 1.5
	typeMatch        = 2.5

	coldAffinity = 0.35
	warmAffinity = 0.5

	baseExploration = 0.1
	maxExploration  = 0.16
	explorationStep = 0.015
	freshnessDays   = 20.0
	jitterAmplitude = 0.05
	recentBoost     = 1.25
)

// overlap scores shared keywords in one dimension: weight per match, capped.
type overlap struct {
	weight, limit float64
}

var (
	materialOverlap = overlap{2.0, 4.0}
	fitOverlap      = overlap{1.5, 3.0}
	styleOverlap    = overlap{1.5, 3.0}
	colorOverlap    = overlap{1.0, 2.0}
	tokenOverlap    = overlap{0.4, 2.4}
)

// adjacentBonus and categoryPenalty are indexed by distance 0, 1, 2+.
var (
	adjacentBonus   = [3]float64{1.1, 0.72, 0.22}
	categoryPenalty = [3]float64{0, 2.5, 6}
)

// ClampPageSize bounds n to the allowed page size, defaulting non-positive
// values.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return max(MinPageSize, min(MaxPageSize, n))
}

// Options are the per-call ranking inputs.
type Options struct {
	Now   time.Time
	Page  int
	Limit int
	Debug bool
}

// Stats counts what the pass did.
type Stats struct {
	Candidates              int
	ColdStart               bool
	CategorySwitchPrevented int
	Guarded                 int
}

// Result is a ranked reel page excluding the seed.
type Result struct {
	Items     []model.Candidate
	Breakdown []model.ScoreRow
	Stats     Stats
}

// Ranker ranks reel pages. It is stateless and safe for concurrent use.
type Ranker struct {
	halfLife   float64
	guardSlots int
	debugRows  int
}

// New creates a ranker with configuration options.
func New(opts ...Option) *Ranker {
	r := &Ranker{
		halfLife:   signal.DefaultHalfLifeDays,
		guardSlots: DefaultGuardSlots,
		debugRows:  DefaultDebugRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type scored struct {
	c          model.Candidate
	category   signal.Category
	score      float64
	components map[string]float64
}

// Rank orders pool around seed. The seed itself and duplicate handles are
// skipped.
func (r *Ranker) Rank(seed model.Candidate, p signal.Profile, pool []model.Candidate, o Options) Result {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.Page < 0 {
		o.Page = 0
	}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	seedInf := signal.Infer(signal.InputFromCandidate(&seed))
	cold := signal.ColdStart(p, o.Now, r.halfLife)
	mult := warmAffinity
	if cold {
		mult = coldAffinity
	}
	explWeight := math.Min(maxExploration, baseExploration+explorationStep*float64(o.Page))
	page := strconv.Itoa(o.Page)

	res := Result{Stats: Stats{ColdStart: cold}}
	seen := map[string]struct{}{seed.Handle: {}}
	items := make([]*scored, 0, len(pool))
	for i := range pool {
		c := pool[i]
		if c.Handle == "" {
			continue
		}
		if _, dup := seen[c.Handle]; dup {
			continue
		}
		seen[c.Handle] = struct{}{}

		inf := signal.Infer(signal.InputFromCandidate(&c))
		sim := similarity(seed, seedInf, c, inf)
		affinity := r.affinity(p, c, o.Now)
		dist := Distance(seedInf.Category, inf.Category)
		idx := min(dist, 2)
		fresh := 1 / (1 + c.AgeDays(o.Now)/freshnessDays)
		exploration := fresh * adjacentBonus[idx]
		jitter := seeded.Jitter(jitterAmplitude, seed.Handle, c.Handle, page)
		score := sim + affinity*mult + exploration*explWeight - categoryPenalty[idx] + jitter

		items = append(items, &scored{
			c:        c,
			category: inf.Category,
			score:    score,
			components: map[string]float64{
				"similarity":  sim,
				"affinity":    affinity * mult,
				"exploration": exploration * explWeight,
				"distance":    float64(dist),
				"penalty":     -categoryPenalty[idx],
				"jitter":      jitter,
			},
		})
	}
	res.Stats.Candidates = len(items)

	sortScored(items)
	if o.Page == 0 && seedInf.Category != "" && r.guardSlots > 0 {
		items = r.guard(items, seedInf.Category, &res.Stats)
	}

	if len(items) > limit {
		items = items[:limit]
	}
	for _, s := range items {
		res.Items = append(res.Items, s.c)
	}
	if o.Debug {
		for i, s := range items {
			if i >= r.debugRows {
				break
			}
			res.Breakdown = append(res.Breakdown, model.ScoreRow{Rank: i + 1, Handle: s.c.Handle, Score: s.score, Components: s.components})
		}
	}
	return res
}

// guard keeps the first guardSlots slots in the seed category. Every
// off-category candidate is penalised so none can climb into the window
// unpenalised, seed-category candidates take the window first, and any
// off-category candidate offered one of the remaining window slots is dropped
// when its penalised score is too low.
func (r *Ranker) guard(items []*scored, category signal.Category, st *Stats) []*scored {
	var on, off []*scored
	for _, s := range items {
		if s.category == category {
			on = append(on, s)
			continue
		}
		s.score -= guardPenalty
		s.components["guard"] = -guardPenalty
		st.Guarded++
		off = append(off, s)
	}
	sortScored(off)

	window := min(len(on), r.guardSlots)
	out := make([]*scored, 0, len(items))
	out = append(out, on[:window]...)
	rest := append([]*scored{}, on[window:]...)
	for i, s := range off {
		if window >= r.guardSlots {
			rest = append(rest, off[i:]...)
			break
		}
		window++
		if s.score < guardDropBelow {
			st.CategorySwitchPrevented++
			continue
		}
		out = append(out, s)
	}
	sortScored(rest)
	return append(out, rest...)
}

func (r *Ranker) affinity(p signal.Profile, c model.Candidate, now time.Time) float64 {
	s := p.Signals
	total := 2.8*s.ByProductHandle.Lookup(c.Handle, now, r.halfLife) +
		1.7*s.ByVendor.Lookup(c.Vendor, now, r.halfLife) +
		1.3*s.ByProductType.Lookup(c.ProductType, now, r.halfLife)
	texts := append(append([]string{}, c.Tags...), c.Title)
	for _, tag := range signal.DeriveTags(texts...) {
		total += 0.9 * s.ByTag.Lookup(tag, now, r.halfLife)
	}
	if p.IsRecent(c.Handle) {
		total += recentBoost
	}
	return total
}

func similarity(seed model.Candidate, si signal.Inference, c model.Candidate, ci signal.Inference) float64 {
	score := 0.0
	if si.Category != "" && si.Category == ci.Category {
		score += categoryMatch
	}
	if si.SubCategory != "" && si.SubCategory == ci.SubCategory {
		score += subCategoryMatch
	}
	score += materialOverlap.score(si.Materials, ci.Materials)
	score += fitOverlap.score(si.Fits, ci.Fits)
	score += styleOverlap.score(si.Styles, ci.Styles)
	score += colorOverlap.score(si.Colors, ci.Colors)
	score += tokenOverlap.score(si.Tokens, ci.Tokens)
	if v := signal.NormalizeKey(seed.Vendor); v != "" && v == signal.NormalizeKey(c.Vendor) {
		score += vendorMatch
	}
	if t := signal.NormalizeKey(seed.ProductType); t != "" && t == signal.NormalizeKey(c.ProductType) {
		score += typeMatch
	}
	return score
}

func (o overlap) score(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			n++
		}
	}
	return math.Min(o.limit, o.weight*float64(n))
}

func sortScored(items []*scored) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].c.Handle < items[j].c.Handle
	})
}
