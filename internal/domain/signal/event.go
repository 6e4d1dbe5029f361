package signal

import (
	"math"
	"time"

	"github.com/okian/tailor/internal/domain/model"
)

// ApplyEvent folds one behavioral event into a copy of p. Unknown event types
// leave the profile untouched.
func ApplyEvent(p Profile, e model.Event, now time.Time) Profile {
	out := Clone(p)
	w, ok := WeightsFor(e.Type)
	if !ok {
		return out
	}

	bump(out.Signals.ByProductHandle, e.Handle, w.Handle, now)
	bump(out.Signals.ByVendor, e.Vendor, w.Vendor, now)
	bump(out.Signals.ByProductType, e.ProductType, w.ProductType, now)

	texts := append(append([]string{}, e.Tags...), e.Title)
	for _, tag := range DeriveTags(texts...) {
		bump(out.Signals.ByTag, tag, w.Tag, now)
	}

	inf := Infer(InferenceInput{
		Handle:      e.Handle,
		Title:       e.Title,
		Vendor:      e.Vendor,
		ProductType: e.ProductType,
		Tags:        e.Tags,
	})
	bump(out.Signals.ByCategory, inf.Category, w.Category, now)
	for _, m := range inf.Materials {
		bump(out.Signals.ByMaterial, m, w.Material, now)
	}
	for _, f := range inf.Fits {
		bump(out.Signals.ByFit, f, w.Fit, now)
	}

	if e.Handle != "" {
		out.RecentHandles = pushFront(out.RecentHandles, []string{e.Handle}, RecentHandlesCap)
	}
	if now.After(out.UpdatedAt) {
		out.UpdatedAt = now
	}
	return out
}

// bump adds weight to the raw score of key, clamped to [0, MaxScore], and
// moves its timestamp forward. A late event never re-dates newer signal.
func bump(b Bucket, key string, weight float64, now time.Time) {
	k := NormalizeKey(key)
	if !validKey(k) || weight <= 0 {
		return
	}
	prev := b[k]
	current := prev.Score
	if math.IsNaN(current) || math.IsInf(current, 0) || current < 0 {
		current = 0
	}
	at := now
	if prev.LastAt.After(at) {
		at = prev.LastAt
	}
	b[k] = ScoreEntry{Score: clampScore(current + weight), LastAt: at}
}

func clampScore(s float64) float64 {
	s = math.Round(s*scorePrecision) / scorePrecision
	switch {
	case s < 0:
		return 0
	case s > MaxScore:
		return MaxScore
	default:
		return s
	}
}
