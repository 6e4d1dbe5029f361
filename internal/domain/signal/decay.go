package signal

import (
	"math"
	"sort"
	"time"
)

// EffectiveScore decays the raw score exponentially with the entry's age:
// raw * 0.5^(ageDays/halfLifeDays). Non-finite or non-positive raw scores are 0.
func EffectiveScore(e ScoreEntry, now time.Time, halfLifeDays float64) float64 {
	if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) || e.Score <= 0 {
		return 0
	}
	if math.IsNaN(halfLifeDays) || math.IsInf(halfLifeDays, 0) || halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	ageDays := float64(now.Sub(e.LastAt).Milliseconds()) / msPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	return e.Score * math.Pow(0.5, ageDays/halfLifeDays)
}

// Lookup returns the effective score of key in b (0 when absent).
func (b Bucket) Lookup(key string, now time.Time, halfLifeDays float64) float64 {
	e, ok := b[NormalizeKey(key)]
	if !ok {
		return 0
	}
	return EffectiveScore(e, now, halfLifeDays)
}

// Sum returns the summed effective score of the whole bucket.
func (b Bucket) Sum(now time.Time, halfLifeDays float64) float64 {
	total := 0.0
	for _, e := range b {
		total += EffectiveScore(e, now, halfLifeDays)
	}
	return total
}

// ColdStart reports whether the profile has negligible handle, vendor and
// product type signal at now.
func ColdStart(p Profile, now time.Time, halfLifeDays float64) bool {
	total := p.Signals.ByProductHandle.Sum(now, halfLifeDays) +
		p.Signals.ByVendor.Sum(now, halfLifeDays) +
		p.Signals.ByProductType.Sum(now, halfLifeDays)
	return total < ColdStartThreshold
}

// IsColdStart is ColdStart with the default half-life.
func IsColdStart(p Profile, now time.Time) bool {
	return ColdStart(p, now, DefaultHalfLifeDays)
}

// KeyScore pairs a key with its effective score.
type KeyScore struct {
	Key   string
	Score float64
}

// TopKeys returns up to n keys of b ordered by effective score descending,
// ties broken by key. n < 0 returns every key.
func TopKeys(b Bucket, n int, now time.Time, halfLifeDays float64) []KeyScore {
	out := make([]KeyScore, 0, len(b))
	for k, e := range b {
		out = append(out, KeyScore{Key: k, Score: EffectiveScore(e, now, halfLifeDays)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key < out[j].Key
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
