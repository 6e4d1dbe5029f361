// Package compact shrinks a profile until its encoded form fits a byte budget.
//
// The procedure is lossy and monotone: each step keeps fewer, higher scoring
// entries than the one before, and the sequence ends in a fixed skeleton and
// finally an empty profile, so it always terminates.
package compact

import (
	"math"
	"time"

	"github.com/okian/tailor/internal/domain/signal"
)

// DefaultBudget is the persisted profile size limit in bytes.
const DefaultBudget = 48 * 1024

// Ratios of the primary cap applied to the secondary buckets.
const (
	tagRatio      = 0.75
	inferredRatio = 0.5
)

// Skeleton list lengths.
const (
	skeletonRecent = 8
	skeletonServed = 16
)

// primaryCaps bound handle, vendor and product type buckets on each step.
var primaryCaps = []int{80, 60, 45, 30, 20, 12, 8, 4, 2, 1}

// Stage reports how far compaction had to go.
type Stage string

// Compaction stages, from least to most lossy.
const (
	StageAsIs     Stage = "as_is"
	StageCapped   Stage = "capped"
	StageSkeleton Stage = "skeleton"
	StageEmpty    Stage = "empty"
)

// Report describes one compaction run.
type Report struct {
	Stage Stage
	Steps int // number of capped attempts made
	Bytes int // encoded size of the result
}

// Compact returns p reduced to fit budget bytes. A non-positive budget means
// DefaultBudget.
func Compact(p signal.Profile, budget int, now time.Time) signal.Profile {
	out, _ := Run(p, budget, now)
	return out
}

// Run is Compact with a report of the work done.
func Run(p signal.Profile, budget int, now time.Time) (signal.Profile, Report) {
	if budget <= 0 {
		budget = DefaultBudget
	}

	current := signal.Sanitize(p, now, signal.DefaultLimits())
	if size := signal.EncodedSize(current); size <= budget {
		return current, Report{Stage: StageAsIs, Bytes: size}
	}

	rep := Report{Stage: StageCapped}
	for _, c := range primaryCaps {
		rep.Steps++
		current = signal.Sanitize(current, now, capLimits(c))
		if size := signal.EncodedSize(current); size <= budget {
			rep.Bytes = size
			return current, rep
		}
	}

	skeleton := signal.Sanitize(current, now, skeletonLimits())
	if size := signal.EncodedSize(skeleton); size <= budget {
		rep.Stage, rep.Bytes = StageSkeleton, size
		return skeleton, rep
	}

	empty := signal.SetGender(signal.CreateEmpty(now), p.Gender, now)
	rep.Stage, rep.Bytes = StageEmpty, signal.EncodedSize(empty)
	return empty, rep
}

func capLimits(primary int) signal.Limits {
	l := signal.DefaultLimits()
	tags := scaled(primary, tagRatio)
	inferred := scaled(primary, inferredRatio)
	l.Buckets[signal.BucketHandle] = primary
	l.Buckets[signal.BucketVendor] = primary
	l.Buckets[signal.BucketProductType] = primary
	l.Buckets[signal.BucketTag] = tags
	l.Buckets[signal.BucketCategory] = inferred
	l.Buckets[signal.BucketMaterial] = inferred
	l.Buckets[signal.BucketFit] = inferred
	return l
}

func skeletonLimits() signal.Limits {
	l := signal.DefaultLimits()
	for _, k := range signal.Kinds() {
		l.Buckets[k] = 1
	}
	l.Buckets[signal.BucketTag] = 0
	l.RecentHandles = skeletonRecent
	l.ServedHandles = skeletonServed
	return l
}

func scaled(n int, ratio float64) int {
	return max(1, int(math.Round(float64(n)*ratio)))
}
