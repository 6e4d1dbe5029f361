package compact

import (
	"fmt"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/domain/signal"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func bloated(perBucket int) signal.Profile {
	p := signal.SetGender(signal.CreateEmpty(now), model.GenderMale, now)
	for _, k := range signal.Kinds() {
		b := p.Signals.Bucket(k)
		for i := 0; i < perBucket; i++ {
			key := fmt.Sprintf("%s-%s-%05d", strings.ToLower(k.String()), strings.Repeat("x", 40), i)
			b[key] = signal.ScoreEntry{
				Score:  float64(1 + i%400),
				LastAt: now.Add(-time.Duration(i%90) * 24 * time.Hour),
			}
		}
	}
	for i := 0; i < 200; i++ {
		p.RecentHandles = append(p.RecentHandles, fmt.Sprintf("recent-%d", i))
		p.Cooldowns.RecentlyServedHandles = append(p.Cooldowns.RecentlyServedHandles, fmt.Sprintf("served-%d", i))
	}
	return p
}

func TestCompact(t *testing.T) {
	Convey("Given a small profile", t, func() {
		p := signal.ApplyEvent(signal.CreateEmpty(now), model.Event{Type: model.EventAddToCart, Handle: "red-hoodie"}, now)

		Convey("When compacted with the default budget", func() {
			out, rep := Run(p, 0, now)

			Convey("Then it is returned as-is", func() {
				So(rep.Stage, ShouldEqual, StageAsIs)
				So(rep.Steps, ShouldEqual, 0)
				So(out.Signals.ByProductHandle, ShouldContainKey, "red-hoodie")
				So(rep.Bytes, ShouldEqual, signal.EncodedSize(out))
			})
		})
	})

	Convey("Given an adversarially large profile", t, func() {
		p := bloated(3000)
		So(signal.EncodedSize(p), ShouldBeGreaterThan, DefaultBudget)

		Convey("When compacted with the default budget", func() {
			out, rep := Run(p, DefaultBudget, now)

			Convey("Then the result fits and keeps the strongest entries", func() {
				So(signal.EncodedSize(out), ShouldBeLessThanOrEqualTo, DefaultBudget)
				So(rep.Stage, ShouldEqual, StageCapped)
				So(rep.Steps, ShouldBeGreaterThan, 0)
				So(out.Gender, ShouldEqual, model.GenderMale)

				top := signal.TopKeys(p.Signals.ByProductHandle, 1, now, signal.DefaultHalfLifeDays)[0].Key
				So(out.Signals.ByProductHandle, ShouldContainKey, top)
			})

			Convey("Then list invariants hold", func() {
				So(len(out.RecentHandles), ShouldBeLessThanOrEqualTo, signal.RecentHandlesCap)
				So(len(out.Cooldowns.RecentlyServedHandles), ShouldBeLessThanOrEqualTo, signal.ServedCooldownCap)
			})
		})

		Convey("When the budget only admits the skeleton", func() {
			skeleton := signal.Sanitize(p, now, skeletonLimits())
			budget := signal.EncodedSize(skeleton)
			out, rep := Run(p, budget, now)

			Convey("Then the skeleton is returned", func() {
				So(rep.Stage, ShouldEqual, StageSkeleton)
				So(rep.Steps, ShouldEqual, len(primaryCaps))
				So(out.Signals.ByTag, ShouldBeEmpty)
				So(len(out.RecentHandles), ShouldEqual, skeletonRecent)
				So(len(out.Cooldowns.RecentlyServedHandles), ShouldEqual, skeletonServed)
				So(out.Signals.ByVendor, ShouldHaveLength, 1)
			})
		})

		Convey("When the budget is impossibly small", func() {
			out := Compact(p, 10, now)

			Convey("Then an empty profile keeping the gender comes back", func() {
				So(out.Gender, ShouldEqual, model.GenderMale)
				So(out.Signals.ByProductHandle, ShouldBeEmpty)
				So(out.RecentHandles, ShouldBeEmpty)
			})
		})
	})

	Convey("Given cap ratios", t, func() {
		l := capLimits(80)
		So(l.Buckets[signal.BucketHandle], ShouldEqual, 80)
		So(l.Buckets[signal.BucketTag], ShouldEqual, 60)
		So(l.Buckets[signal.BucketCategory], ShouldEqual, 40)

		l = capLimits(1)
		So(l.Buckets[signal.BucketTag], ShouldEqual, 1)
		So(l.Buckets[signal.BucketFit], ShouldEqual, 1)
	})
}
