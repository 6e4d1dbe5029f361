package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

func TestSinks(t *testing.T) {
	ctx := context.Background()
	rows := []model.ScoreRow{{Rank: 1, Handle: "a", Score: 3.2, Components: map[string]float64{"similarity": 3}}}

	Convey("Given a recorder behind a multi sink", t, func() {
		rec := NewRecorder()
		sink := Multi{Noop{}, rec, NewLog(nil)}

		sink.Count(ctx, SurfaceReel, CategorySwitchPrevented, 2)
		sink.Count(ctx, SurfaceReel, CategorySwitchPrevented, 1)
		sink.Breakdown(ctx, SurfaceReel, "guest:1", rows)

		Convey("Then every sink sees the calls", func() {
			So(rec.Counter(SurfaceReel, CategorySwitchPrevented), ShouldEqual, 3)
			So(rec.Counter(SurfaceFeed, CategorySwitchPrevented), ShouldEqual, 0)
			So(rec.Rows(SurfaceReel), ShouldResemble, rows)
		})
	})

	Convey("Given the log sink", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithOutput(&buf)), ShouldBeNil)
		So(logger.SetLevelString("debug"), ShouldBeNil)
		defer func() { _ = logger.SetLevelString("info") }()

		NewLog(logger.Named("telemetry")).Breakdown(ctx, SurfaceFeed, "guest:2", rows)

		Convey("Then rows are written at debug level", func() {
			So(buf.String(), ShouldContainSubstring, "score row")
			So(buf.String(), ShouldContainSubstring, "handle=a")
			So(buf.String(), ShouldContainSubstring, "identity=guest:2")
		})
	})

	Convey("Given the prometheus sink", t, func() {
		Prometheus{}.Count(ctx, SurfaceFeed, VendorCapDeferred, 4)
		Prometheus{}.Count(ctx, SurfaceFeed, VendorCapDeferred, 0)

		Convey("Then the ranking counter moves", func() {
			expected := `
# HELP tailor_personalize_ranking_events_total Named ranking counters emitted by the engines
# TYPE tailor_personalize_ranking_events_total counter
tailor_personalize_ranking_events_total{name="vendor_cap_deferred",surface="feed"} 4
`
			err := testutil.GatherAndCompare(metrics.GetRegistry(), strings.NewReader(expected),
				"tailor_personalize_ranking_events_total")
			So(err, ShouldBeNil)
		})
	})
}
