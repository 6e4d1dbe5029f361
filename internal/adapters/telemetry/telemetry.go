// Package telemetry receives the ranking engines' named counters and debug
// score breakdowns. Sinks only observe; nothing they do feeds back into
// ranking.
package telemetry

import (
	"context"
	"sync"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// Surfaces.
const (
	SurfaceFeed = "feed"
	SurfaceReel = "reel"
)

// Counter names.
const (
	CategorySwitchPrevented = "category_switch_prevented"
	VendorCapDeferred       = "vendor_cap_deferred"
	CooldownDeferred        = "cooldown_deferred"
	SourceFailed            = "source_failed"
)

// Sink receives ranking telemetry.
type Sink interface {
	// Count adds n to the named counter of surface.
	Count(ctx context.Context, surface, name string, n int)
	// Breakdown receives the debug score rows of one ranked page.
	Breakdown(ctx context.Context, surface, identity string, rows []model.ScoreRow)
}

// Noop discards everything.
type Noop struct{}

// Count implements Sink.
func (Noop) Count(context.Context, string, string, int) {}

// Breakdown implements Sink.
func (Noop) Breakdown(context.Context, string, string, []model.ScoreRow) {}

// Prometheus forwards counters to the metrics registry.
type Prometheus struct{}

// Count implements Sink.
func (Prometheus) Count(_ context.Context, surface, name string, n int) {
	metrics.RecordRankingCounter(surface, name, n)
}

// Breakdown implements Sink.
func (Prometheus) Breakdown(_ context.Context, surface, _ string, rows []model.ScoreRow) {
	metrics.RecordRankingCounter(surface, "debug_rows", len(rows))
}

// Log writes breakdown rows at debug level.
type Log struct {
	logger logger.Logger
}

// NewLog returns a Log sink. A nil logger uses the default component logger.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.NamedOrNop("telemetry")
	}
	return &Log{logger: l}
}

// Count implements Sink.
func (l *Log) Count(ctx context.Context, surface, name string, n int) {
	if n <= 0 {
		return
	}
	l.logger.Debug(ctx, "ranking counter",
		logger.String("surface", surface), logger.String("counter", name), logger.Int("n", n))
}

// Breakdown implements Sink.
func (l *Log) Breakdown(ctx context.Context, surface, identity string, rows []model.ScoreRow) {
	for _, r := range rows {
		l.logger.Debug(ctx, "score row",
			logger.String("surface", surface),
			logger.String("identity", identity),
			logger.Int("rank", r.Rank),
			logger.String("handle", r.Handle),
			logger.Float64("score", r.Score),
			logger.Any("components", r.Components))
	}
}

// Multi fans out to several sinks.
type Multi []Sink

// Count implements Sink.
func (m Multi) Count(ctx context.Context, surface, name string, n int) {
	for _, s := range m {
		s.Count(ctx, surface, name, n)
	}
}

// Breakdown implements Sink.
func (m Multi) Breakdown(ctx context.Context, surface, identity string, rows []model.ScoreRow) {
	for _, s := range m {
		s.Breakdown(ctx, surface, identity, rows)
	}
}

// Recorder keeps everything in memory. Tests and the simulator use it.
type Recorder struct {
	mu       sync.Mutex
	counts   map[string]int
	lastRows map[string][]model.ScoreRow
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[string]int), lastRows: make(map[string][]model.ScoreRow)}
}

// Count implements Sink.
func (r *Recorder) Count(_ context.Context, surface, name string, n int) {
	r.mu.Lock()
	r.counts[surface+"/"+name] += n
	r.mu.Unlock()
}

// Breakdown implements Sink.
func (r *Recorder) Breakdown(_ context.Context, surface, _ string, rows []model.ScoreRow) {
	r.mu.Lock()
	r.lastRows[surface] = append([]model.ScoreRow(nil), rows...)
	r.mu.Unlock()
}

// Counter returns the accumulated value of a counter.
func (r *Recorder) Counter(surface, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[surface+"/"+name]
}

// Rows returns the last breakdown received for surface.
func (r *Recorder) Rows(surface string) []model.ScoreRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ScoreRow(nil), r.lastRows[surface]...)
}
