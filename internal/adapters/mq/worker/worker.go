package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// Default pool configuration.
const (
	defaultWorkerMultiplier = 2
	defaultEventTimeout     = 5 * time.Second
	defaultDrainTimeout     = 10 * time.Second
)

// ErrStopped is returned by Serve after the pool was shut down.
var ErrStopped = errors.New("worker pool stopped")

// Applier handles one event.
type Applier interface {
	Apply(ctx context.Context, e model.Event) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, e model.Event) error

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, e model.Event) error { return f(ctx, e) }

// Queue is where workers read events from.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Event
	Close() error
}

// Pool runs a fixed number of workers over a queue.
type Pool struct {
	queue        Queue
	applier      Applier
	size         int
	eventTimeout time.Duration
	drainTimeout time.Duration
	logger       logger.Logger

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	mu      sync.Mutex
	started bool
	stop    context.CancelFunc
	wg      sync.WaitGroup

	shutdown    sync.Once
	shutdownErr error
}

// NewPool creates a worker pool.
func NewPool(q Queue, a Applier, opts ...Option) *Pool {
	p := &Pool{
		queue:        q,
		applier:      a,
		size:         runtime.NumCPU() * defaultWorkerMultiplier,
		eventTimeout: defaultEventTimeout,
		drainTimeout: defaultDrainTimeout,
		logger:       logger.NamedOrNop("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Workers stop once the queue is closed and
// drained, or when Shutdown gives up waiting.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.stop = cancel
	events := p.queue.Dequeue(ctx)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(ctx, "worker-"+strconv.Itoa(i), events)
	}
	metrics.UpdateWorkerCount(p.size)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(p.size)
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", p.size))
}

func (p *Pool) run(ctx context.Context, name string, events <-chan model.Event) {
	defer p.wg.Done()
	l := p.logger.Named(name)
	for e := range events {
		active := p.active.Add(1)
		metrics.UpdateWorkerActiveCount(int(active))
		metrics.UpdateWorkerIdleCount(p.size - int(active))

		if err := p.handle(ctx, e); err != nil {
			l.Error(ctx, "event failed",
				logger.String("event_id", e.ID),
				logger.String("identity", e.Identity),
				logger.String("type", string(e.Type)),
				logger.Error(err))
		}

		active = p.active.Add(-1)
		metrics.UpdateWorkerActiveCount(int(active))
		metrics.UpdateWorkerIdleCount(p.size - int(active))
	}
}

func (p *Pool) handle(ctx context.Context, e model.Event) (err error) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
		if r := recover(); r != nil {
			err = fmt.Errorf("panic applying event: %v", r)
		}
		if err != nil {
			p.failed.Add(1)
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "apply_error")
			return
		}
		p.processed.Add(1)
		metrics.RecordEventApplied()
	}()

	ctx, cancel := context.WithTimeout(ctx, p.eventTimeout)
	defer cancel()
	return p.applier.Apply(ctx, e)
}

// Shutdown closes the queue and waits for the workers to drain it. When ctx
// or the drain timeout expires first, the remaining events are abandoned.
// Only the first call drains; later calls wait for it and return its result.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdown.Do(func() { p.shutdownErr = p.drain(ctx) })
	return p.shutdownErr
}

func (p *Pool) drain(ctx context.Context) error {
	p.mu.Lock()
	started, stop := p.started, p.stop
	p.started = true // a pool shut down before Start never starts
	p.mu.Unlock()

	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(p.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
		stop()
		return nil
	case <-ctx.Done():
	case <-timer.C:
	}
	stop()
	<-done
	p.logger.Warn(ctx, "worker pool drain timed out")
	return fmt.Errorf("drain worker pool: %w", context.DeadlineExceeded)
}

// Serve runs the pool until ctx is done, then drains it. It lets the pool
// run under a supervisor.
func (p *Pool) Serve(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	if err := p.Shutdown(context.Background()); err != nil {
		return err
	}
	return ErrStopped
}

// Stats are the pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.size,
		Active:    p.active.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// String names the pool in supervisor logs.
func (p *Pool) String() string { return "worker-pool" }
