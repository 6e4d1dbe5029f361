package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// Resilience defaults.
const (
	DefaultTimeout          = 2500 * time.Millisecond
	DefaultFailureThreshold = 5
	DefaultOpenFor          = 30 * time.Second
	DefaultRatePerSec       = 50
	DefaultBurst            = 100
)

// Resilient bounds every call to the wrapped Source: a shared rate limiter,
// a per-call timeout and one circuit breaker per source operation.
type Resilient struct {
	next     Source
	limiter  *rate.Limiter
	timeout  time.Duration
	failures uint32
	openFor  time.Duration
	logger   logger.Logger
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// ResilientOption configures a Resilient source.
type ResilientOption func(*Resilient)

// WithTimeout bounds each source call.
func WithTimeout(d time.Duration) ResilientOption {
	return func(r *Resilient) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRateLimit caps calls per second across all operations. A non-positive
// rate disables limiting.
func WithRateLimit(perSec float64, burst int) ResilientOption {
	return func(r *Resilient) {
		if perSec <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSec), max(burst, 1))
	}
}

// WithBreaker opens an operation's breaker after failures consecutive
// failures and keeps it open for openFor.
func WithBreaker(failures uint32, openFor time.Duration) ResilientOption {
	return func(r *Resilient) {
		if failures > 0 {
			r.failures = failures
		}
		if openFor > 0 {
			r.openFor = openFor
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ResilientOption {
	return func(r *Resilient) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResilient wraps next.
func NewResilient(next Source, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		next:     next,
		limiter:  rate.NewLimiter(rate.Limit(DefaultRatePerSec), DefaultBurst),
		timeout:  DefaultTimeout,
		failures: DefaultFailureThreshold,
		openFor:  DefaultOpenFor,
		logger:   logger.NamedOrNop("catalog"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breakers = make(map[string]*gobreaker.CircuitBreaker[any])
	for _, name := range []string{SourceCollection, SourceSearch, SourceRecommended, SourceProduct, SourceNewest} {
		r.breakers[name] = r.newBreaker(name)
		metrics.UpdateBreakerState(name, metrics.BreakerClosed)
	}
	return r
}

func (r *Resilient) newBreaker(name string) *gobreaker.CircuitBreaker[any] {
	threshold := r.failures
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     r.openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidCursor) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, breakerState(to))
			r.logger.Warn(context.Background(), "source breaker state changed",
				logger.String("source", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

func breakerState(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

// State returns the breaker state of source.
func (r *Resilient) State(source string) gobreaker.State {
	if cb, ok := r.breakers[source]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

// call runs fn under the limiter, timeout and breaker of source.
func call[T any](ctx context.Context, r *Resilient, source string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.limiter.Wait(ctx); err != nil {
		metrics.RecordSourceRequest(source, "throttled", msSince(start))
		return zero, fmt.Errorf("%s: %w: %w", source, ErrSourceUnavailable, err)
	}
	res, err := r.breakers[source].Execute(func() (any, error) {
		v, err := fn(ctx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		return v, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordSourceRequest(source, "rejected", msSince(start))
		return zero, fmt.Errorf("%s: %w: %w", source, ErrSourceUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordSourceRequest(source, "timeout", msSince(start))
		return zero, fmt.Errorf("%s: %w: %w", source, ErrSourceUnavailable, err)
	case err != nil:
		metrics.RecordSourceRequest(source, "error", msSince(start))
		return zero, err
	}
	metrics.RecordSourceRequest(source, "ok", msSince(start))
	v, _ := res.(T)
	return v, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

// CollectionPage implements Source.
func (r *Resilient) CollectionPage(ctx context.Context, handle, cursor string, limit int) (Page, error) {
	return call(ctx, r, SourceCollection, func(ctx context.Context) (Page, error) {
		return r.next.CollectionPage(ctx, handle, cursor, limit)
	})
}

// Search implements Source.
func (r *Resilient) Search(ctx context.Context, q SearchQuery) (Page, error) {
	return call(ctx, r, SourceSearch, func(ctx context.Context) (Page, error) {
		return r.next.Search(ctx, q)
	})
}

// Recommended implements Source.
func (r *Resilient) Recommended(ctx context.Context, handle string, limit int) ([]model.Candidate, error) {
	return call(ctx, r, SourceRecommended, func(ctx context.Context) ([]model.Candidate, error) {
		return r.next.Recommended(ctx, handle, limit)
	})
}

type lookup struct {
	c  model.Candidate
	ok bool
}

// ProductByHandle implements Source.
func (r *Resilient) ProductByHandle(ctx context.Context, handle string) (model.Candidate, bool, error) {
	res, err := call(ctx, r, SourceProduct, func(ctx context.Context) (lookup, error) {
		c, ok, err := r.next.ProductByHandle(ctx, handle)
		return lookup{c, ok}, err
	})
	return res.c, res.ok, err
}

// Newest implements Source.
func (r *Resilient) Newest(ctx context.Context, cursor string, limit int) (Page, error) {
	return call(ctx, r, SourceNewest, func(ctx context.Context) (Page, error) {
		return r.next.Newest(ctx, cursor, limit)
	})
}
