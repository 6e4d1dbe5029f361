package repository

import (
	"context"
	"time"

	"github.com/okian/tailor/internal/domain/signal"
	"github.com/okian/tailor/pkg/logger"
)

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger logger.Logger
}

func defaultOptions() options {
	return options{now: time.Now, logger: logger.NamedOrNop("repository")}
}

// WithClock sets the clock used when decoding stored profiles.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// decode turns a stored record into a profile, logging records that had to
// be discarded.
func (o options) decode(ctx context.Context, id string, raw []byte, now time.Time) signal.Profile {
	p, valid := signal.DecodeValid(raw, now)
	if !valid {
		o.logger.Warn(ctx, "discarding malformed stored profile",
			logger.String("identity", id), logger.Int("bytes", len(raw)))
	}
	return p
}
