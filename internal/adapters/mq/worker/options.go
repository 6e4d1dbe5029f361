// Package worker applies queued behavioral events with a pool of goroutines.
package worker

import (
	"time"

	"github.com/okian/tailor/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithEventTimeout bounds the handling of one event.
func WithEventTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.eventTimeout = d
		}
	}
}

// WithDrainTimeout bounds how long shutdown waits for queued events.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
