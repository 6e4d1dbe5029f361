package service

import (
	"time"

	"github.com/okian/tailor/internal/adapters/catalog"
	"github.com/okian/tailor/internal/adapters/repository"
	"github.com/okian/tailor/internal/adapters/telemetry"
	"github.com/okian/tailor/internal/config"
	"github.com/okian/tailor/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore uses an existing profile store instead of opening one from config.
// The caller keeps ownership of it.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithSource uses an existing candidate source instead of loading a catalog.
// It is still wrapped with timeouts, throttling and breakers.
func WithSource(src catalog.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithTelemetry adds a sink next to the built-in prometheus and log sinks.
func WithTelemetry(sink telemetry.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.extraSink = sink
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
