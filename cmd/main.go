package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/okian/tailor/internal/adapters/http/api"
	app "github.com/okian/tailor/internal/app"
	"github.com/okian/tailor/internal/config"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Use stderr since the logger may not be available
		os.Stderr.WriteString("tailor: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithConstLabels(cfg.MetricsLabels),
	)

	svc := app.New(app.WithConfig(cfg), app.WithLogger(log.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	srv := newHTTPServer(cfg, svc)
	sup := newSupervisor(log.Named("supervisor"))
	sup.Add(&httpService{server: srv, shutdownTimeout: shutdownTimeout, logger: log.Named("http")})
	sup.Add(svc.Workers())
	sup.Add(&metricsUpdater{svc: svc})

	log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
	err = sup.Serve(ctx)
	log.Info(context.Background(), "server stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	apiServer := api.NewServer(svc,
		api.WithEventsRateLimit(cfg.EventsRatePerMinute),
		api.WithLogger(logger.NamedOrNop("api")),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// newSupervisor builds the root supervisor. Supervisor events are logged.
func newSupervisor(log logger.Logger) *suture.Supervisor {
	return suture.New("tailor", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn(context.Background(), e.String(), logger.Any("event", e.Map()))
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          shutdownTimeout,
	})
}

// httpService runs an http.Server under the supervisor.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          logger.Logger
}

// Serve implements suture.Service.
func (h *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		h.logger.Info(context.Background(), "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *httpService) String() string { return "http-server" }

// metricsUpdater refreshes system and service gauges on a timer.
type metricsUpdater struct {
	svc *app.Service
}

// Serve implements suture.Service.
func (m *metricsUpdater) Serve(ctx context.Context) error {
	system := time.NewTicker(systemMetricsInterval)
	defer system.Stop()
	service := time.NewTicker(serviceMetricsInterval)
	defer service.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-system.C:
			updateSystemMetrics()
		case <-service.C:
			updateServiceMetrics(ctx, m.svc)
		}
	}
}

func (m *metricsUpdater) String() string { return "metrics-updater" }

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(ctx context.Context, svc *app.Service) {
	st := svc.GetStats(ctx)
	if !st.Started {
		return
	}
	metrics.UpdateQueueSize(st.QueueLength)
	metrics.UpdateWorkerCount(st.Workers.Workers)
}
