// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/tailor/internal/adapters/repository"
	service "github.com/okian/tailor/internal/app"
	"github.com/okian/tailor/internal/domain/model"
	"github.com/okian/tailor/internal/retrieval"
	"github.com/okian/tailor/pkg/logger"
	"github.com/okian/tailor/pkg/metrics"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// SubmitEvent queues a behavioral event. duplicate reports an already
	// accepted event id.
	SubmitEvent(ctx context.Context, e model.Event) (duplicate bool, err error)

	Feed(ctx context.Context, req retrieval.FeedRequest) (retrieval.FeedPage, error)
	Reel(ctx context.Context, req retrieval.ReelRequest) (retrieval.ReelPage, error)

	Profile(ctx context.Context, identity string) (service.ProfileView, error)
	ResetProfile(ctx context.Context, identity string) error
	SetGender(ctx context.Context, identity string, g model.Gender) (service.ProfileView, error)

	GetStats(ctx context.Context) service.Stats
}

// Option configures the Server.
type Option func(*Server)

// WithEventsRateLimit limits POST /events per client IP. Zero disables it.
func WithEventsRateLimit(perMinute int) Option {
	return func(s *Server) {
		if perMinute >= 0 {
			s.eventsPerMinute = perMinute
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps            Dependencies
	validate        *validator.Validate
	logger          logger.Logger
	eventsPerMinute int
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		logger:   logger.NamedOrNop("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the router with every endpoint attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.handleHealth, "healthz"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", MetricsMiddleware(s.handleStats, "stats"))

	r.Group(func(r chi.Router) {
		if s.eventsPerMinute > 0 {
			r.Use(httprate.LimitByIP(s.eventsPerMinute, time.Minute))
		}
		r.Post("/events", MetricsMiddleware(s.handlePostEvent, "events"))
	})

	r.Get("/feed", MetricsMiddleware(s.handleFeed, "feed"))
	r.Get("/reel/{handle}", MetricsMiddleware(s.handleReel, "reel"))

	r.Route("/profiles/{identity}", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.handleGetProfile, "profile"))
		r.Delete("/", MetricsMiddleware(s.handleResetProfile, "profile"))
		r.Put("/gender", MetricsMiddleware(s.handleSetGender, "profile_gender"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps err onto a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		status int
		code   string
		kind   error
	)
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, repository.ErrEmptyIdentity):
		status, code, kind = http.StatusBadRequest, "bad_request", ErrBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, retrieval.ErrSeedNotFound):
		status, code, kind = http.StatusNotFound, "not_found", ErrNotFound
	case errors.Is(err, service.ErrBackpressure):
		status, code, kind = http.StatusTooManyRequests, "backpressure", ErrBackpressure
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, context.DeadlineExceeded):
		status, code, kind = http.StatusServiceUnavailable, "unavailable", ErrUnavailable
	default:
		status, code, kind = http.StatusInternalServerError, "internal", ErrInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("op", op),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err))
	}
	writeError(w, status, code, WrapKind(op, kind, err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}
