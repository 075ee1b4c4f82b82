package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/log"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/middleware/security"
	"rewards/internal/middleware/trace"
	"rewards/internal/services"
)

// RewardCalculator computes reward points. *services.RewardService implements it.
type RewardCalculator interface {
	GetCustomerPoints(ctx context.Context, customerID int64, start, end *core.Date) (core.RewardResult, error)
	GetAllCustomersPoints(ctx context.Context, start, end *core.Date) (core.CustomerRewards, error)
}

// TransactionRecorder accepts purchases. *services.TransactionService implements it.
type TransactionRecorder interface {
	Record(ctx context.Context, in services.RecordInput) (services.RecordOutcome, error)
	Writable() bool
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Rewards RewardCalculator
	// Transactions is nil when the server cannot accept purchases.
	Transactions TransactionRecorder
	Pinger       ledger.Pinger
	// CacheStats reports ledger cache usage for /metrics, when the backend caches.
	CacheStats func() cache.Stats
	Backend    string
}

// Options tune the server.
type Options struct {
	RateLimitPerMinute int
	ReadyTimeout       time.Duration
}

// Server is the reward API.
type Server struct {
	http.Server
	deps   Deps
	opts   Options
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	metrics          *appMetrics

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}

	detector := security.NewDetector(logger)
	s := &Server{
		deps:             deps,
		opts:             opts,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		metrics:          newAppMetrics(),
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError("method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/rewards", func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError().Write(w)
		}))
		r.Get("/points/{customerId}", s.handleCustomerPoints)
		r.Get("/allcustomers", s.handleAllCustomersPoints)
		r.Post("/transactions", s.handleRecordTransaction)
	})

	return r
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
