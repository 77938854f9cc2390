package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"norloworld/internal/cache"
	"norloworld/internal/core"
	"norloworld/internal/log"
	"norloworld/internal/metrics"
	"norloworld/internal/services"
	"norloworld/internal/snapshot"
	"norloworld/internal/stats"
)

// Submitter accepts incident reports.
type Submitter interface {
	Submit(ctx context.Context, r core.IncidentReport) (services.SubmitResult, error)
}

// Deps are the collaborators the server routes to. Metrics and Gatherer are
// optional.
type Deps struct {
	Snapshots *snapshot.Store
	Incidents Submitter
	StatsMemo *cache.StatsMemo
	Metrics   *metrics.Collector
	Gatherer  prometheus.Gatherer
	Logger    *log.Logger

	// SubmitLimit is the number of submissions one client may make per
	// minute. Zero means 30.
	SubmitLimit int
}

type Server struct {
	http.Server
	snapshots   *snapshot.Store
	incidents   Submitter
	memo        *cache.StatsMemo
	metrics     *metrics.Collector
	logger      *log.Logger
	events      *log.StructuredLogger
	rateLimiter *rateLimiter
	now         func() time.Time

	// refreshAsync triggers a background snapshot reload after a
	// submission.
	refreshAsync func()
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	memo := deps.StatsMemo
	if memo == nil {
		memo = cache.NewStatsMemo(cache.NewLRUCache[stats.Report](256, 10*time.Minute))
	}
	limit := deps.SubmitLimit
	if limit <= 0 {
		limit = 30
	}

	s := &Server{
		snapshots:   deps.Snapshots,
		incidents:   deps.Incidents,
		memo:        memo,
		metrics:     deps.Metrics,
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(limit, time.Minute),
		now:         time.Now,
	}
	s.refreshAsync = func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.snapshots.Refresh(ctx); err != nil {
				s.logger.Warn("Post-submit refresh failed", log.FieldError, err)
			}
		}()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(logger, func(r *http.Request) string { return middleware.GetReqID(r.Context()) }))
	r.Use(s.observe)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", s.handleOptions)
		r.Get("/incidents", s.handleListIncidents)
		r.With(s.limitSubmissions).Post("/incidents", s.handleCreateIncident)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/drivers", s.handleStatsDrivers)
		r.Post("/snapshot/refresh", s.handleRefresh)
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops background work and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.Server.Shutdown(ctx)
}

// observe adds security headers and records logs and metrics for every
// request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		if isSuspicious(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		setSecurityHeaders(w.Header())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		took := time.Since(start)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogHTTPEnd(r.Context(), r, status, took.Milliseconds(), clientIP)
		if s.metrics != nil {
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			s.metrics.ObserveHTTP(r.Method, route, status, took)
		}
	})
}

func (s *Server) limitSubmissions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, clientIP)
			NewJSONResponse().
				Status(http.StatusTooManyRequests).
				Header("Retry-After", "60").
				Body(map[string]*ErrorBody{"error": {Code: "rate_limited", Message: "rate limit exceeded, try again later"}}).
				Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.snapshots.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("snapshot not loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
