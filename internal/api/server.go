// Package api exposes the operations HTTP interface: health probes,
// Prometheus metrics, refresh triggering, and the canned term reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/job"
	"github.com/gradstats/admissions-crawler/internal/query"
	"github.com/gradstats/admissions-crawler/internal/telemetry"
)

const reportTimeout = 10 * time.Second

// RefreshRunner starts refresh jobs and reports their state. Satisfied by
// job.Runner.
type RefreshRunner interface {
	Trigger() (uuid.UUID, error)
	Status() job.Status
}

// Reporter answers the canned analytical queries. Satisfied by query.Engine.
type Reporter interface {
	TermSummary(ctx context.Context, season string, year int) (query.TermReport, error)
}

// Pinger verifies database reachability for the readiness probe. Satisfied
// by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the job runner and query engine.
type Server struct {
	router   chi.Router
	runner   RefreshRunner
	reporter Reporter
	db       Pinger
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner RefreshRunner, reporter Reporter, db Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{runner: runner, reporter: reporter, db: db, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/refresh", s.triggerRefresh)
		r.Get("/refresh/status", s.refreshStatus)
		r.Get("/reports/term", s.termReport)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("readiness ping failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// triggerRefresh handles POST /v1/refresh. It returns 202 with the job ID,
// or 409 when a refresh is already in flight.
func (s *Server) triggerRefresh(w http.ResponseWriter, _ *http.Request) {
	jobID, err := s.runner.Trigger()
	if err != nil {
		if errors.Is(err, job.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("refresh trigger failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID.String()})
}

func (s *Server) refreshStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

// termReport handles GET /v1/reports/term?season=fall&year=2024.
func (s *Server) termReport(w http.ResponseWriter, r *http.Request) {
	season := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("season")))
	if season == "" {
		writeError(w, http.StatusBadRequest, "season is required")
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 1990 || year > 2100 {
		writeError(w, http.StatusBadRequest, "year must be a plausible four-digit year")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reportTimeout)
	defer cancel()
	report, err := s.reporter.TermSummary(ctx, season, year)
	if err != nil {
		s.logger.Error("term report failed",
			zap.String("season", season),
			zap.Int("year", year),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
