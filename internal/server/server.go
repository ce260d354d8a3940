// Package server exposes the catalog, logo resolution and status probes
// over a JSON HTTP API for the UI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/voyagen/radiovault/api"
	"github.com/voyagen/radiovault/internal/cache"
	"github.com/voyagen/radiovault/internal/config"
	"github.com/voyagen/radiovault/internal/handoff"
	"github.com/voyagen/radiovault/internal/httpfetch"
	"github.com/voyagen/radiovault/internal/metrics"
	"github.com/voyagen/radiovault/internal/models"
	"github.com/voyagen/radiovault/internal/probe"
	"github.com/voyagen/radiovault/internal/resolve"
	"github.com/voyagen/radiovault/internal/store"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	store    store.Store
	cfg      *config.Config
	pipeline *resolve.Pipeline
	redis    *cache.Redis // nil when REDIS_URL is not set
	fetcher  httpfetch.Fetcher
	prober   *probe.Prober
	statuses *handoff.Board[int64, models.Status]
	bg       sync.WaitGroup
	mux      *http.ServeMux
}

// New creates a Server and registers routes.
// redis may be nil; sweeps then run in-process instead of being queued.
func New(s store.Store, cfg *config.Config, p *resolve.Pipeline, redis *cache.Redis) *Server {
	srv := &Server{
		store:    s,
		cfg:      cfg,
		pipeline: p,
		redis:    redis,
		fetcher:  httpfetch.New(cfg.UserAgent),
		prober:   probe.New(cfg.ProbeTimeout),
		statuses: handoff.NewBoard[int64, models.Status](),
		mux:      http.NewServeMux(),
	}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	// Taxonomy
	s.mux.HandleFunc("GET /api/countries", s.handleListCountries)
	s.mux.HandleFunc("GET /api/countries/{name}/genres", s.handleGenresForCountry)
	s.mux.HandleFunc("GET /api/genres", s.handleListGenres)
	s.mux.HandleFunc("GET /api/genres/{name}/countries", s.handleCountriesForGenre)

	// Stations
	s.mux.HandleFunc("GET /api/stations", s.handleListStations)
	s.mux.HandleFunc("GET /api/stations/{id}", s.handleGetStation)
	s.mux.HandleFunc("POST /api/stations/{id}/logo", s.handleResolveLogo)
	s.mux.HandleFunc("POST /api/stations/{id}/probe", s.handleProbeStation)
	s.mux.HandleFunc("GET /api/statuses", s.handleListStatuses)
	s.mux.HandleFunc("POST /api/logos/sweep", s.handleSweep)

	// Sources
	s.mux.HandleFunc("GET /api/sources", s.handleListSources)
	s.mux.HandleFunc("POST /api/sources", s.handleAddSource)

	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the routes wrapped in the CORS and logging middleware.
func (s *Server) Handler() http.Handler {
	return withCORS(withLogging(s))
}

// Wait blocks until background sweeps started by the API have finished.
func (s *Server) Wait() {
	s.bg.Wait()
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled, then waits
// for background sweeps.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", addr).Msg("listening")
	err := httpServer.ListenAndServe()
	s.Wait()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- middleware ---

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withLogging logs each request and records the HTTP metrics.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method).Observe(duration.Seconds())

		ev := log.Info()
		switch {
		case sw.status >= 500:
			ev = log.Error()
		case r.URL.Path == "/metrics" || r.URL.Path == "/api/health":
			ev = log.Debug()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", sw.status).
			Dur("duration", duration).
			Msg("request")
	})
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// parseID extracts a path parameter by name and parses it as int64.
func parseID(r *http.Request, param string) (int64, error) {
	v := r.PathValue(param)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", param, v)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writeJSON")
	}
}

func writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.DocsHTML)
}
