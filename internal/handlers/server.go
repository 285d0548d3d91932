package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

// Version is reported by the health endpoint.
const Version = "v1.0.0"

// Runner starts sync runs.
type Runner interface {
	RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error)
}

// Server holds the HTTP server and its dependencies
type Server struct {
	config   *config.Config
	runner   Runner
	store    report.Store
	gatherer prometheus.Gatherer
	logger   logger.Logger
}

// NewServer creates a new HTTP server. store and gatherer may be nil.
func NewServer(cfg *config.Config, runner Runner, store report.Store, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		config:   cfg,
		runner:   runner,
		store:    store,
		gatherer: gatherer,
		logger:   log,
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	// API routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)

	// Health check
	api.HandleFunc("/health", s.healthHandler).Methods("GET")

	// Sync trigger
	api.Handle("/sync", s.authMiddleware(http.HandlerFunc(s.syncHandler))).Methods("POST")

	// Run history
	api.HandleFunc("/runs", s.listRunsHandler).Methods("GET")
	api.HandleFunc("/runs/{id}", s.getRunHandler).Methods("GET")

	// Configuration
	api.HandleFunc("/config", s.configHandler).Methods("GET")

	return r
}

// Middleware functions

// authMiddleware requires the configured bearer token. No token configured means open access.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.config.WebhookAuthToken
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap the ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Info("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", wrapped.statusCode),
			logger.Duration("duration", time.Since(start)))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying connection.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
