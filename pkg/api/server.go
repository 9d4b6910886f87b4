// Package api provides the HTTP endpoints of the product service
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scttfrdmn/productcache/internal/config"
	"github.com/scttfrdmn/productcache/internal/metrics"
	"github.com/scttfrdmn/productcache/internal/provider"
	"github.com/scttfrdmn/productcache/pkg/errors"
	"github.com/scttfrdmn/productcache/pkg/health"
	"github.com/scttfrdmn/productcache/pkg/types"
)

// Version is reported by the /info endpoint
const Version = "1.0.0"

const timestampLayout = "2006-01-02T15:04:05"

// ProductFinder looks products up through the caches
type ProductFinder interface {
	FindByID(ctx context.Context, id string) (types.Product, error)
	FindByType(ctx context.Context, productType string) ([]types.Product, error)
	FindAll(ctx context.Context) ([]types.Product, error)
}

// Recommender answers recommendation queries
type Recommender interface {
	Recommend(ctx context.Context, q types.RecommendationQuery) ([]types.Product, error)
}

// StatsSource reports cache statistics
type StatsSource interface {
	Stats() provider.Stats
}

// Dependencies are the collaborators of a Server. Metrics, Health and
// Logger may be nil.
type Dependencies struct {
	Products        ProductFinder
	Recommendations Recommender
	Caches          StatsSource
	Metrics         *metrics.Collector
	Health          *health.Tracker
	Logger          *slog.Logger
}

// Server serves the product API
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	config     config.ServerConfig
	deps       Dependencies
	logger     *slog.Logger
	started    time.Time
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Timestamp string   `json:"timestamp"`
	Status    int      `json:"status"`
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Path      string   `json:"path"`
	Details   []string `json:"details,omitempty"`
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		deps:    deps,
		logger:  logger.With("component", "api"),
		started: time.Now(),
	}

	mux := http.NewServeMux()

	// Product endpoints
	mux.HandleFunc("GET /api/products", s.handleFindAll)
	mux.HandleFunc("GET /api/products/{id}", s.handleFindByID)
	mux.HandleFunc("GET /api/products/type/{type}", s.handleFindByType)
	mux.HandleFunc("GET /api/products/recommendations", s.handleRecommendations)

	// Operational endpoints
	mux.HandleFunc("GET /cache/stats", s.handleCacheStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /info", s.handleInfo)

	if s.metricsEnabled() {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	// Apply middleware
	handler := s.metricsMiddleware(mux)
	handler = s.loggingMiddleware(handler)
	if cfg.EnableCORS {
		handler = s.corsMiddleware(handler)
	}
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "address", s.config.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Product endpoint handlers

func (s *Server) handleFindByID(w http.ResponseWriter, r *http.Request) {
	product, err := s.deps.Products.FindByID(r.Context(), r.PathValue("id"))
	s.observe("find_by_id", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleFindByType(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Products.FindByType(r.Context(), r.PathValue("type"))
	s.observe("find_by_type", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondList(w, products)
}

func (s *Server) handleFindAll(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Products.FindAll(r.Context())
	s.observe("find_all", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondList(w, products)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	query, err := ParseRecommendationQuery(r)
	if err != nil {
		s.observe("recommend", err)
		s.respondError(w, r, err)
		return
	}

	products, err := s.deps.Recommendations.Recommend(r.Context(), query)
	s.observe("recommend", err)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondList(w, products)
}

// ParseRecommendationQuery reads the optional recommendation filters from
// the query string. Prices are in cents.
func ParseRecommendationQuery(r *http.Request) (types.RecommendationQuery, error) {
	values := r.URL.Query()
	var q types.RecommendationQuery

	for _, p := range []struct {
		name string
		dst  **int64
	}{
		{"minPrice", &q.MinPrice},
		{"maxPrice", &q.MaxPrice},
	} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, badParameter(p.name, raw, err)
		}
		*p.dst = &v
	}

	if raw := values.Get("age"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, badParameter("age", raw, err)
		}
		q.Age = &v
	}
	if v := values.Get("type"); v != "" {
		q.Type = &v
	}
	if v := values.Get("category"); v != "" {
		q.Category = &v
	}
	return q, nil
}

// Operational endpoint handlers

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Caches == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"note": "Cache statistics not configured",
		})
		return
	}
	s.respondJSON(w, http.StatusOK, s.deps.Caches.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"note":   "Health tracking not configured",
		})
		return
	}

	overall := s.deps.Health.GetOverallHealth()
	statusCode := http.StatusOK
	if overall == health.StateUnavailable {
		statusCode = http.StatusServiceUnavailable
	}

	s.respondJSON(w, statusCode, map[string]interface{}{
		"status":     overall,
		"timestamp":  time.Now().Format(timestampLayout),
		"components": s.deps.Health.GetAllComponents(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{
		"/api/products",
		"/api/products/{id}",
		"/api/products/type/{type}",
		"/api/products/recommendations",
		"/cache/stats",
		"/health",
		"/info",
	}
	if s.metricsEnabled() {
		endpoints = append(endpoints, "/metrics")
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service":   "productcache",
		"version":   Version,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().Format(timestampLayout),
		"endpoints": endpoints,
	})
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Served request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	if s.deps.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// the mux fills in the matched pattern; keep label cardinality bounded
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.RecordHTTPRequest(route, rec.status, time.Since(start))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Helper methods

func (s *Server) metricsEnabled() bool {
	return s.config.EnableMetrics && s.deps.Metrics != nil && s.deps.Metrics.Enabled()
}

// observe feeds the outcome of a service call to the health tracker and the error counter
func (s *Server) observe(operation string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordError(operation, err)
	}
	if s.deps.Health == nil {
		return
	}
	if appErr, ok := errors.As(err); ok && appErr.Category == errors.CategoryStorage {
		s.deps.Health.RecordError(health.ComponentStore, err)
		return
	}
	s.deps.Health.RecordSuccess(health.ComponentStore)
}

func (s *Server) respondList(w http.ResponseWriter, products []types.Product) {
	if len(products) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondJSON(w, http.StatusOK, products)
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Error encoding JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusOf(err)
	body := ErrorResponse{
		Timestamp: time.Now().Format(timestampLayout),
		Status:    status,
		Error:     http.StatusText(status),
		Path:      r.URL.Path,
	}

	if appErr, ok := errors.As(err); ok {
		body.Message = appErr.UserFacingMessage()
		if appErr.UserFacing {
			body.Details = formatDetails(appErr.Details)
		}
	} else {
		body.Message = "An unexpected error occurred"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", r.URL.Path, "error", err)
	}

	s.respondJSON(w, status, body)
}

func badParameter(name, raw string, cause error) error {
	return errors.Wrap(cause, errors.ErrCodeInvalidQuery, fmt.Sprintf("invalid value for %s: %q", name, raw)).
		WithComponent("api").
		WithOperation("recommend").
		WithDetail(name, raw)
}

// formatDetails renders error details as sorted "key: value" lines
func formatDetails(details map[string]interface{}) []string {
	if len(details) == 0 {
		return nil
	}
	out := make([]string, 0, len(details))
	for k, v := range details {
		if list, ok := v.([]string); ok {
			v = strings.Join(list, "; ")
		}
		out = append(out, fmt.Sprintf("%s: %v", k, v))
	}
	sort.Strings(out)
	return out
}
