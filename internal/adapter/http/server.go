package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportReader exposes the most recent variation report.
type ReportReader interface {
	Latest() (domain.VariationReport, bool)
}

// Server exposes health, readiness, metrics, and variation HTTP endpoints.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	reports    ReportReader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and
// /v1/variations routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports ReportReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:     mux,
		reports: reports,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/variations", s.handleVariations)

	return s
}

// Handle registers an extra route, such as the websocket report stream.
// It must be called before Start.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleVariations returns the latest report. ?category=<key> narrows the
// rows to one category, e.g. category=sex=female|age_group=85%2B.
func (s *Server) handleVariations(w http.ResponseWriter, r *http.Request) {
	report, ok := s.reports.Latest()
	if !ok {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error": "no variation report has been generated yet",
		})
		return
	}

	if key := r.URL.Query().Get("category"); key != "" {
		report.Variations = report.ForCategory(key)
		if len(report.Variations) == 0 {
			sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{
				"error": "unknown category " + key,
			})
			return
		}
		report.Categories = 1
	}

	sharedobs.WriteJSON(w, http.StatusOK, report)
}
