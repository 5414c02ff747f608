// Package server serves rendered documentation with a live requirement
// API and build metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semreq/requirement"
)

const shutdownTimeout = 5 * time.Second

// Registry is the read side of a requirement environment.
type Registry interface {
	Query(expr string, sortKeys []string) ([]*requirement.Record, error)
	Lookup(target string) (*requirement.Record, bool)
	Report() *requirement.Report
}

// Options configures a Server.
type Options struct {
	// StaticDir is served under "/". Empty disables static files.
	StaticDir string

	// Gatherer backs /metrics. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// Server is the preview server.
type Server struct {
	registry Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a server over reg.
func New(reg Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{registry: reg, opts: opts, logger: logger}
}

// Handler returns the HTTP handler:
//
//	GET /healthz
//	GET /metrics
//	GET /api/requirements[?filter=&sort=]
//	GET /api/requirements/{id}
//	GET /api/report
//	GET /*            static output
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/requirements", s.handleList)
		r.Get("/requirements/{id}", s.handleGet)
		r.Get("/report", s.handleReport)
	})
	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", addr, "static", s.opts.StaticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

// requirementView is the API representation of a record.
type requirementView struct {
	*requirement.Record
	Text string `json:"text"`
}

func view(r *requirement.Record) requirementView {
	return requirementView{Record: r, Text: r.Text()}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"finalized": s.registry.Report() != nil,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var sortKeys []string
	if v := q.Get("sort"); v != "" {
		sortKeys = []string{v}
	}
	records, err := s.registry.Query(q.Get("filter"), sortKeys)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, requirement.ErrInvalidFilterExpression) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	out := make([]requirementView, len(records))
	for i, rec := range records {
		out[i] = view(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := s.registry.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "requirement not found: " + id})
		return
	}
	writeJSON(w, http.StatusOK, view(rec))
}

// reportView adds the listing errors, which are not JSON-encodable as is.
type reportView struct {
	*requirement.Report
	ListingErrors []string `json:"listing_errors,omitempty"`
	OK            bool     `json:"ok"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.registry.Report()
	if report == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "build not finalized"})
		return
	}
	v := reportView{Report: report, OK: report.OK()}
	for _, err := range report.ListingErrors {
		v.ListingErrors = append(v.ListingErrors, err.Error())
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Response is already partially written.
		_ = err
	}
}
