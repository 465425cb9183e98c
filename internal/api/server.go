// Package api serves detection, merging and story search over HTTP, plus the
// MCP tools on /mcp and Prometheus metrics on /metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dusk-indust/mosromgr/internal/export"
	"github.com/dusk-indust/mosromgr/internal/mcptools"
	"github.com/dusk-indust/mosromgr/internal/mos"
	"github.com/dusk-indust/mosromgr/internal/orchestrator"
	"github.com/dusk-indust/mosromgr/internal/rograph"
)

const maxBodyBytes = 32 << 20

// Server routes HTTP requests to the shared tool service.
type Server struct {
	svc     *mcptools.Service
	graph   rograph.Store
	metrics http.Handler
	router  chi.Router
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithGraph enables the diagram route.
func WithGraph(g rograph.Store) Option { return func(s *Server) { s.graph = g } }

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithVersion is reported by /healthz.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

func NewServer(svc *mcptools.Service, opts ...Option) *Server {
	srv := &Server{svc: svc, version: "dev"}
	for _, o := range opts {
		o(srv)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Get("/healthz", srv.handleHealth)
	if srv.metrics != nil {
		r.Method(http.MethodGet, "/metrics", srv.metrics)
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect", srv.handleDetect)
		r.Post("/inspect", srv.handleInspect)
		r.Post("/merge", srv.handleMerge)
		r.Post("/merge/stream", srv.handleMergeStream)
		r.Get("/stories", srv.handleQueryStories)
		r.Get("/running-orders", srv.handleRunningOrders)
		r.Get("/running-orders/{roID}/diagram", srv.handleDiagram)
	})
	r.Mount("/mcp", mcptools.Handler(svc))

	srv.router = r
	return srv
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("starting HTTP API", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mosromgr",
		"version": s.version,
	})
}

// handleDetect classifies the raw message in the request body. The name
// query parameter selects decompression by extension.
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Detect(r.Context(), mcptools.DetectMessageInput{
		Name: r.URL.Query().Get("name"),
		XML:  string(body),
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleInspect summarizes the running order in the request body.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	script, _ := strconv.ParseBool(r.URL.Query().Get("script"))
	out, err := s.svc.Inspect(r.Context(), mcptools.InspectRunningOrderInput{XML: string(body), Script: script})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, out.RunningOrder)
}

// handleMerge merges a JSON collection. With ?format=xml a successful merge
// answers with the running order document itself.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var in mcptools.MergeMessagesInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	out, err := s.svc.Merge(r.Context(), in)
	if err != nil {
		status := statusFor(err)
		if out.ROID != "" {
			// Partial result of a strict abort.
			writeJSON(w, status, map[string]any{"error": err.Error(), "result": out})
			return
		}
		writeError(w, status, err)
		return
	}
	if r.URL.Query().Get("format") == "xml" {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, out.XML)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQueryStories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q is required"})
		return
	}
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	out, err := s.svc.QueryStories(r.Context(), mcptools.QueryStoriesInput{Query: q, Limit: limit})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, out.Stories)
}

// handleRunningOrders lists every indexed running order.
func (s *Server) handleRunningOrders(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "graph index is not configured"})
		return
	}
	ros, err := s.graph.RunningOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ros == nil {
		ros = []rograph.RunningOrderNode{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runningOrders": ros})
}

func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "graph index is not configured"})
		return
	}
	roID := chi.URLParam(r, "roID")
	ro, err := s.graph.GetRunningOrder(r.Context(), roID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ro == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "running order not indexed"})
		return
	}
	diagram, err := export.GenerateMermaid(r.Context(), s.graph, roID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, diagram)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return nil, false
	}
	return body, true
}

// statusFor maps domain errors to HTTP statuses: problems with the submitted
// documents are the client's, anything else is ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidCollection),
		errors.Is(err, mos.ErrInvalidXML):
		return http.StatusBadRequest
	case orchestrator.IsFatal(err), mos.IsFatal(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "component", "api", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
