// Package server exposes the analytics snapshot, readiness status,
// and backfill control over a small REST API.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/agentlens/agentlens/internal/analytics"
	"github.com/agentlens/agentlens/internal/backfill"
	"github.com/agentlens/agentlens/internal/parser"
	"github.com/agentlens/agentlens/internal/readiness"
	"github.com/agentlens/agentlens/internal/session"
)

// Server is the HTTP server over the aggregator, readiness tracker,
// and backfill controller.
type Server struct {
	addr     string
	agg      *analytics.Aggregator
	tracker  *readiness.Tracker
	backfill *backfill.Controller
	targets  []backfill.Target
	mux      *http.ServeMux
	httpSrv  *http.Server
	timezone *time.Location
}

// New creates a new Server.
func New(
	addr string,
	agg *analytics.Aggregator,
	tracker *readiness.Tracker,
	bf *backfill.Controller,
	targets []backfill.Target,
) *Server {
	s := &Server{
		addr:     addr,
		agg:      agg,
		tracker:  tracker,
		backfill: bf,
		targets:  targets,
		mux:      http.NewServeMux(),
		timezone: time.Local,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/backfill", s.handleStartBackfill)
	s.mux.HandleFunc("DELETE /api/backfill", s.handleCancelBackfill)
}

// handleSnapshot updates the active query from the URL parameters
// and returns the freshly computed snapshot.
func (s *Server) handleSnapshot(
	w http.ResponseWriter, r *http.Request,
) {
	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.agg.SetRequest(req))
}

func (s *Server) handleStatus(
	w http.ResponseWriter, _ *http.Request,
) {
	p := s.backfill.Progress()
	writeJSON(w, http.StatusOK, map[string]any{
		"is_loading":          s.agg.IsLoading(),
		"is_ready":            s.tracker.Ready(),
		"is_parsing_sessions": p.Running,
		"parsing_progress":    p.Fraction,
		"parsing_status":      p.Status,
	})
}

func (s *Server) handleStartBackfill(
	w http.ResponseWriter, _ *http.Request,
) {
	s.backfill.Start(s.targets)
	writeJSON(w, http.StatusAccepted,
		map[string]string{"status": "started"})
}

func (s *Server) handleCancelBackfill(
	w http.ResponseWriter, _ *http.Request,
) {
	s.backfill.Cancel()
	writeJSON(w, http.StatusOK,
		map[string]string{"status": "canceled"})
}

// parseRequest translates URL query parameters into an analytics
// request. Unknown range kinds and sources are rejected; custom
// ranges require at least a from date.
func (s *Server) parseRequest(
	r *http.Request,
) (analytics.Request, error) {
	q := r.URL.Query()
	req := analytics.Request{
		Range:   analytics.DateRange{Kind: analytics.RangeLast30Days},
		Project: q.Get("project"),
	}

	if v := q.Get("range"); v != "" {
		switch kind := analytics.RangeKind(v); kind {
		case analytics.RangeToday, analytics.RangeYesterday,
			analytics.RangeLast7Days, analytics.RangeLast30Days,
			analytics.RangeAllTime, analytics.RangeCustom:
			req.Range.Kind = kind
		default:
			return req, fmt.Errorf("unknown range %q", v)
		}
	}

	if req.Range.Kind == analytics.RangeCustom {
		from, err := s.parseDate(q.Get("from"))
		if err != nil {
			return req, fmt.Errorf("invalid from date: %w", err)
		}
		if from.IsZero() {
			return req, fmt.Errorf("custom range requires a from date")
		}
		req.Range.From = from

		to, err := s.parseDate(q.Get("to"))
		if err != nil {
			return req, fmt.Errorf("invalid to date: %w", err)
		}
		if !to.IsZero() {
			// A date-only upper bound means through the end of
			// that day; the window upper bound is exclusive.
			req.Range.To = to.AddDate(0, 0, 1)
		}
	}

	if v := q.Get("source"); v != "" {
		src := session.Source(strings.ToLower(v))
		if _, ok := parser.AgentBySource(src); !ok {
			return req, fmt.Errorf("unknown source %q", v)
		}
		req.Source = src
	}
	return req, nil
}

// parseDate accepts a local calendar date (2006-01-02) or a full
// RFC 3339 timestamp. Empty input is a zero time, not an error.
func (s *Server) parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(
		"2006-01-02", v, s.timezone,
	); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return logMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	log.Printf("Starting server at http://%s", s.addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
