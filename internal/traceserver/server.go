// Package traceserver is the ambient, read-only HTTP surface that lets a
// developer inspect the most recent bug trace and schedule trace while
// psharptest is paused on a failing iteration. It is not part of the
// scheduler's own contract; it's a small chi-routed convenience layered
// on top of the trace package's two formats.
package traceserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/psharp-go/psharp/trace"
)

// Server serves the latest BugTrace and ScheduleTrace as JSON. Latest
// is updated by the caller (typically the scheduler's StepObserver or
// an end-of-iteration hook) via SetLatest; the HTTP handlers only ever
// read.
type Server struct {
	mu       sync.RWMutex
	bug      *trace.BugTrace
	schedule *trace.ScheduleTrace
	router   chi.Router
}

// New builds a Server with its routes already mounted.
func New() *Server {
	s := &Server{}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/trace/bug", s.handleBugTrace)
	r.Get("/trace/schedule", s.handleScheduleTrace)
	s.router = r
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetLatest replaces the traces served by Server with the ones from the
// iteration that just finished.
func (s *Server) SetLatest(bug *trace.BugTrace, schedule *trace.ScheduleTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bug = bug
	s.schedule = schedule
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleBugTrace(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	bt := s.bug
	s.mu.RUnlock()
	if bt == nil {
		http.Error(w, "no bug trace recorded yet", http.StatusNotFound)
		return
	}
	writeJSON(w, bt)
}

func (s *Server) handleScheduleTrace(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.schedule
	s.mu.RUnlock()
	if st == nil {
		http.Error(w, "no schedule trace recorded yet", http.StatusNotFound)
		return
	}
	writeJSON(w, st)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
