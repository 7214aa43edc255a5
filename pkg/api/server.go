// Package api exposes discovery runs over HTTP: start a run, poll its
// progress and result, cancel it, and scrape metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scottpeterman/netdisco/pkg/discovery"
	"github.com/scottpeterman/netdisco/pkg/errdefs"
	"github.com/scottpeterman/netdisco/pkg/persistence"
	"github.com/scottpeterman/netdisco/pkg/progress"
)

// Run states.
const (
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

// Starter launches discovery runs; *discovery.Engine implements it.
type Starter interface {
	Start(ctx context.Context, req discovery.Request) (*discovery.Run, error)
}

// RunStatus is the body of GET /api/v1/runs/{id}.
type RunStatus struct {
	ID         string             `json:"id"`
	State      string             `json:"state"`
	StartedAt  time.Time          `json:"started_at"`
	Request    *discovery.Request `json:"request,omitempty"`
	Progress   *progress.Event    `json:"progress,omitempty"`
	Result     *discovery.Result  `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	SnapshotAt *time.Time         `json:"snapshot_at,omitempty"`
}

type runEntry struct {
	run     *discovery.Run
	request discovery.Request
	started time.Time

	mutex  sync.RWMutex
	last   *progress.Event
	result *discovery.Result
	err    error
	done   bool
}

func (e *runEntry) status() RunStatus {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	req := e.request
	st := RunStatus{
		ID:        e.run.ID,
		State:     StateRunning,
		StartedAt: e.started,
		Request:   &req,
		Progress:  e.last,
	}
	if !e.done {
		return st
	}
	st.Result = e.result
	switch {
	case e.err == nil:
		st.State = StateCompleted
	case errors.Is(e.err, context.Canceled):
		st.State = StateCancelled
		st.Error = e.err.Error()
	default:
		st.State = StateFailed
		st.Error = e.err.Error()
		if kind := errdefs.KindOf(e.err); kind != 0 {
			st.ErrorKind = kind.String()
		}
	}
	return st
}

// httpStatus maps an error's kind onto a response code.
func httpStatus(err error) int {
	switch errdefs.KindOf(err) {
	case errdefs.KindValidation:
		return http.StatusBadRequest
	case errdefs.KindConnectivity:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Server wires the HTTP handlers and dependencies. Runs live in memory;
// finished ones are also written to the snapshot store when one is set.
type Server struct {
	Router chi.Router

	ctx    context.Context
	engine Starter
	store  *persistence.Store

	runs   map[string]*runEntry
	mutex  sync.RWMutex
	logger func(string)
	logMu  sync.RWMutex
}

// NewServer constructs the router and registers routes. Runs are
// started under ctx, so cancelling it stops every run.
func NewServer(ctx context.Context, engine Starter, store *persistence.Store) *Server {
	server := &Server{
		ctx:    ctx,
		engine: engine,
		store:  store,
		runs:   map[string]*runEntry{},
		logger: func(msg string) {},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", server.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/api/v1/runs", func(r chi.Router) {
		r.Get("/", server.handleRunsList)
		r.Post("/", server.handleRunsCreate)
		r.Get("/{id}", server.handleRunGet)
		r.Delete("/{id}", server.handleRunCancel)
	})

	server.Router = r
	return server
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.Router
}

// SetLogger sets a custom logger function in a thread-safe manner
func (s *Server) SetLogger(logger func(string)) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	if logger != nil {
		s.logger = logger
	} else {
		s.logger = func(msg string) {}
	}
}

func (s *Server) log(format string, args ...interface{}) {
	s.logMu.RLock()
	logger := s.logger
	s.logMu.RUnlock()
	if logger != nil {
		logger(fmt.Sprintf(format, args...))
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log("api: failed to encode response: %v", err)
		}
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, err error, status int) {
	s.jsonResponse(w, map[string]string{"error": err.Error()}, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleRunsCreate(w http.ResponseWriter, r *http.Request) {
	var req discovery.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.errorResponse(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}

	run, err := s.engine.Start(s.ctx, req)
	if err != nil {
		s.errorResponse(w, err, httpStatus(err))
		return
	}

	entry := &runEntry{run: run, request: req, started: time.Now()}
	s.mutex.Lock()
	s.runs[run.ID] = entry
	s.mutex.Unlock()

	go s.track(entry)

	s.log("api: started run %s", run.ID)
	s.jsonResponse(w, map[string]string{"id": run.ID}, http.StatusAccepted)
}

// track drains the run's events and records its outcome.
func (s *Server) track(entry *runEntry) {
	for ev := range entry.run.Events() {
		ev := ev
		entry.mutex.Lock()
		entry.last = &ev
		entry.mutex.Unlock()
	}

	res, err := entry.run.Wait()
	entry.mutex.Lock()
	entry.result, entry.err, entry.done = res, err, true
	entry.mutex.Unlock()

	if err != nil {
		s.log("api: run %s ended: %v", entry.run.ID, err)
	}
	if s.store != nil && res != nil {
		if path, err := s.store.Save(res); err != nil {
			s.log("api: run %s: failed to save snapshot: %v", entry.run.ID, err)
		} else {
			s.log("api: run %s saved to %s", entry.run.ID, path)
		}
	}
}

func (s *Server) lookup(id string) (*runEntry, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	entry, ok := s.runs[id]
	return entry, ok
}

func (s *Server) handleRunsList(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	list := make([]RunStatus, 0, len(s.runs))
	for _, entry := range s.runs {
		st := entry.status()
		st.Result = nil
		list = append(list, st)
	}
	s.mutex.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].StartedAt.Before(list[j].StartedAt) })
	s.jsonResponse(w, list, http.StatusOK)
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.errorResponse(w, fmt.Errorf("invalid run id"), http.StatusBadRequest)
		return
	}

	if entry, ok := s.lookup(id); ok {
		s.jsonResponse(w, entry.status(), http.StatusOK)
		return
	}

	if s.store != nil {
		if snap, err := s.store.Load(id); err == nil {
			saved := snap.SavedAt
			s.jsonResponse(w, RunStatus{
				ID:         id,
				State:      StateCompleted,
				StartedAt:  snap.Result.StartedAt,
				Result:     snap.Result,
				SnapshotAt: &saved,
			}, http.StatusOK)
			return
		}
	}
	s.errorResponse(w, fmt.Errorf("run not found"), http.StatusNotFound)
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(chi.URLParam(r, "id"))
	if !ok {
		s.errorResponse(w, fmt.Errorf("run not found"), http.StatusNotFound)
		return
	}
	entry.run.Cancel()
	s.log("api: cancel requested for run %s", entry.run.ID)
	s.jsonResponse(w, map[string]string{"id": entry.run.ID, "state": "cancelling"}, http.StatusAccepted)
}
