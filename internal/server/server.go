package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"snsworker/internal/ingest"
	"snsworker/logger"
	errs "snsworker/pkg/errors"
)

// SyncService is the orchestrator surface the admin API needs.
type SyncService interface {
	Sync(ctx context.Context, projectID string, src ingest.Source) (ingest.SyncResult, error)
	Progress() *ingest.ProgressTracker
}

// CriteriaStore persists per-project selection thresholds.
type CriteriaStore interface {
	SetSelectionCriteria(ctx context.Context, projectID string, threadsMin, blogMin, instagramMin int64) error
}

// Server is the admin HTTP API: manual sync triggers, selection criteria
// updates, progress polling and a progress event stream.
type Server struct {
	svc          SyncService
	criteria     CriteriaStore // nil disables criteria updates
	sseHeartbeat time.Duration
	sseCutoff    time.Duration

	mu        sync.Mutex
	projectMu map[string]*sync.Mutex
}

// New creates the admin server around a sync service. criteria may be nil
// when thresholds are managed outside this process.
func New(svc SyncService, criteria CriteriaStore, sseHeartbeat, sseCutoff time.Duration) *Server {
	if sseHeartbeat <= 0 {
		sseHeartbeat = 15 * time.Second
	}
	if sseCutoff <= 0 {
		sseCutoff = 30 * time.Second
	}
	return &Server{
		svc:          svc,
		criteria:     criteria,
		sseHeartbeat: sseHeartbeat,
		sseCutoff:    sseCutoff,
		projectMu:    make(map[string]*sync.Mutex),
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Post("/sync", s.handleSync)
		r.Put("/criteria", s.handleSetCriteria)
		r.Get("/progress", s.handleProgress)
		r.Get("/events", s.handleEvents)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// syncRequest carries one inline source. Exactly one of the fields should
// be set; the first non-empty one in this order wins.
type syncRequest struct {
	CSV      string            `json:"csv,omitempty"`
	SheetURL string            `json:"sheet_url,omitempty"`
	Payload  map[string]any    `json:"payload,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (req syncRequest) source(projectID string) (ingest.Source, error) {
	switch {
	case req.CSV != "":
		return ingest.CSVSource{Reader: strings.NewReader(req.CSV)}, nil
	case req.SheetURL != "":
		return ingest.SheetSource{URL: req.SheetURL, Project: projectID}, nil
	case len(req.Payload) > 0:
		return ingest.WebhookSource{Payload: req.Payload}, nil
	case len(req.Fields) > 0:
		return ingest.FormSource{Fields: req.Fields}, nil
	}
	return nil, errs.NewValidation(projectID, "request carries no source: set csv, sheet_url, payload or fields")
}

// handleSync runs one pass synchronously and returns the result. Passes
// for the same project are serialized; concurrent triggers queue behind
// the running one and then no-op thanks to dedup.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	log := logger.ForServer()

	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	src, err := req.source(projectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lock := s.lockFor(projectID)
	lock.Lock()
	defer lock.Unlock()

	result, err := s.svc.Sync(r.Context(), projectID, src)
	if err != nil {
		log.Error().Err(err).Str("project", projectID).Msg("Manual sync failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// criteriaRequest carries the per-project thresholds. Non-positive values
// fall back to the system defaults when the criteria are read back.
type criteriaRequest struct {
	ThreadsMin   int64 `json:"threads_min"`
	BlogMin      int64 `json:"blog_min"`
	InstagramMin int64 `json:"instagram_min"`
}

func (s *Server) handleSetCriteria(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if s.criteria == nil {
		writeError(w, http.StatusNotImplemented, "criteria updates are not enabled")
		return
	}

	var req criteriaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.ThreadsMin < 0 || req.BlogMin < 0 || req.InstagramMin < 0 {
		writeError(w, http.StatusBadRequest, "thresholds must be non-negative")
		return
	}

	if err := s.criteria.SetSelectionCriteria(r.Context(), projectID, req.ThreadsMin, req.BlogMin, req.InstagramMin); err != nil {
		logger.ForServer().Error().Err(err).Str("project", projectID).Msg("Failed to store criteria")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	tick, ok := s.svc.Progress().Get(projectID)
	if !ok {
		writeError(w, http.StatusNotFound, "no sync has run for project "+projectID)
		return
	}
	writeJSON(w, http.StatusOK, tick)
}

// handleEvents streams progress ticks as server-sent events. A tick is
// sent whenever it changes, a comment heartbeat keeps idle connections
// alive, and the stream closes after the cutoff so clients reconnect
// instead of pinning workers.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	poll := time.NewTicker(500 * time.Millisecond)
	defer poll.Stop()
	heartbeat := time.NewTicker(s.sseHeartbeat)
	defer heartbeat.Stop()
	deadline := time.NewTimer(s.sseCutoff)
	defer deadline.Stop()

	var lastSent time.Time
	send := func() {
		tick, ok := s.svc.Progress().Get(projectID)
		if !ok || !tick.UpdatedAt.After(lastSent) {
			return
		}
		lastSent = tick.UpdatedAt
		data, err := json.Marshal(tick)
		if err != nil {
			return
		}
		w.Write([]byte("event: progress\ndata: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	send()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-deadline.C:
			return
		case <-heartbeat.C:
			w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case <-poll.C:
			send()
		}
	}
}

// lockFor returns the per-project sync mutex, creating it on first use.
func (s *Server) lockFor(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.projectMu[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.projectMu[projectID] = lock
	}
	return lock
}

// statusFor maps sync error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var syncErr *errs.SyncError
	if !errors.As(err, &syncErr) {
		return http.StatusInternalServerError
	}
	switch syncErr.Type {
	case errs.ErrorTypeParse, errs.ErrorTypeValidation:
		return http.StatusBadRequest
	case errs.ErrorTypeFetch, errs.ErrorTypeRateLimit:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
