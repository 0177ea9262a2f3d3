// Package api exposes the task pool engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/logging"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
)

// ActorHeader carries the caller identity. Authentication happens upstream.
const ActorHeader = "X-Actor-ID"

type ctxKey struct{}

var log = logging.For("api")

// Server is the HTTP API server.
type Server struct {
	engine *pool.Engine
	mux    *http.ServeMux
}

// New creates a new Server.
func New(engine *pool.Engine) *Server {
	s := &Server{
		engine: engine,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	log.WithFields(logrus.Fields{
		"method":   r.Method,
		"path":     r.URL.Path,
		"status":   rec.status,
		"duration": time.Since(start),
	}).Debug("request")
}

func (s *Server) routes() {
	// Tasks
	s.handle("GET /api/tasks", s.handleTaskList)
	s.handle("POST /api/tasks", s.handleTaskCreate)
	s.handle("GET /api/tasks/{id}", s.handleTaskGet)
	s.handle("POST /api/tasks/{id}/claim", s.handleClaim)
	s.handle("POST /api/tasks/{id}/release", s.handleRelease)
	s.handle("POST /api/tasks/{id}/assign", s.handleAssign)
	s.handle("POST /api/tasks/{id}/unassign", s.handleUnassign)
	s.handle("POST /api/tasks/{id}/handoff", s.handleHandoff)
	s.handle("POST /api/tasks/{id}/handoff/accept", s.handleHandoffAccept)
	s.handle("POST /api/tasks/{id}/handoff/decline", s.handleHandoffDecline)
	s.handle("POST /api/tasks/{id}/complete", s.handleComplete)
	s.handle("POST /api/tasks/{id}/cancel", s.handleCancel)
	s.handle("GET /api/tasks/{id}/activity", s.handleActivity)
	s.handle("GET /api/tasks/{id}/handoffs", s.handleHandoffs)

	// Steps
	s.handle("GET /api/tasks/{id}/steps", s.handleStepList)
	s.handle("POST /api/tasks/{id}/steps", s.handleStepAdd)
	s.handle("POST /api/tasks/{id}/steps/reorder", s.handleStepReorder)
	s.handle("POST /api/tasks/{id}/steps/{stepID}/toggle", s.handleStepToggle)
	s.handle("DELETE /api/tasks/{id}/steps/{stepID}", s.handleStepDelete)

	// Suggestions
	s.handle("GET /api/suggestions", s.handleSuggestionList)
	s.handle("POST /api/suggestions", s.handleSuggestionCreate)
	s.handle("GET /api/suggestions/{id}", s.handleSuggestionGet)
	s.handle("POST /api/suggestions/{id}/approve", s.handleSuggestionApprove)
	s.handle("POST /api/suggestions/{id}/decline", s.handleSuggestionDecline)

	// System
	s.handle("GET /api/stats", s.handleStats)
	s.handle("GET /api/action-types", s.handleActionTypes)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// handle registers an /api route that requires a caller identity.
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ActorHeader+" header")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, actor)))
	})
}

func actorOf(r *http.Request) string {
	actor, _ := r.Context().Value(ctxKey{}).(string)
	return actor
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "tenant": s.engine.TenantID()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Stats(r.Context(), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleActionTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.engine.ActionTypes(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("write json")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps engine error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pool.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, pool.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, pool.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pool.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, pool.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
