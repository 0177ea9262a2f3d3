package api

import (
	"net/http"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.TaskFilter{
		Status:       store.TaskStatus(q.Get("status")),
		ClaimedBy:    q.Get("claimed_by"),
		AssignedTo:   q.Get("assigned_to"),
		ActionTypeID: q.Get("action_type"),
		PoolOnly:     q.Get("pool") == "true",
		Limit:        queryInt(r, "limit", 50),
	}
	if f.Status != "" && !store.ValidStatus(f.Status) {
		writeError(w, http.StatusBadRequest, "unknown status "+string(f.Status))
		return
	}
	tasks, err := s.engine.ListTasks(r.Context(), f)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var in pool.NewTask
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.engine.CreateTask(r.Context(), actorOf(r), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Claim(r.Context(), r.PathValue("id"), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Release(r.Context(), r.PathValue("id"), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignee string `json:"assignee"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.engine.Assign(r.Context(), r.PathValue("id"), body.Assignee, actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Unassign(r.Context(), r.PathValue("id"), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleHandoff(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To    string `json:"to"`
		Notes string `json:"notes"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.InitiateHandoff(r.Context(), r.PathValue("id"), actorOf(r), body.To, body.Notes)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHandoffAccept(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.AcceptHandoff(r.Context(), r.PathValue("id"), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHandoffDecline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.DeclineHandoff(r.Context(), r.PathValue("id"), actorOf(r), body.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Route *pool.RouteSpec `json:"route"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.Complete(r.Context(), r.PathValue("id"), actorOf(r), body.Route)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.engine.Cancel(r.Context(), r.PathValue("id"), actorOf(r), body.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Activity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHandoffs(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Handoffs(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
