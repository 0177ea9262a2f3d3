package api

import (
	"net/http"
)

func (s *Server) handleStepList(w http.ResponseWriter, r *http.Request) {
	steps, err := s.engine.Steps(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handleStepAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description string `json:"description"`
		AssignedTo  string `json:"assigned_to"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, err := s.engine.AddStep(r.Context(), r.PathValue("id"), actorOf(r), body.Description, body.AssignedTo)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleStepToggle(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ToggleStep(r.Context(), r.PathValue("id"), r.PathValue("stepID"), actorOf(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStepDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteStep(r.Context(), r.PathValue("id"), r.PathValue("stepID"), actorOf(r)); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStepReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StepIDs []string `json:"step_ids"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	steps, err := s.engine.ReorderSteps(r.Context(), r.PathValue("id"), actorOf(r), body.StepIDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}
