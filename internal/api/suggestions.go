package api

import (
	"net/http"

	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/pool"
	"github.com/tdaniel1925/spencer-mcgaw-os-sub006/internal/store"
)

func (s *Server) handleSuggestionList(w http.ResponseWriter, r *http.Request) {
	status := store.SuggestionStatus(r.URL.Query().Get("status"))
	list, err := s.engine.Suggestions(r.Context(), status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSuggestionCreate(w http.ResponseWriter, r *http.Request) {
	var in pool.NewSuggestion
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	sg, err := s.engine.CreateSuggestion(r.Context(), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sg)
}

func (s *Server) handleSuggestionGet(w http.ResponseWriter, r *http.Request) {
	sg, err := s.engine.GetSuggestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (s *Server) handleSuggestionApprove(w http.ResponseWriter, r *http.Request) {
	var ov pool.Overrides
	if err := decode(r, &ov); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.ApproveSuggestion(r.Context(), r.PathValue("id"), actorOf(r), ov)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSuggestionDecline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason   string `json:"reason"`
		Category string `json:"category"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	res, err := s.engine.DeclineSuggestion(r.Context(), r.PathValue("id"), actorOf(r), body.Reason, body.Category)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
