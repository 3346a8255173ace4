package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/store"
)

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MatchFilter{
		BuyerID:      buyerID(r),
		PreferenceID: q.Get("preference_id"),
		Sort:         store.ParseMatchSort(q.Get("sort")),
		Page:         pageFrom(r),
	}
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseMatchStatus(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		filter.Status = st
	}

	page, err := s.deps.Matches.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) matchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Matches.Stats(r.Context(), buyerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) preferenceMatches(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Matches.ForPreference(r.Context(), buyerID(r), chi.URLParam(r, "id"), pageFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Matches.Get(r.Context(), buyerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) updateMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}
	m, err := s.deps.Matches.UpdateStatus(r.Context(), buyerID(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
