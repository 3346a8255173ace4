package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/preference"
)

type createPreferenceRequest struct {
	Text     string          `json:"preference_text"`
	Location *model.Location `json:"location_data"`
}

type updatePreferenceRequest struct {
	Text     *string         `json:"preference_text"`
	Location json.RawMessage `json:"location_data"`
	Status   *string         `json:"status"`
}

func (req updatePreferenceRequest) update() (preference.Update, error) {
	u := preference.Update{Text: req.Text, Status: req.Status}
	switch {
	case len(req.Location) == 0:
	case bytes.Equal(bytes.TrimSpace(req.Location), []byte("null")):
		u.ClearLocation = true
	default:
		var loc model.Location
		if err := json.Unmarshal(req.Location, &loc); err != nil {
			return u, err
		}
		u.Location = &loc
	}
	return u, nil
}

func (s *Server) createPreference(w http.ResponseWriter, r *http.Request) {
	var req createPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.deps.Preferences.Create(r.Context(), buyerID(r), req.Text, req.Location)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listPreferences(w http.ResponseWriter, r *http.Request) {
	page, err := s.deps.Preferences.List(r.Context(), buyerID(r), r.URL.Query().Get("status"), pageFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getPreference(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Preferences.Get(r.Context(), buyerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePreference(w http.ResponseWriter, r *http.Request) {
	var req updatePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := req.update()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid location_data")
		return
	}
	p, err := s.deps.Preferences.Update(r.Context(), buyerID(r), chi.URLParam(r, "id"), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePreference(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Preferences.Delete(r.Context(), buyerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
