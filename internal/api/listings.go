package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/market-match/internal/model"
)

// matchListing queues a listing for matching and returns immediately.
func (s *Server) matchListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Dispatcher.Submit(id) {
		writeMessage(w, http.StatusServiceUnavailable, "matching queue is full")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"listing_id": id,
	})
}

func (s *Server) listingStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := model.ParseListingStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	n, err := s.deps.Synchronizer.SyncListingStatus(r.Context(), id, status, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listing_id":      id,
		"status":          status,
		"matches_updated": n,
	})
}
