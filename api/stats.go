package api

import (
	"net/http"

	"github.com/hookline/hookline/id"
)

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	var endpointID *id.ID
	if raw := queryParam(r, "endpoint_id"); raw != "" {
		epID, err := id.ParseEndpointID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endpoint ID")
			return
		}
		endpointID = &epID
	}

	stats, err := h.dispatcher.Stats(r.Context(), endpointID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type cleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OlderThanDays <= 0 {
		writeError(w, http.StatusBadRequest, "older_than_days must be positive")
		return
	}

	removed, err := h.dispatcher.Cleanup(r.Context(), req.OlderThanDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
