package api

import (
	"errors"
	"net/http"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/event"
	"github.com/hookline/hookline/id"
)

type publishEventRequest struct {
	Type        string   `json:"type"`
	Data        any      `json:"data"`
	EndpointIDs []string `json:"endpoint_ids,omitempty"`
}

// publishEvent accepts an event and returns 202: the event is accepted for
// delivery, not yet delivered.
func (h *Handler) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req publishEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var targets []id.ID
	for _, raw := range req.EndpointIDs {
		epID, err := id.ParseEndpointID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endpoint ID "+raw)
			return
		}
		targets = append(targets, epID)
	}

	evt, err := h.dispatcher.PublishEvent(r.Context(), event.Input{
		Type:        req.Type,
		Data:        req.Data,
		EndpointIDs: targets,
	})
	if err != nil {
		switch {
		case errors.Is(err, hookline.ErrEventTypeRequired),
			errors.Is(err, hookline.ErrPayloadValidationFailed):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, evt)
}
