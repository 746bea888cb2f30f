package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/attemptlog"
	"github.com/hookline/hookline/delivery"
	"github.com/hookline/hookline/id"
)

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := delivery.ListOpts{
		Offset:    queryInt(r, "offset", 0),
		Limit:     queryInt(r, "limit", 50),
		EventType: queryParam(r, "event_type"),
	}

	if raw := queryParam(r, "endpoint_id"); raw != "" {
		epID, err := id.ParseEndpointID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endpoint ID")
			return
		}
		opts.EndpointID = &epID
	}

	if raw := queryParam(r, "status"); raw != "" {
		status := delivery.Status(raw)
		switch status {
		case delivery.StatusPending, delivery.StatusRetrying, delivery.StatusSuccess, delivery.StatusFailed:
			opts.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	if raw := queryParam(r, "from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		opts.From = &from
	}
	if raw := queryParam(r, "to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		opts.To = &to
	}

	ds, err := h.dispatcher.Store().ListDeliveries(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	d, getErr := h.dispatcher.Store().GetDelivery(r.Context(), delID)
	if getErr != nil {
		if errors.Is(getErr, hookline.ErrDeliveryNotFound) {
			writeError(w, http.StatusNotFound, "delivery not found")
			return
		}
		writeError(w, http.StatusInternalServerError, getErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) listAttempts(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	opts := attemptlog.ListOpts{
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}

	attempts, listErr := h.dispatcher.Attempts().List(r.Context(), delID, opts)
	if listErr != nil {
		writeError(w, http.StatusInternalServerError, listErr.Error())
		return
	}

	writeJSON(w, http.StatusOK, attempts)
}

// retryDelivery manually re-queues a delivery. Retrying a delivery that
// already succeeded is a conflict.
func (h *Handler) retryDelivery(w http.ResponseWriter, r *http.Request) {
	delID, err := id.ParseDeliveryID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	d, retryErr := h.dispatcher.RetryDelivery(r.Context(), delID)
	if retryErr != nil {
		switch {
		case errors.Is(retryErr, hookline.ErrDeliveryNotFound):
			writeError(w, http.StatusNotFound, "delivery not found")
		case errors.Is(retryErr, hookline.ErrDeliveryAlreadySucceeded):
			writeError(w, http.StatusConflict, "delivery already succeeded")
		default:
			writeError(w, http.StatusInternalServerError, retryErr.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}
