package api

import (
	"log/slog"
	"net/http"

	"github.com/faqhub/faqhub/internal/resolution"
)

// pendingHandler serves the admin pending queue endpoints.
type pendingHandler struct {
	resolution *resolution.Service
	logger     *slog.Logger
}

type promoteRequest struct {
	Answer string `json:"answer"`
}

// list handles GET /api/v1/pending. An optional ?status= query filters by
// queue status; the default shows only open questions.
func (h *pendingHandler) list(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "pending"
	} else if status == "all" {
		status = ""
	}

	pending, err := h.resolution.ListPending(r.Context(), status)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// promote handles POST /api/v1/pending/{id}/promote.
func (h *pendingHandler) promote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req promoteRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	entry, err := h.resolution.Promote(r.Context(), id, req.Answer)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

// dismiss handles POST /api/v1/pending/{id}/dismiss.
func (h *pendingHandler) dismiss(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.resolution.Dismiss(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
