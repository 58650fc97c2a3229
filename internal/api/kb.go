package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/resolution"
)

// kbHandler serves the admin knowledge base endpoints.
type kbHandler struct {
	resolution *resolution.Service
	logger     *slog.Logger
}

type addEntryRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type editEntryRequest struct {
	Answer string `json:"answer"`
}

type feedbackRequest struct {
	Kind string `json:"kind"`
}

// listEntries handles GET /api/v1/kb.
func (h *kbHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.resolution.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// addEntry handles POST /api/v1/kb.
func (h *kbHandler) addEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	entry, err := h.resolution.AddEntry(r.Context(), req.Question, req.Answer)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusCreated, entry)
}

// getEntry handles GET /api/v1/kb/{id}.
func (h *kbHandler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	entry, err := h.resolution.GetEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

// editEntry handles PATCH /api/v1/kb/{id}.
func (h *kbHandler) editEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req editEntryRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	entry, err := h.resolution.EditEntry(r.Context(), id, req.Answer)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

// deleteEntry handles DELETE /api/v1/kb/{id}.
func (h *kbHandler) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.resolution.DeleteEntry(r.Context(), id); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// feedback handles POST /api/v1/kb/{id}/feedback.
func (h *kbHandler) feedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req feedbackRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	kind, err := parseCounterKind(req.Kind)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_kind", err.Error(), h.logger)
		return
	}

	if err := h.resolution.Feedback(r.Context(), id, kind); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// pathID parses the {id} path segment as a UUID.
// Writes the error response itself and returns false on failure.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_id", "id must be a UUID", logger)
		return uuid.Nil, false
	}
	return id, true
}
