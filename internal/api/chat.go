package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/faqhub/faqhub/internal/knowledge"
	"github.com/faqhub/faqhub/internal/retrieval"
)

// maxBodyBytes caps request bodies; questions and answers are short text.
const maxBodyBytes = 64 * 1024

// chatHandler serves the public question answering endpoint.
type chatHandler struct {
	retrieval *retrieval.Service
	logger    *slog.Logger
}

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// ask handles POST /api/v1/chat.
func (h *chatHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	answer, err := h.retrieval.Ask(r.Context(), req.Question, req.SessionID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, answer)
}

// decodeBody reads a size-limited JSON request body into dst.
// Writes the error response itself and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large", logger)
			return false
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "invalid request body", logger)
		return false
	}
	return true
}

// parseCounterKind validates a feedback kind from a request.
func parseCounterKind(kind string) (string, error) {
	switch kind {
	case knowledge.CounterLike, knowledge.CounterReviewRequest:
		return kind, nil
	default:
		return "", errors.New("kind must be like or review_request")
	}
}
