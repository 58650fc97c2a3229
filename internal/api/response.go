package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// WriteJSON writes a JSON response with the given status code.
// Uses buffer-first strategy so headers are only sent after successful
// encoding; an encoding failure still produces a proper 500.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// errorBody is the standard error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteError writes a JSON error response with a machine-readable code and
// a human-readable message.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code)
	}
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	WriteJSON(w, status, body)
}

// writeServiceError maps service errors onto HTTP statuses.
// The response message comes from the sentinel classification, not the raw
// error chain, so internal details never leak to clients.
func writeServiceError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, knowledge.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), logger)
	case errors.Is(err, knowledge.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "resource not found", logger)
	case errors.Is(err, knowledge.ErrAlreadyResolved):
		WriteError(w, http.StatusConflict, "already_resolved", "pending question already resolved", logger)
	case errors.Is(err, knowledge.ErrUpstreamUnavailable):
		logger.Warn("upstream unavailable", "error", err)
		WriteError(w, http.StatusBadGateway, "upstream_unavailable", "AI backend temporarily unavailable", logger)
	default:
		logger.Error("internal error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", logger)
	}
}
