package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"adventure-engine/internal/engine"
	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

// ErrorResponse is the JSON error payload shared by every endpoint.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Success: false, Error: msg})
}

// statusForError maps the error taxonomy onto HTTP statuses: NotFound to
// 404, validation failures to 400, everything else to 500.
func statusForError(err error) int {
	var parseErr *story.ParseError
	var validationErrs validation.Errors

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrChoiceRequired),
		errors.Is(err, engine.ErrInvalidChoice),
		errors.Is(err, story.ErrBadHistory),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.As(err, &parseErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
