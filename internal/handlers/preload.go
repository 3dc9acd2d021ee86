package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"adventure-engine/internal/engine"
	"adventure-engine/pkg/story"
)

// PreloadRequest is the body of POST /v1/story/preload. The history must
// already be advanced past the step whose options are being speculated.
type PreloadRequest struct {
	SessionID           string          `json:"sessionId"`
	StoryName           string          `json:"storyName"`
	Language            string          `json:"language,omitempty"`
	ConversationHistory []story.Message `json:"conversationHistory"`
	Choices             []int           `json:"choices,omitempty"`
}

func (r PreloadRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StoryName, validation.Required,
			validation.By(func(v interface{}) error {
				if !story.ValidSlug(v.(string)) {
					return fmt.Errorf("must be a valid story slug")
				}
				return nil
			})),
		validation.Field(&r.ConversationHistory, validation.Required),
	)
}

// PreloadSummary counts the outcome of a fan-out.
type PreloadSummary struct {
	Requested  int `json:"requested"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// PreloadResponse reports each candidate's outcome independently.
type PreloadResponse struct {
	Success        bool                `json:"success"`
	PreloadedSteps map[int]*story.Step `json:"preloadedSteps"`
	Errors         map[int]string      `json:"errors"`
	Summary        PreloadSummary      `json:"summary"`
}

// PreloadHandler serves speculative continuations of the next choices.
type PreloadHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewPreloadHandler creates a new preload handler
func NewPreloadHandler(eng *engine.Engine, logger *slog.Logger) *PreloadHandler {
	return &PreloadHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles POST /v1/story/preload
func (h *PreloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for preload endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var request PreloadRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'storyName' and 'conversationHistory' fields.")
		return
	}

	if err := request.Validate(); err != nil {
		h.logger.Warn("Invalid preload request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	if err := story.ValidateHistory(request.ConversationHistory); err != nil {
		h.logger.Warn("Invalid preload history", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	choices := request.Choices
	if len(choices) == 0 {
		choices = []int{1, 2, 3}
	}

	result := h.engine.Preload(r.Context(), engine.PreloadRequest{
		StorySlug: request.StoryName,
		History:   request.ConversationHistory,
		Choices:   choices,
	})

	writeJSON(w, h.logger, http.StatusOK, PreloadResponse{
		Success:        result.Success(),
		PreloadedSteps: result.Steps,
		Errors:         result.Errors,
		Summary: PreloadSummary{
			Requested:  len(choices),
			Successful: len(result.Steps),
			Failed:     len(result.Errors),
		},
	})
}
