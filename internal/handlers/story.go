package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"adventure-engine/internal/engine"
	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

// StepRequest is the body of POST /v1/story. The conversation history is
// client-held state, round-tripped verbatim.
type StepRequest struct {
	SessionID           string          `json:"sessionId"`
	StoryName           string          `json:"storyName"`
	Language            string          `json:"language,omitempty"`
	Choice              int             `json:"choice,omitempty"`
	ForceRestart        bool            `json:"forceRestart,omitempty"`
	ConversationHistory []story.Message `json:"conversationHistory,omitempty"`
}

func (r StepRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.StoryName, validation.Required,
			validation.By(func(v interface{}) error {
				if !story.ValidSlug(v.(string)) {
					return fmt.Errorf("must be a valid story slug")
				}
				return nil
			})),
		validation.Field(&r.Choice, validation.Min(0), validation.Max(story.OptionCount)),
	)
}

// StepResponse is the body of a successful step.
type StepResponse struct {
	Success             bool            `json:"success"`
	SessionID           string          `json:"sessionId"`
	Step                int             `json:"step"`
	CurrentStep         *story.Step     `json:"currentStep"`
	ConversationHistory []story.Message `json:"conversationHistory"`
}

// StoryHandler serves the conversation continuation endpoint.
type StoryHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewStoryHandler creates a new story step handler
func NewStoryHandler(eng *engine.Engine, logger *slog.Logger) *StoryHandler {
	return &StoryHandler{
		engine: eng,
		logger: logger,
	}
}

// ServeHTTP handles POST /v1/story
func (h *StoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for story endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var request StepRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with 'storyName' field.")
		return
	}

	if err := request.Validate(); err != nil {
		h.logger.Warn("Invalid story request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result, err := h.engine.Step(r.Context(), engine.StepRequest{
		StorySlug:    request.StoryName,
		Language:     request.Language,
		Choice:       request.Choice,
		ForceRestart: request.ForceRestart,
		History:      request.ConversationHistory,
	})
	if err != nil {
		status := statusForError(err)
		msg := err.Error()
		if errors.Is(err, storage.ErrNotFound) {
			msg = fmt.Sprintf("Story '%s' not found", request.StoryName)
		}
		h.logger.Error("Story step failed",
			"story", request.StoryName,
			"session_id", sessionID,
			"error", err)
		writeError(w, h.logger, status, msg)
		return
	}

	history := result.History
	if history == nil {
		history = []story.Message{}
	}

	writeJSON(w, h.logger, http.StatusOK, StepResponse{
		Success:             true,
		SessionID:           sessionID,
		Step:                result.Step,
		CurrentStep:         result.Current,
		ConversationHistory: history,
	})
}
