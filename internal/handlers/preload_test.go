package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-engine/internal/engine"
	"adventure-engine/internal/services"
	"adventure-engine/pkg/story"
)

func newPreloadHandler(llm services.LLMService) *PreloadHandler {
	eng := engine.New(llm, seededStore(), nil, testLogger())
	return NewPreloadHandler(eng, testLogger())
}

func preloadHistory() []story.Message {
	return []story.Message{
		{Role: story.RoleUser, Content: "seed"},
		{Role: story.RoleAssistant, Content: stepJSON},
	}
}

func TestPreloadHandlerAllChoices(t *testing.T) {
	handler := newPreloadHandler(services.NewMockLLMAPI())

	w := postBody(t, handler, "/v1/story/preload", PreloadRequest{
		StoryName:           "montpellier",
		ConversationHistory: preloadHistory(),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp PreloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.PreloadedSteps, 3, "choices default to 1, 2 and 3")
	assert.Equal(t, PreloadSummary{Requested: 3, Successful: 3, Failed: 0}, resp.Summary)
}

func TestPreloadHandlerPartialFailure(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.ChatFunc = func(ctx context.Context, messages []story.Message) (*services.ChatResponse, error) {
		if messages[len(messages)-1].Content == "Choice 2" {
			return nil, assert.AnError
		}
		return &services.ChatResponse{Message: stepJSON}, nil
	}
	handler := newPreloadHandler(llm)

	w := postBody(t, handler, "/v1/story/preload", PreloadRequest{
		StoryName:           "montpellier",
		ConversationHistory: preloadHistory(),
		Choices:             []int{1, 2, 3},
	})

	// Fan-out results always come back as 200; failures are per choice.
	assert.Equal(t, http.StatusOK, w.Code)

	var resp PreloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.PreloadedSteps, 2)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, PreloadSummary{Requested: 3, Successful: 2, Failed: 1}, resp.Summary)
}

func TestPreloadHandlerAllFail(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetChatError(assert.AnError)
	handler := newPreloadHandler(llm)

	w := postBody(t, handler, "/v1/story/preload", PreloadRequest{
		StoryName:           "montpellier",
		ConversationHistory: preloadHistory(),
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp PreloadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Empty(t, resp.PreloadedSteps)
	assert.Equal(t, 3, resp.Summary.Failed)
}

func TestPreloadHandlerValidation(t *testing.T) {
	tests := []struct {
		name string
		body PreloadRequest
	}{
		{
			name: "missing story name",
			body: PreloadRequest{ConversationHistory: preloadHistory()},
		},
		{
			name: "missing history",
			body: PreloadRequest{StoryName: "montpellier"},
		},
		{
			name: "malformed history",
			body: PreloadRequest{
				StoryName: "montpellier",
				ConversationHistory: []story.Message{
					{Role: story.RoleAssistant, Content: "x"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newPreloadHandler(services.NewMockLLMAPI())
			w := postBody(t, handler, "/v1/story/preload", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPreloadHandlerMethodNotAllowed(t *testing.T) {
	handler := newPreloadHandler(services.NewMockLLMAPI())

	req := httptest.NewRequest(http.MethodGet, "/v1/story/preload", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
