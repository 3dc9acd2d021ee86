package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-engine/internal/services"
	"adventure-engine/pkg/story"
)

func TestPreloadAllSucceed(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.ChatFunc = func(ctx context.Context, messages []story.Message) (*services.ChatResponse, error) {
		choice := messages[len(messages)-1].Content
		return &services.ChatResponse{
			Message: fmt.Sprintf(`{"description":"After %s","options":["a","b","c"]}`, choice),
		}, nil
	}
	e := New(llm, seededStore(), nil, testLogger())

	result := e.Preload(context.Background(), PreloadRequest{
		StorySlug: "montpellier",
		History:   midStoryHistory(),
		Choices:   []int{1, 2, 3},
	})

	assert.True(t, result.Success())
	require.Len(t, result.Steps, 3)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "After Choice 2", result.Steps[2].Description)
	assert.Equal(t, 3, llm.CallCount())

	// Each candidate sends the full history plus its own choice.
	for _, call := range llm.ChatCalls {
		assert.Len(t, call.Messages, 3)
	}
}

func TestPreloadPartialFailure(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.ChatFunc = func(ctx context.Context, messages []story.Message) (*services.ChatResponse, error) {
		if messages[len(messages)-1].Content == "Choice 3" {
			return &services.ChatResponse{Message: "not a step"}, nil
		}
		return &services.ChatResponse{Message: `{"description":"ok","options":["a","b","c"]}`}, nil
	}
	e := New(llm, seededStore(), nil, testLogger())

	result := e.Preload(context.Background(), PreloadRequest{
		StorySlug: "montpellier",
		History:   midStoryHistory(),
		Choices:   []int{1, 2, 3},
	})

	assert.True(t, result.Success(), "one success is enough")
	assert.Len(t, result.Steps, 2)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[3], "failed to parse story step")
	assert.Equal(t, 3, llm.CallCount(), "a failed candidate is not retried")
}

func TestPreloadAllFail(t *testing.T) {
	llm := services.NewMockLLMAPI()
	llm.SetChatError(fmt.Errorf("upstream unavailable"))
	e := New(llm, seededStore(), nil, testLogger())

	result := e.Preload(context.Background(), PreloadRequest{
		StorySlug: "montpellier",
		History:   midStoryHistory(),
		Choices:   []int{1, 2, 3},
	})

	assert.False(t, result.Success())
	assert.Empty(t, result.Steps)
	assert.Len(t, result.Errors, 3)
}

func TestPreloadInvalidChoice(t *testing.T) {
	llm := services.NewMockLLMAPI()
	e := New(llm, seededStore(), nil, testLogger())

	result := e.Preload(context.Background(), PreloadRequest{
		StorySlug: "montpellier",
		History:   midStoryHistory(),
		Choices:   []int{1, 5},
	})

	assert.True(t, result.Success())
	assert.Len(t, result.Steps, 1)
	assert.Contains(t, result.Errors[5], "choice must be between")
	assert.Equal(t, 1, llm.CallCount(), "out-of-range candidates never reach the model")
}
