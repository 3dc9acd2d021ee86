package services

import (
	"context"
	"sync"

	"adventure-engine/pkg/story"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	ChatFunc      func(ctx context.Context, messages []story.Message) (*ChatResponse, error)

	// Track calls for testing
	InitModelCalls []string
	ChatCalls      []ChatCall

	mu sync.Mutex // protects all fields above
}

type ChatCall struct {
	Messages []story.Message
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls: make([]string, 0),
		ChatCalls:      make([]ChatCall, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitModelCalls = append(m.InitModelCalls, modelName)

	if m.InitModelFunc != nil {
		return m.InitModelFunc(ctx, modelName)
	}
	return nil
}

// Chat mocks completion generation
func (m *MockLLMAPI) Chat(ctx context.Context, messages []story.Message) (*ChatResponse, error) {
	m.mu.Lock()
	chatFunc := m.ChatFunc
	m.ChatCalls = append(m.ChatCalls, ChatCall{Messages: messages})
	m.mu.Unlock()

	if chatFunc != nil {
		return chatFunc(ctx, messages)
	}

	// Default behavior - a well-formed step
	return &ChatResponse{
		Message: `{"description":"Mock step","options":["one","two","three"]}`,
	}, nil
}

// SetChatError configures the mock to fail every completion call
func (m *MockLLMAPI) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []story.Message) (*ChatResponse, error) {
		return nil, err
	}
}

// CallCount returns the number of completion calls made so far
func (m *MockLLMAPI) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = m.InitModelCalls[:0]
	m.ChatCalls = m.ChatCalls[:0]
}
