package storage

import (
	"context"
	"sync"

	"adventure-engine/pkg/story"
)

// MockStoryStore is an in-memory StoryStore for testing. Individual
// methods can be overridden with the corresponding Func field.
type MockStoryStore struct {
	GetStoryFunc       func(ctx context.Context, slug string) (*story.Story, error)
	UpsertStoryFunc    func(ctx context.Context, s *story.Story) (*story.Story, error)
	IncrementUsageFunc func(ctx context.Context, slug string, delta story.Usage) error

	// UsageCalls tracks increments for assertions
	UsageCalls []story.UsageEvent

	stories map[string]*story.Story
	mu      sync.Mutex
}

// Ensure MockStoryStore implements StoryStore interface
var _ StoryStore = (*MockStoryStore)(nil)

// NewMockStoryStore creates an empty mock store
func NewMockStoryStore() *MockStoryStore {
	return &MockStoryStore{
		stories: make(map[string]*story.Story),
	}
}

// AddStory seeds the mock with a record
func (m *MockStoryStore) AddStory(s *story.Story) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stories[s.Slug] = s
}

func (m *MockStoryStore) Ping(ctx context.Context) error { return nil }

func (m *MockStoryStore) Close() error { return nil }

func (m *MockStoryStore) GetStory(ctx context.Context, slug string) (*story.Story, error) {
	if m.GetStoryFunc != nil {
		return m.GetStoryFunc(ctx, slug)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockStoryStore) ListStories(ctx context.Context, includeInactive bool) ([]story.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stories := make([]story.Story, 0, len(m.stories))
	for _, s := range m.stories {
		if s.IsActive || includeInactive {
			stories = append(stories, *s)
		}
	}
	return stories, nil
}

func (m *MockStoryStore) ListHomepage(ctx context.Context, lang string) ([]HomepageItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]HomepageItem, 0, len(m.stories))
	for _, s := range m.stories {
		if !s.IsActive {
			continue
		}
		entry := s.HomepageFor(lang)
		items = append(items, HomepageItem{
			Slug:        s.Slug,
			Title:       entry.Title,
			Description: entry.Description,
		})
	}
	return items, nil
}

func (m *MockStoryStore) UpsertStory(ctx context.Context, s *story.Story) (*story.Story, error) {
	if m.UpsertStoryFunc != nil {
		return m.UpsertStoryFunc(ctx, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.stories[s.Slug]; ok {
		if existing.Owner != "" && existing.Owner != s.Owner {
			return nil, ErrOwnerMismatch
		}
		s.Usage = existing.Usage
		s.CreatedAt = existing.CreatedAt
	}
	cp := *s
	m.stories[s.Slug] = &cp
	result := cp
	return &result, nil
}

func (m *MockStoryStore) SetActive(ctx context.Context, slugs []string, active bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed int64
	for _, slug := range slugs {
		if s, ok := m.stories[slug]; ok && s.IsActive != active {
			s.IsActive = active
			changed++
		}
	}
	return changed, nil
}

func (m *MockStoryStore) IncrementUsage(ctx context.Context, slug string, delta story.Usage) error {
	if m.IncrementUsageFunc != nil {
		return m.IncrementUsageFunc(ctx, slug, delta)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.UsageCalls = append(m.UsageCalls, story.UsageEvent{Slug: slug, Delta: delta})
	s, ok := m.stories[slug]
	if !ok {
		return ErrNotFound
	}
	s.Usage = s.Usage.Add(delta)
	return nil
}
