package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyEventsCoalesces(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{Slug: "montpellier", Title: "M", Content: "x", IsActive: true})
	store.AddStory(&story.Story{Slug: "atlantis", Title: "A", Content: "x", IsActive: true})

	events := []story.UsageEvent{
		{Slug: "montpellier", Delta: story.Usage{Sessions: 1, Requests: 1, Tokens: 100, Costs: 0.01}},
		{Slug: "montpellier", Delta: story.Usage{Requests: 2, Tokens: 50, Costs: 0.02}},
		{Slug: "atlantis", Delta: story.Usage{Requests: 1, Tokens: 10}},
	}
	require.NoError(t, ApplyEvents(context.Background(), store, testLogger(), events))

	// One increment per slug, not one per event.
	assert.Len(t, store.UsageCalls, 2)

	s, err := store.GetStory(context.Background(), "montpellier")
	require.NoError(t, err)
	assert.Equal(t, story.Usage{Sessions: 1, Requests: 3, Tokens: 150, Costs: 0.03}, s.Usage)

	s, err = store.GetStory(context.Background(), "atlantis")
	require.NoError(t, err)
	assert.Equal(t, story.Usage{Requests: 1, Tokens: 10}, s.Usage)
}

func TestApplyEventsSkipsUnknownSlug(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{Slug: "montpellier", Title: "M", Content: "x", IsActive: true})

	events := []story.UsageEvent{
		{Slug: "ghost", Delta: story.Usage{Requests: 1}},
		{Slug: "montpellier", Delta: story.Usage{Requests: 1}},
	}

	// An unknown slug loses its events but does not fail the batch.
	assert.NoError(t, ApplyEvents(context.Background(), store, testLogger(), events))

	s, err := store.GetStory(context.Background(), "montpellier")
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.Usage.Requests)
}

func TestApplyEventsReturnsStoreError(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.IncrementUsageFunc = func(ctx context.Context, slug string, delta story.Usage) error {
		return assert.AnError
	}

	err := ApplyEvents(context.Background(), store, testLogger(), []story.UsageEvent{
		{Slug: "montpellier", Delta: story.Usage{Requests: 1}},
	})
	assert.ErrorIs(t, err, assert.AnError)
}
