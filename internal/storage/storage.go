package storage

import (
	"context"
	"errors"
	"time"

	"adventure-engine/pkg/story"
)

// ErrNotFound means the slug does not exist or the record is inactive.
var ErrNotFound = errors.New("story not found")

// ErrOwnerMismatch means a write tried to change a record owned by a
// different address. Ownership is immutable once set, except by the same
// owner.
var ErrOwnerMismatch = errors.New("story is owned by a different address")

// HomepageItem is one story on the listing page, resolved for a language.
type HomepageItem struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StoryStore defines the interface for story record persistence.
type StoryStore interface {
	// Ping tests the store connection
	Ping(ctx context.Context) error

	// Close closes the store connection
	Close() error

	// GetStory retrieves a story by slug, including inactive records.
	// Returns ErrNotFound if the slug is unknown.
	GetStory(ctx context.Context, slug string) (*story.Story, error)

	// ListStories returns all records, optionally including inactive ones
	ListStories(ctx context.Context, includeInactive bool) ([]story.Story, error)

	// ListHomepage returns the active stories resolved for a language
	ListHomepage(ctx context.Context, lang string) ([]HomepageItem, error)

	// UpsertStory creates or updates a record keyed on slug. Returns
	// ErrOwnerMismatch when the record is owned by someone else.
	UpsertStory(ctx context.Context, s *story.Story) (*story.Story, error)

	// SetActive flips the soft-delete flag for the given slugs and
	// returns how many records changed
	SetActive(ctx context.Context, slugs []string, active bool) (int64, error)

	// IncrementUsage adds a delta to a story's usage counters. Counters
	// only ever grow; the increment is a single statement and is not
	// atomic with any concurrent upsert.
	IncrementUsage(ctx context.Context, slug string, delta story.Usage) error
}

// Cache defines the interface for caching derived listings.
type Cache interface {
	// Ping tests the cache connection
	Ping(ctx context.Context) error

	// Get retrieves a value by key; empty string when absent
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with expiration
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// Close closes the cache connection
	Close() error
}
