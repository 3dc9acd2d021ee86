package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

func newStoriesHandler(t *testing.T, store storage.StoryStore) (*StoriesHandler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache, err := storage.NewRedisCache("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	return NewStoriesHandler(store, cache, 5*time.Minute, testLogger()), mr
}

func upsertBody(slug string) UpsertStoryRequest {
	return UpsertStoryRequest{
		Slug:    slug,
		Title:   "Montpellier",
		Content: "You arrive in Montpellier at dusk.",
		HomepageDisplay: map[string]story.HomepageEntry{
			"en": {Title: "Montpellier", Description: "A night in the south of France."},
		},
	}
}

func TestStoriesUpsert(t *testing.T) {
	handler, _ := newStoriesHandler(t, storage.NewMockStoryStore())

	w := postBody(t, handler, "/v1/admin/stories", upsertBody("montpellier"))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool        `json:"success"`
		Story   story.Story `json:"story"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "montpellier", resp.Story.Slug)
	assert.True(t, resp.Story.IsActive, "stories default to active")
	assert.Len(t, resp.Story.Homepage, len(story.SupportedLanguages),
		"a complete en entry is copied to every supported language")
}

func TestStoriesUpsertValidation(t *testing.T) {
	handler, _ := newStoriesHandler(t, storage.NewMockStoryStore())

	body := upsertBody("Not A Slug")
	w := postBody(t, handler, "/v1/admin/stories", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	body = upsertBody("montpellier")
	body.Content = ""
	w = postBody(t, handler, "/v1/admin/stories", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoriesUpsertOwnerMismatch(t *testing.T) {
	store := storage.NewMockStoryStore()
	handler, _ := newStoriesHandler(t, store)

	first := upsertBody("montpellier")
	first.Owner = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	w := postBody(t, handler, "/v1/admin/stories", first)
	require.Equal(t, http.StatusOK, w.Code)

	// A different owner cannot take over the record.
	second := upsertBody("montpellier")
	second.Owner = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	w = postBody(t, handler, "/v1/admin/stories", second)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The same owner can update.
	first.Title = "Montpellier by Night"
	w = postBody(t, handler, "/v1/admin/stories", first)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStoriesGet(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{Slug: "montpellier", Title: "Montpellier", Content: "x", IsActive: false})
	handler, _ := newStoriesHandler(t, store)

	// Admin reads return inactive records too.
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stories/montpellier", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/stories/atlantis", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Story 'atlantis' not found")
}

func TestStoriesList(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{Slug: "active", Title: "A", Content: "x", IsActive: true})
	store.AddStory(&story.Story{Slug: "retired", Title: "B", Content: "x", IsActive: false})
	handler, _ := newStoriesHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stories", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Stories []story.Story `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Stories, 1)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/stories?includeInactive=true", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Stories, 2)
}

func TestStoriesBulk(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{Slug: "one", Title: "One", Content: "x", IsActive: true})
	store.AddStory(&story.Story{Slug: "two", Title: "Two", Content: "x", IsActive: true})
	store.AddStory(&story.Story{Slug: "three", Title: "Three", Content: "x", IsActive: false})
	handler, _ := newStoriesHandler(t, store)

	// Delete is a soft delete; records survive with is_active false.
	w := postBody(t, handler, "/v1/admin/stories/bulk", BulkRequest{
		Operation: BulkDelete,
		Slugs:     []string{"one", "two", "three"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Updated, "already-inactive records do not count")

	s, err := store.GetStory(context.Background(), "one")
	require.NoError(t, err)
	assert.False(t, s.IsActive)

	w = postBody(t, handler, "/v1/admin/stories/bulk", BulkRequest{
		Operation: BulkActivate,
		Slugs:     []string{"one"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	s, err = store.GetStory(context.Background(), "one")
	require.NoError(t, err)
	assert.True(t, s.IsActive)
}

func TestStoriesBulkValidation(t *testing.T) {
	handler, _ := newStoriesHandler(t, storage.NewMockStoryStore())

	w := postBody(t, handler, "/v1/admin/stories/bulk", BulkRequest{
		Operation: "purge",
		Slugs:     []string{"one"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postBody(t, handler, "/v1/admin/stories/bulk", BulkRequest{
		Operation: BulkActivate,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoriesHomepage(t *testing.T) {
	store := storage.NewMockStoryStore()
	s := &story.Story{
		Slug: "montpellier", Title: "Montpellier", Content: "x", IsActive: true,
		Homepage: map[string]story.HomepageEntry{
			"en": {Title: "Montpellier", Description: "A night in the south of France."},
			"fr": {Title: "Montpellier", Description: "Une nuit dans le sud de la France."},
		},
	}
	store.AddStory(s)
	store.AddStory(&story.Story{Slug: "retired", Title: "Retired", Content: "x", IsActive: false})
	handler, mr := newStoriesHandler(t, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stories/homepage?language=fr", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Language string                 `json:"language"`
		Stories  []storage.HomepageItem `json:"stories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "fr", resp.Language)
	require.Len(t, resp.Stories, 1, "inactive stories are not listed")
	assert.Equal(t, "Une nuit dans le sud de la France.", resp.Stories[0].Description)

	// The listing is now cached.
	assert.True(t, mr.Exists("homepage:fr"))

	// A write invalidates every cached language.
	postBody(t, handler, "/v1/admin/stories", upsertBody("newstory"))
	assert.False(t, mr.Exists("homepage:fr"))
}

func TestStoriesHomepageUnsupportedLanguageNotCached(t *testing.T) {
	store := storage.NewMockStoryStore()
	store.AddStory(&story.Story{
		Slug: "montpellier", Title: "Montpellier", Content: "x", IsActive: true,
		Homepage: map[string]story.HomepageEntry{
			"en": {Title: "Montpellier", Description: "A night in the south of France."},
		},
	})
	handler, mr := newStoriesHandler(t, store)

	// A listing for an unlisted code still resolves via the en fallback,
	// but is not cached: invalidation only covers supported languages.
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stories/homepage?language=ko", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "A night in the south of France.")
	assert.False(t, mr.Exists("homepage:ko"))
}

func TestStoriesHomepageServedFromCache(t *testing.T) {
	store := storage.NewMockStoryStore()
	handler, mr := newStoriesHandler(t, store)

	canned := `{"success":true,"language":"en","stories":[{"slug":"cached","title":"Cached","description":""}]}`
	require.NoError(t, mr.Set("homepage:en", canned))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/stories/homepage", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, canned, w.Body.String())
}
