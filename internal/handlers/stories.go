package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

const storiesBasePath = "/v1/admin/stories"

// Bulk operations over a list of slugs. "delete" is a soft delete; records
// are never removed from the table.
const (
	BulkActivate   = "activate"
	BulkDeactivate = "deactivate"
	BulkDelete     = "delete"
)

// UpsertStoryRequest is the body of POST /v1/admin/stories.
type UpsertStoryRequest struct {
	Slug            string                         `json:"slug"`
	Title           string                         `json:"title"`
	Content         string                         `json:"content"`
	HomepageDisplay map[string]story.HomepageEntry `json:"homepageDisplay,omitempty"`
	Owner           string                         `json:"owner,omitempty"`
	IsActive        *bool                          `json:"isActive,omitempty"`
}

// BulkRequest is the body of POST /v1/admin/stories/bulk.
type BulkRequest struct {
	Operation string   `json:"operation"`
	Slugs     []string `json:"slugs"`
}

func (r BulkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Operation, validation.Required,
			validation.In(BulkActivate, BulkDeactivate, BulkDelete)),
		validation.Field(&r.Slugs, validation.Required, validation.Each(
			validation.By(func(v interface{}) error {
				if !story.ValidSlug(v.(string)) {
					return fmt.Errorf("must be a valid story slug")
				}
				return nil
			}))),
	)
}

// StoriesHandler serves the admin CRUD surface for story records.
type StoriesHandler struct {
	store    storage.StoryStore
	cache    storage.Cache
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewStoriesHandler creates the admin stories handler. cache may be nil,
// in which case homepage listings are computed on every request.
func NewStoriesHandler(store storage.StoryStore, cache storage.Cache, cacheTTL time.Duration, logger *slog.Logger) *StoriesHandler {
	return &StoriesHandler{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// ServeHTTP routes the admin stories surface:
// GET  /v1/admin/stories                      - list stories
// POST /v1/admin/stories                      - upsert a story
// GET  /v1/admin/stories/homepage?language=xx - homepage listing
// POST /v1/admin/stories/bulk                 - bulk activate/deactivate/delete
// GET  /v1/admin/stories/{slug}               - read one story
func (h *StoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	sub := strings.Trim(strings.TrimPrefix(r.URL.Path, storiesBasePath), "/")

	switch {
	case sub == "" && r.Method == http.MethodGet:
		h.handleList(w, r)
	case sub == "" && r.Method == http.MethodPost:
		h.handleUpsert(w, r)
	case sub == "homepage" && r.Method == http.MethodGet:
		h.handleHomepage(w, r)
	case sub == "bulk" && r.Method == http.MethodPost:
		h.handleBulk(w, r)
	case sub != "" && !strings.Contains(sub, "/") && r.Method == http.MethodGet:
		h.handleGet(w, r, sub)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed.")
	}
}

func (h *StoriesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	stories, err := h.store.ListStories(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("Failed to list stories", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list stories.")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, struct {
		Success bool          `json:"success"`
		Stories []story.Story `json:"stories"`
	}{Success: true, Stories: stories})
}

func (h *StoriesHandler) handleGet(w http.ResponseWriter, r *http.Request, slug string) {
	if !story.ValidSlug(slug) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid story slug.")
		return
	}

	s, err := h.store.GetStory(r.Context(), slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Story '%s' not found", slug))
			return
		}
		h.logger.Error("Failed to get story", "slug", slug, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to get story.")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, struct {
		Success bool         `json:"success"`
		Story   *story.Story `json:"story"`
	}{Success: true, Story: s})
}

func (h *StoriesHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var request UpsertStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}

	isActive := true
	if request.IsActive != nil {
		isActive = *request.IsActive
	}

	s := &story.Story{
		Slug:     request.Slug,
		Title:    request.Title,
		Content:  request.Content,
		Homepage: request.HomepageDisplay,
		Owner:    request.Owner,
		IsActive: isActive,
	}
	if err := s.Validate(); err != nil {
		h.logger.Warn("Invalid story", "slug", request.Slug, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid story: %v", err))
		return
	}
	s.NormalizeHomepage()

	saved, err := h.store.UpsertStory(r.Context(), s)
	if err != nil {
		if errors.Is(err, storage.ErrOwnerMismatch) {
			writeError(w, h.logger, http.StatusForbidden, "Story is owned by a different address.")
			return
		}
		h.logger.Error("Failed to upsert story", "slug", request.Slug, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save story.")
		return
	}

	h.invalidateHomepage(r)
	writeJSON(w, h.logger, http.StatusOK, struct {
		Success bool         `json:"success"`
		Story   *story.Story `json:"story"`
	}{Success: true, Story: saved})
}

func (h *StoriesHandler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var request BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := request.Validate(); err != nil {
		h.logger.Warn("Invalid bulk request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	updated, err := h.store.SetActive(r.Context(), request.Slugs, request.Operation == BulkActivate)
	if err != nil {
		h.logger.Error("Bulk operation failed", "operation", request.Operation, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Bulk operation failed.")
		return
	}

	h.invalidateHomepage(r)
	writeJSON(w, h.logger, http.StatusOK, struct {
		Success bool   `json:"success"`
		Updated int64  `json:"updated"`
		Op      string `json:"operation"`
	}{Success: true, Updated: updated, Op: request.Operation})
}

func (h *StoriesHandler) handleHomepage(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("language")
	if lang == "" {
		lang = story.DefaultLanguage
	}

	// Only supported languages are cached; invalidateHomepage can then
	// enumerate every possible cached key.
	cacheable := h.cache != nil && story.IsSupportedLanguage(lang)

	cacheKey := "homepage:" + lang
	if cacheable {
		if cached, err := h.cache.Get(r.Context(), cacheKey); err == nil && cached != "" {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte(cached)); err != nil {
				h.logger.Error("Failed to write cached homepage", "error", err)
			}
			return
		}
	}

	items, err := h.store.ListHomepage(r.Context(), lang)
	if err != nil {
		h.logger.Error("Failed to list homepage stories", "language", lang, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list stories.")
		return
	}

	response := struct {
		Success  bool                   `json:"success"`
		Language string                 `json:"language"`
		Stories  []storage.HomepageItem `json:"stories"`
	}{Success: true, Language: lang, Stories: items}

	body, err := json.Marshal(response)
	if err != nil {
		h.logger.Error("Failed to marshal homepage response", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list stories.")
		return
	}

	if cacheable {
		if err := h.cache.Set(r.Context(), cacheKey, string(body), h.cacheTTL); err != nil {
			h.logger.Warn("Failed to cache homepage listing", "language", lang, "error", err)
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("Failed to write homepage response", "error", err)
	}
}

// invalidateHomepage drops every cached homepage listing after a write.
func (h *StoriesHandler) invalidateHomepage(r *http.Request) {
	if h.cache == nil {
		return
	}
	keys := make([]string, 0, len(story.SupportedLanguages))
	for _, lang := range story.SupportedLanguages {
		keys = append(keys, "homepage:"+lang)
	}
	if err := h.cache.Del(r.Context(), keys...); err != nil {
		h.logger.Warn("Failed to invalidate homepage cache", "error", err)
	}
}
