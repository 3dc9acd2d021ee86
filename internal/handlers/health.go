package handlers

import (
	"log/slog"
	"net/http"

	"adventure-engine/internal/storage"
)

// HealthHandler reports liveness of the store and cache.
type HealthHandler struct {
	store  storage.StoryStore
	cache  storage.Cache
	logger *slog.Logger
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(store storage.StoryStore, cache storage.Cache, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// ServeHTTP handles GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	checks := make(map[string]string)
	healthy := true

	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Error("Store health check failed", "error", err)
		checks["store"] = err.Error()
		healthy = false
	} else {
		checks["store"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			h.logger.Error("Cache health check failed", "error", err)
			checks["cache"] = err.Error()
			healthy = false
		} else {
			checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	writeJSON(w, h.logger, status, struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}{Status: state, Checks: checks})
}
