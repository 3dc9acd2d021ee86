package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adventure-engine/internal/storage"
)

func TestHealthHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := storage.NewRedisCache("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)

	handler := NewHealthHandler(storage.NewMockStoryStore(), cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.Equal(t, "ok", resp.Checks["cache"])
}

func TestHealthHandlerDegraded(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := storage.NewRedisCache("redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	mr.Close()

	handler := NewHealthHandler(storage.NewMockStoryStore(), cache, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	handler := NewHealthHandler(storage.NewMockStoryStore(), nil, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
