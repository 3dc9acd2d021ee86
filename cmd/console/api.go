package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"adventure-engine/pkg/story"
)

type homepageItem struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type homepageResponse struct {
	Success bool           `json:"success"`
	Stories []homepageItem `json:"stories"`
	Error   string         `json:"error,omitempty"`
}

type stepRequest struct {
	SessionID           string          `json:"sessionId"`
	StoryName           string          `json:"storyName"`
	Language            string          `json:"language,omitempty"`
	Choice              int             `json:"choice,omitempty"`
	ForceRestart        bool            `json:"forceRestart,omitempty"`
	ConversationHistory []story.Message `json:"conversationHistory,omitempty"`
}

type stepResponse struct {
	Success             bool            `json:"success"`
	SessionID           string          `json:"sessionId"`
	Step                int             `json:"step"`
	CurrentStep         *story.Step     `json:"currentStep"`
	ConversationHistory []story.Message `json:"conversationHistory"`
	Error               string          `json:"error,omitempty"`
}

type preloadRequest struct {
	SessionID           string          `json:"sessionId"`
	StoryName           string          `json:"storyName"`
	Language            string          `json:"language,omitempty"`
	ConversationHistory []story.Message `json:"conversationHistory"`
	Choices             []int           `json:"choices"`
}

type preloadResponse struct {
	Success        bool                `json:"success"`
	PreloadedSteps map[int]*story.Step `json:"preloadedSteps"`
	Errors         map[int]string      `json:"errors"`
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func listStories(client *http.Client, baseURL, language string) ([]homepageItem, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/admin/stories/homepage?language=%s", baseURL, language))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var listing homepageResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to parse story listing: %w", err)
	}
	if !listing.Success {
		return nil, fmt.Errorf("failed to list stories: %s", listing.Error)
	}
	return listing.Stories, nil
}

func postJSON(client *http.Client, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func requestStep(client *http.Client, baseURL string, req stepRequest) (*stepResponse, error) {
	var resp stepResponse
	if err := postJSON(client, baseURL+"/v1/story", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("story request failed: %s", resp.Error)
	}
	return &resp, nil
}

func requestPreload(client *http.Client, baseURL string, req preloadRequest) (*preloadResponse, error) {
	var resp preloadResponse
	if err := postJSON(client, baseURL+"/v1/story/preload", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
