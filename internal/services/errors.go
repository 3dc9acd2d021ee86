package services

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey means no upstream credential is configured. The server can
// start without one; completion calls fail until it is set.
var ErrNoAPIKey = errors.New("no API key configured for completion service")

// ErrMalformedResponse means the upstream returned a success status but the
// body lacked the expected content field.
var ErrMalformedResponse = errors.New("upstream response missing expected content")

// UpstreamError is a non-success HTTP response from the completion endpoint.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion API request failed with status %d: %s", e.Status, e.Body)
}
