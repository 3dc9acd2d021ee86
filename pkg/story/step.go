package story

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OptionCount is the number of options every step must offer.
const OptionCount = 3

// Step is one parsed story beat: a passage of narrative and exactly three
// options for the reader. Steps are derived from assistant turns and never
// persisted on their own.
type Step struct {
	Description string   `json:"description"`
	Options     []string `json:"options"`
	Action      string   `json:"action,omitempty"`
}

// ParseError indicates that model output was not a usable step. Callers
// decide whether to retry upstream; the parser itself never does.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to parse story step: " + e.Reason
}

// stripFences removes a leading and trailing markdown code fence
// (``` optionally followed by "json") from model output.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseStep parses raw model output into a Step. The shape contract is
// strict: a description must be present and options must hold exactly
// three entries. Wrong counts are a hard failure, never truncated or
// padded.
func ParseStep(raw string) (*Step, error) {
	var out struct {
		Description *string  `json:"description"`
		Options     []string `json:"options"`
		Action      string   `json:"action"`
	}

	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if out.Description == nil {
		return nil, &ParseError{Reason: "missing description field"}
	}
	if len(out.Options) != OptionCount {
		return nil, &ParseError{Reason: fmt.Sprintf("expected exactly %d options, got %d", OptionCount, len(out.Options))}
	}

	return &Step{
		Description: *out.Description,
		Options:     out.Options,
		Action:      out.Action,
	}, nil
}
