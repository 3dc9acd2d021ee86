package story

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Step
		wantErr string
	}{
		{
			name: "plain JSON",
			raw:  `{"description":"You wake in a cold cell.","options":["Shout","Search the straw","Wait"]}`,
			want: &Step{
				Description: "You wake in a cold cell.",
				Options:     []string{"Shout", "Search the straw", "Wait"},
			},
		},
		{
			name: "json code fence",
			raw:  "```json\n{\"description\":\"The door creaks open.\",\"options\":[\"Enter\",\"Run\",\"Hide\"]}\n```",
			want: &Step{
				Description: "The door creaks open.",
				Options:     []string{"Enter", "Run", "Hide"},
			},
		},
		{
			name: "bare code fence",
			raw:  "```\n{\"description\":\"A fork in the road.\",\"options\":[\"Left\",\"Right\",\"Back\"]}\n```",
			want: &Step{
				Description: "A fork in the road.",
				Options:     []string{"Left", "Right", "Back"},
			},
		},
		{
			name: "action passthrough",
			raw:  `{"description":"You find the crown.","options":["Wear it","Sell it","Bury it"],"action":"milestone"}`,
			want: &Step{
				Description: "You find the crown.",
				Options:     []string{"Wear it", "Sell it", "Bury it"},
				Action:      "milestone",
			},
		},
		{
			name:    "not JSON",
			raw:     "Once upon a time there were three options.",
			wantErr: "invalid JSON",
		},
		{
			name:    "missing description",
			raw:     `{"options":["a","b","c"]}`,
			wantErr: "missing description field",
		},
		{
			name: "empty description is valid",
			raw:  `{"description":"","options":["a","b","c"]}`,
			want: &Step{Description: "", Options: []string{"a", "b", "c"}},
		},
		{
			name:    "two options",
			raw:     `{"description":"x","options":["a","b"]}`,
			wantErr: "expected exactly 3 options, got 2",
		},
		{
			name:    "four options",
			raw:     `{"description":"x","options":["a","b","c","d"]}`,
			wantErr: "expected exactly 3 options, got 4",
		},
		{
			name:    "empty input",
			raw:     "",
			wantErr: "invalid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStep(tt.raw)
			if tt.wantErr != "" {
				assert.Nil(t, got)
				var parseErr *ParseError
				assert.True(t, errors.As(err, &parseErr), "expected a ParseError, got %v", err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1}  `))
}
