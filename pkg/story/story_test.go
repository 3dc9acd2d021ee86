package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validStory() Story {
	return Story{
		Slug:    "montpellier",
		Title:   "Montpellier",
		Content: "You arrive in Montpellier at dusk.",
	}
}

func TestStoryValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Story)
		wantErr bool
	}{
		{
			name:   "valid story",
			mutate: func(s *Story) {},
		},
		{
			name:   "valid owner",
			mutate: func(s *Story) { s.Owner = "0x" + "ab12CD34ef56ab12CD34ef56ab12CD34ef56ab12" },
		},
		{
			name:    "missing slug",
			mutate:  func(s *Story) { s.Slug = "" },
			wantErr: true,
		},
		{
			name:    "uppercase slug",
			mutate:  func(s *Story) { s.Slug = "Montpellier" },
			wantErr: true,
		},
		{
			name:    "slug with trailing hyphen",
			mutate:  func(s *Story) { s.Slug = "mont-" },
			wantErr: true,
		},
		{
			name:    "missing title",
			mutate:  func(s *Story) { s.Title = "" },
			wantErr: true,
		},
		{
			name:    "missing content",
			mutate:  func(s *Story) { s.Content = "" },
			wantErr: true,
		},
		{
			name:    "owner too short",
			mutate:  func(s *Story) { s.Owner = "0xdeadbeef" },
			wantErr: true,
		},
		{
			name:    "owner missing prefix",
			mutate:  func(s *Story) { s.Owner = "ab12CD34ef56ab12CD34ef56ab12CD34ef56ab12ab" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStory()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("montpellier"))
	assert.True(t, ValidSlug("the-lost-city-2"))
	assert.False(t, ValidSlug(""))
	assert.False(t, ValidSlug("-leading"))
	assert.False(t, ValidSlug("two--hyphens"))
	assert.False(t, ValidSlug("Upper"))
}

func TestNormalizeHomepage(t *testing.T) {
	t.Run("copies en to missing languages", func(t *testing.T) {
		s := validStory()
		s.Homepage = map[string]HomepageEntry{
			"en": {Title: "Montpellier", Description: "A night in the south of France."},
			"fr": {Title: "Montpellier", Description: "Une nuit dans le sud de la France."},
		}
		s.NormalizeHomepage()

		assert.Len(t, s.Homepage, len(SupportedLanguages))
		assert.Equal(t, "Une nuit dans le sud de la France.", s.Homepage["fr"].Description, "existing entries are untouched")
		assert.Equal(t, s.Homepage["en"], s.Homepage["ja"])
		assert.Equal(t, s.Homepage["en"], s.Homepage["zh"])
	})

	t.Run("incomplete en entry copies nothing", func(t *testing.T) {
		s := validStory()
		s.Homepage = map[string]HomepageEntry{
			"en": {Title: "Montpellier"},
		}
		s.NormalizeHomepage()
		assert.Len(t, s.Homepage, 1)
	})

	t.Run("nil map becomes empty map", func(t *testing.T) {
		s := validStory()
		s.NormalizeHomepage()
		assert.NotNil(t, s.Homepage)
		assert.Empty(t, s.Homepage)
	})
}

func TestHomepageFor(t *testing.T) {
	s := validStory()
	s.Homepage = map[string]HomepageEntry{
		"en": {Title: "Montpellier", Description: "A night in the south of France."},
		"fr": {Title: "Montpellier", Description: "Une nuit dans le sud de la France."},
	}

	assert.Equal(t, "Une nuit dans le sud de la France.", s.HomepageFor("fr").Description)

	// Unlisted language falls back to en.
	assert.Equal(t, "A night in the south of France.", s.HomepageFor("de").Description)

	// No homepage at all falls back to the story title.
	bare := validStory()
	assert.Equal(t, HomepageEntry{Title: "Montpellier"}, bare.HomepageFor("en"))
}

func TestUsage(t *testing.T) {
	a := Usage{Sessions: 1, Requests: 2, Tokens: 300, Costs: 0.5}
	b := Usage{Requests: 1, Tokens: 150, Costs: 0.25}

	sum := a.Add(b)
	assert.Equal(t, Usage{Sessions: 1, Requests: 3, Tokens: 450, Costs: 0.75}, sum)

	assert.True(t, Usage{}.IsZero())
	assert.False(t, b.IsZero())
}
