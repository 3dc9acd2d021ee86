package story

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	slugPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	ownerPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// HomepageEntry is the per-language title and description shown on the
// story listing page. It is distinct from the story's narrative content.
type HomepageEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Usage holds the running counters for a story. Counters are monotonically
// non-decreasing; this codebase only ever adds to them.
type Usage struct {
	Sessions int64   `json:"sessions"`
	Requests int64   `json:"requests"`
	Tokens   int64   `json:"tokens"`
	Costs    float64 `json:"costs"`
}

// Add returns the sum of two usage deltas.
func (u Usage) Add(d Usage) Usage {
	return Usage{
		Sessions: u.Sessions + d.Sessions,
		Requests: u.Requests + d.Requests,
		Tokens:   u.Tokens + d.Tokens,
		Costs:    u.Costs + d.Costs,
	}
}

// IsZero reports whether the delta carries no counter changes.
func (u Usage) IsZero() bool {
	return u.Sessions == 0 && u.Requests == 0 && u.Tokens == 0 && u.Costs == 0
}

// UsageEvent is one best-effort analytics increment for a story.
type UsageEvent struct {
	Slug  string    `json:"slug"`
	Delta Usage     `json:"delta"`
	At    time.Time `json:"at"`
}

// Story is one persisted story record, keyed by slug.
type Story struct {
	Slug     string                   `json:"slug" db:"slug"`
	Title    string                   `json:"title" db:"title"`
	Content  string                   `json:"content" db:"content"`
	Homepage map[string]HomepageEntry `json:"homepageDisplay" db:"-"`
	Owner    string                   `json:"owner,omitempty" db:"owner"`
	IsActive bool                     `json:"isActive" db:"is_active"`
	Usage    Usage                    `json:"usage" db:"-"`

	CreatedAt time.Time `json:"createdAt,omitempty" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt,omitempty" db:"updated_at"`
}

// Validate checks the writable fields of a story record.
func (s Story) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Slug, validation.Required,
			validation.Match(slugPattern).Error("must be lowercase alphanumeric with hyphens")),
		validation.Field(&s.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&s.Content, validation.Required),
		validation.Field(&s.Owner,
			validation.Match(ownerPattern).Error("must be an account address (0x followed by 40 hex characters)")),
	)
}

// ValidSlug reports whether s is a well-formed story slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// NormalizeHomepage fills the homepage display map so that every supported
// language resolves to an entry. When the "en" entry has both fields
// populated, missing languages receive a copy of it. Called at write time;
// readers can assume the invariant holds.
func (s *Story) NormalizeHomepage() {
	if s.Homepage == nil {
		s.Homepage = make(map[string]HomepageEntry)
	}

	en, ok := s.Homepage[DefaultLanguage]
	if !ok || en.Title == "" || en.Description == "" {
		return
	}

	for _, code := range SupportedLanguages {
		if _, ok := s.Homepage[code]; !ok {
			s.Homepage[code] = en
		}
	}
}

// HomepageFor resolves the display entry for a language, falling back to
// "en" and then to the story title.
func (s *Story) HomepageFor(lang string) HomepageEntry {
	if e, ok := s.Homepage[lang]; ok && e.Title != "" {
		return e
	}
	if e, ok := s.Homepage[DefaultLanguage]; ok && e.Title != "" {
		return e
	}
	return HomepageEntry{Title: s.Title}
}
