package story

import (
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is assumed when a request does not name a language.
const DefaultLanguage = "en"

// SupportedLanguages are the codes the homepage display map is normalized
// over. Requests may name other codes; the prompt builder resolves any
// parsable BCP 47 tag to a language name.
var SupportedLanguages = []string{"en", "fr", "es", "de", "it", "pt", "ja", "zh"}

var languageNames = map[string]string{
	"en": "English",
	"fr": "French",
	"es": "Spanish",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ja": "Japanese",
	"zh": "Chinese",
}

// LanguageName returns the English name of a language code for use in
// prompts. Unrecognized but parsable tags resolve via the registry;
// anything else falls back to the default language's name.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	if tag, err := language.Parse(code); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return languageNames[DefaultLanguage]
}

// IsSupportedLanguage reports whether code is in the supported set.
func IsSupportedLanguage(code string) bool {
	_, ok := languageNames[code]
	return ok
}
