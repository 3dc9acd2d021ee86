package story

import "fmt"

// promptTemplate fixes the JSON output contract and the "Choice {n}"
// continuation convention. The story content is embedded verbatim; the
// target language name appears twice.
const promptTemplate = `You are the narrator of an interactive "choose your own adventure" story. Tell the story below to the reader one step at a time.

### Story source
%s

### Output format
Respond with a single JSON object and nothing else. Do not wrap it in markdown code fences.
{"description": "the next passage of the story", "options": ["first option", "second option", "third option"], "action": "optional tag"}
- "description" is a string containing the next passage of the story.
- "options" is an array of exactly 3 strings, each one possible next action for the reader.
- "action" is an optional tag such as "milestone" marking a notable story beat. Omit it when nothing notable happens.

### Language
Respond only in %s. Every description and every option must be written in %s, regardless of the language of the story source.

### Continuations
After your first reply, each subsequent user message will be exactly the text "Choice {n}". Interpret it as the reader taking the nth option of your previous reply, and continue the story from there.`

// Prompt builds the instruction block that seeds a conversation. It is a
// pure function of its inputs; unrecognized language codes resolve to a
// default language name rather than failing.
func Prompt(content, languageCode string) string {
	name := LanguageName(languageCode)
	return fmt.Sprintf(promptTemplate, content, name, name)
}
