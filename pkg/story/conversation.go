package story

import (
	"errors"
	"fmt"
	"strings"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrBadHistory means a submitted conversation history violates the
// alternation invariant.
var ErrBadHistory = errors.New("malformed conversation history")

// ChoicePrefix is the literal prefix of the short continuation messages the
// client sends after the first step ("Choice 1", "Choice 2", "Choice 3").
const ChoicePrefix = "Choice "

// Message is a single turn in a conversation. The full ordered sequence is
// round-tripped between client and server on every request; the server keeps
// no session store, so the client-held array is the conversation state.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChoiceMessage builds the conventional user turn selecting option n.
func ChoiceMessage(n int) Message {
	return Message{Role: RoleUser, Content: fmt.Sprintf("%s%d", ChoicePrefix, n)}
}

// ValidateHistory checks the conversation invariant: the sequence strictly
// alternates user/assistant, starting with user.
func ValidateHistory(history []Message) error {
	for i, m := range history {
		want := RoleUser
		if i%2 == 1 {
			want = RoleAssistant
		}
		if m.Role != want {
			return fmt.Errorf("%w: must alternate user/assistant starting with user (turn %d has role %q)", ErrBadHistory, i, m.Role)
		}
	}
	return nil
}

// CountChoices counts the user turns that were choice selections. The step
// number shown to the client is derived from this count; it is a display
// aid, not a stored value.
func CountChoices(history []Message) int {
	n := 0
	for _, m := range history {
		if m.Role == RoleUser && strings.HasPrefix(m.Content, ChoicePrefix) {
			n++
		}
	}
	return n
}
