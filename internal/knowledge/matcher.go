// Package knowledge implements the static keyword-matching answer path used
// when no generative credential is configured.
package knowledge

import (
	"strings"

	"github.com/velikanov/folio/internal/storage"
)

// GreetingReply is the canned answer for greeting-only messages.
const GreetingReply = "Hi there! Ask me about my skills, projects, or experience."

// NotConfiguredReply is the fallback when nothing matches. It doubles as the
// configuration-error surface: the assistant has no generative credential, so
// it points the visitor at the contact form and the admin at the settings page.
const NotConfiguredReply = "I don't have an answer for that yet — my AI brain isn't fully configured " +
	"(a Gemini API key can be added in the admin settings). Feel free to reach out directly via the contact form."

// Match scans items in order for the first whose topic is contained in the
// message or whose topic contains the message, case-insensitively, and
// returns its description. Both containment directions are checked on
// purpose: very short topics can over-match, but that mirrors how the
// curated topics were written.
func Match(items []storage.KnowledgeItem, message string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(message))
	if q == "" {
		return "", false
	}
	for _, item := range items {
		topic := strings.ToLower(strings.TrimSpace(item.Topic))
		if topic == "" {
			continue
		}
		if strings.Contains(q, topic) || strings.Contains(topic, q) {
			return item.Description, true
		}
	}
	return "", false
}

// IsGreeting reports whether the message contains a greeting token.
func IsGreeting(message string) bool {
	q := strings.ToLower(message)
	return strings.Contains(q, "hello") || strings.Contains(q, "hi")
}

// Respond produces the static answer for a message: a matched knowledge item
// description, the canned greeting, or the not-configured fallback. It never
// fails.
func Respond(items []storage.KnowledgeItem, message string) string {
	if desc, ok := Match(items, message); ok {
		return desc
	}
	if IsGreeting(message) {
		return GreetingReply
	}
	return NotConfiguredReply
}
