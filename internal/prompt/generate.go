package prompt

import (
	"fmt"
	"strings"

	"github.com/velikanov/folio/internal/lang"
	"github.com/velikanov/folio/internal/storage"
)

// BuildGeneration constructs the one-shot prompt for the generative backend:
// persona preamble, assembled context, an explicit target-language
// instruction, and the literal visitor message. The backend is stateless, so
// the full context is re-sent on every call. The no-markdown instruction
// shapes content for speech output and is not validated on the way back.
func BuildGeneration(p *storage.Profile, contextBlock string, language lang.Language, message string) string {
	var sb strings.Builder

	name := ownerName(p)
	fmt.Fprintf(&sb, "You are the AI assistant on %s's portfolio website.", name)
	if p != nil && p.Title != "" {
		fmt.Fprintf(&sb, " %s works as %s.", p.FullName, p.Title)
	}
	sb.WriteString(" Answer visitor questions about them warmly and concisely, using only the information below.")
	sb.WriteString(" If the answer isn't covered, suggest reaching out via the contact form.")
	sb.WriteString(" Do not use markdown formatting markers such as asterisks or backticks; the reply may be read aloud.\n")

	if p != nil && p.Bio != "" {
		sb.WriteString("\n[About]\n")
		sb.WriteString(p.Bio)
		sb.WriteString("\n")
	}

	if contextBlock != "" {
		sb.WriteString("\n")
		sb.WriteString(contextBlock)
	}

	fmt.Fprintf(&sb, "\nReply in %s (%s).\n", language.Name, language.NativeName)
	fmt.Fprintf(&sb, "\nVisitor: %s\n", message)

	return sb.String()
}
