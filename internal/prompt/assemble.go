// Package prompt flattens portfolio content into a prompt-ready text block
// and builds the final generation prompt around it.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/velikanov/folio/internal/content"
	"github.com/velikanov/folio/internal/storage"
)

const defaultMaxContextTokens = 4000

// Assembler flattens a content snapshot into one labeled text block.
// Assembly is pure and deterministic: identical snapshots yield identical
// output, and empty categories contribute no section at all.
type Assembler struct {
	MaxContextTokens int
}

// New creates an Assembler with the given token budget for assembled context.
// If maxContextTokens <= 0, the default (4000) is used.
func New(maxContextTokens int) *Assembler {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Assembler{MaxContextTokens: maxContextTokens}
}

// section pairs a header with a line formatter. Sections are processed
// uniformly in this fixed order; adding a category means adding one entry.
type section struct {
	name  string
	lines func(s content.Snapshot) []string
}

var sections = []section{
	{"Knowledge Base", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Knowledge))
		for _, k := range s.Knowledge {
			out = append(out, fmt.Sprintf("- %s: %s", k.Topic, k.Description))
		}
		return out
	}},
	{"Projects", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Projects))
		for _, p := range s.Projects {
			line := "- " + p.Title
			if p.Description != "" {
				line += ": " + p.Description
			}
			if tags := decodeTags(p.Tags); len(tags) > 0 {
				line += " (" + strings.Join(tags, ", ") + ")"
			}
			out = append(out, line)
		}
		return out
	}},
	{"Skills", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Skills))
		for _, sk := range s.Skills {
			out = append(out, fmt.Sprintf("- %s (%s, proficiency %d%%)", sk.Name, sk.Category, sk.Proficiency))
		}
		return out
	}},
	{"Experience", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Experience))
		for _, e := range s.Experience {
			end := e.EndDate
			if e.Current || end == "" {
				end = "present"
			}
			line := fmt.Sprintf("- %s at %s", e.Position, e.Company)
			if e.StartDate != "" {
				line += fmt.Sprintf(" (%s to %s)", e.StartDate, end)
			}
			out = append(out, line)
		}
		return out
	}},
	{"Education", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Education))
		for _, e := range s.Education {
			out = append(out, fmt.Sprintf("- %s in %s, %s", e.Degree, e.FieldOfStudy, e.Institution))
		}
		return out
	}},
	{"Certifications", func(s content.Snapshot) []string {
		out := make([]string, 0, len(s.Certifications))
		for _, c := range s.Certifications {
			line := fmt.Sprintf("- %s by %s", c.Name, c.Issuer)
			if c.IssueDate != "" {
				line += " (" + c.IssueDate + ")"
			}
			out = append(out, line)
		}
		return out
	}},
}

// Assemble produces the labeled context block. Sections appear in fixed
// order; a category with no records contributes neither a header nor
// placeholder text. Entries past the token budget are dropped, whole lines
// at a time, never mid-line.
func (a *Assembler) Assemble(s content.Snapshot) string {
	var sb strings.Builder
	remaining := a.MaxContextTokens

	for _, sec := range sections {
		lines := sec.lines(s)
		if len(lines) == 0 {
			continue
		}

		header := "[" + sec.name + "]\n"
		if sb.Len() > 0 {
			header = "\n" + header
		}
		headerTokens := EstimateTokens(header)
		if headerTokens > remaining {
			break
		}

		wrote := false
		for _, line := range lines {
			tokens := EstimateTokens(line + "\n")
			if headerTokens+tokens > remaining {
				continue
			}
			if !wrote {
				sb.WriteString(header)
				remaining -= headerTokens
				headerTokens = 0
				wrote = true
			}
			sb.WriteString(line)
			sb.WriteString("\n")
			remaining -= tokens
		}
	}

	return sb.String()
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func decodeTags(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	return tags
}

// ownerName returns the profile's display name, or a neutral fallback when
// no profile row exists yet.
func ownerName(p *storage.Profile) string {
	if p != nil && p.FullName != "" {
		return p.FullName
	}
	return "the site owner"
}
