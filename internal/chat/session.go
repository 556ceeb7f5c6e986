// Package chat implements the assistant conversation: an append-only
// transcript per session and the per-message response strategy (keyword
// matching or generative call).
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/velikanov/folio/internal/content"
	"github.com/velikanov/folio/internal/genai"
	"github.com/velikanov/folio/internal/knowledge"
	"github.com/velikanov/folio/internal/lang"
	"github.com/velikanov/folio/internal/prompt"
)

// Greeting is the synthetic bot turn every conversation starts with.
const Greeting = "Hi! How can I help you today?"

const (
	fallbackInvalidCredential = "My API credential appears to be invalid — please check the Gemini key in the admin settings."
	fallbackConnectivity      = "I'm having trouble connecting to my AI brain right now — please try again in a moment."
)

// ErrEmptyInput is returned for blank submissions. Callers treat it as a
// no-op: no turn is appended and the responding flag never flips.
var ErrEmptyInput = errors.New("empty input")

// Turn is one transcript entry.
type Turn struct {
	Text  string `json:"text"`
	IsBot bool   `json:"is_bot"`
}

// Generator produces a reply from the generative backend. The API key is
// passed per call because it lives in the profile record.
type Generator interface {
	Generate(ctx context.Context, promptText, apiKey string) (string, error)
}

// ContextSource supplies the content snapshot. Implemented by content.Catalog.
type ContextSource interface {
	Snapshot(ctx context.Context) (content.Snapshot, error)
}

// Speaker optionally reads replies aloud. Implemented by speech.Adapter.
type Speaker interface {
	Speak(ctx context.Context, text, langCode string)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Deps are the collaborators shared by all sessions.
type Deps struct {
	Content   ContextSource
	Assembler *prompt.Assembler
	Generator Generator
	Speaker   Speaker // optional
	// APIKey is the config-level Gemini key, used when the profile record
	// carries none.
	APIKey string
	Clock  Clock
}

// Session owns one conversation. The transcript is append-only, starts with
// the synthetic greeting, and lives only as long as the session object.
type Session struct {
	ID   string
	deps Deps

	mu         sync.Mutex
	turns      []Turn
	responding bool
	generation uint64
	language   lang.Language
	lastActive time.Time
}

// NewSession creates a session with the greeting already in the transcript.
func NewSession(id string, deps Deps, language lang.Language) *Session {
	if deps.Clock == nil {
		deps.Clock = realClock{}
	}
	return &Session{
		ID:         id,
		deps:       deps,
		turns:      []Turn{{Text: Greeting, IsBot: true}},
		language:   language,
		lastActive: deps.Clock.Now(),
	}
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Responding reports whether a submission is currently being resolved.
func (s *Session) Responding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responding
}

// Language returns the session's reply language.
func (s *Session) Language() lang.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage changes the reply language for subsequent turns.
func (s *Session) SetLanguage(l lang.Language) {
	s.mu.Lock()
	s.language = l
	s.mu.Unlock()
}

// LastActive returns the time of the most recent submission (or creation).
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Submit appends the user turn, resolves a reply, and appends exactly one
// bot turn. Blank input is rejected with ErrEmptyInput and no transition.
// Every other outcome, including backend failure, produces a bot turn and
// returns the machine to idle. If a newer submission supersedes this one
// while it resolves, the stale result is discarded and no turn is appended.
func (s *Session) Submit(ctx context.Context, text string) (Turn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	s.turns = append(s.turns, Turn{Text: trimmed, IsBot: false})
	s.responding = true
	s.generation++
	gen := s.generation
	langSel := s.language
	s.lastActive = s.deps.Clock.Now()
	s.mu.Unlock()

	reply := s.resolve(ctx, trimmed, langSel)

	s.mu.Lock()
	if s.generation != gen {
		// A newer submission owns the responding flag now.
		s.mu.Unlock()
		return Turn{}, context.Canceled
	}
	bot := Turn{Text: reply, IsBot: true}
	s.turns = append(s.turns, bot)
	s.responding = false
	s.mu.Unlock()

	if s.deps.Speaker != nil {
		s.deps.Speaker.Speak(ctx, reply, langSel.Code)
	}
	return bot, nil
}

// resolve picks the strategy for one message and always returns a reply.
func (s *Session) resolve(ctx context.Context, message string, langSel lang.Language) string {
	snap, err := s.deps.Content.Snapshot(ctx)
	if err != nil {
		// Assembly must never block an answer; degrade to an empty snapshot.
		slog.Warn("content snapshot failed, answering without context", "error", err)
		snap = content.Snapshot{}
	}

	apiKey := s.deps.APIKey
	if snap.Profile != nil && strings.TrimSpace(snap.Profile.GeminiAPIKey) != "" {
		apiKey = strings.TrimSpace(snap.Profile.GeminiAPIKey)
	}

	if apiKey == "" || s.deps.Generator == nil {
		return knowledge.Respond(snap.Knowledge, message)
	}

	contextBlock := s.deps.Assembler.Assemble(snap)
	promptText := prompt.BuildGeneration(snap.Profile, contextBlock, langSel, message)

	out, err := s.deps.Generator.Generate(ctx, promptText, apiKey)
	if err != nil {
		slog.Warn("generative call failed", "session", s.ID, "error", err)
		if errors.Is(err, genai.ErrInvalidCredential) {
			return fallbackInvalidCredential
		}
		return fallbackConnectivity
	}
	return strings.TrimSpace(out)
}
