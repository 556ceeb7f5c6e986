// Package speech optionally reads assistant replies aloud through the host
// platform's voice synthesis. At most one utterance is active at a time.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Voice is one synthesis voice exposed by the host platform.
type Voice struct {
	Name   string
	Locale string // BCP-47-ish, e.g. "en-GB"
}

// Utterance is a single speak request with neutral values at 1.0.
type Utterance struct {
	Text  string
	Voice Voice
	Pitch float64
	Rate  float64
}

// Engine abstracts the host synthesis capability. Voices may be empty until
// the platform has finished enumerating them; callers retry on later use.
type Engine interface {
	Voices(ctx context.Context) ([]Voice, error)
	// Speak blocks until the utterance finishes or ctx is cancelled.
	Speak(ctx context.Context, u Utterance) error
}

// Adapter owns the single utterance slot. Speaking cancels any in-flight
// utterance first; utterances never overlap and never queue.
type Adapter struct {
	engine Engine

	mu      sync.Mutex
	enabled bool
	cancel  context.CancelFunc
	voices  []Voice
}

// NewAdapter creates a disabled Adapter around the given engine.
func NewAdapter(engine Engine) *Adapter {
	return &Adapter{engine: engine}
}

// SetEnabled toggles voice output. Disabling cancels any active utterance.
func (a *Adapter) SetEnabled(on bool) {
	a.mu.Lock()
	a.enabled = on
	if !on && a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.mu.Unlock()
}

// Enabled reports whether voice output is on.
func (a *Adapter) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Speak reads text aloud in the voice selected for langCode. It returns
// immediately; synthesis runs in the background. Disabled output, an empty
// voice list, or no matching voice all skip silently.
func (a *Adapter) Speak(ctx context.Context, text, langCode string) {
	a.mu.Lock()
	if !a.enabled || strings.TrimSpace(text) == "" {
		a.mu.Unlock()
		return
	}

	if len(a.voices) == 0 {
		// Voice enumeration can lag the first use; retry on every call
		// until the platform reports something.
		voices, err := a.engine.Voices(ctx)
		if err != nil {
			slog.Debug("voice enumeration failed", "error", err)
			a.mu.Unlock()
			return
		}
		a.voices = voices
	}

	voice, ok := SelectVoice(a.voices, langCode)
	if !ok {
		a.mu.Unlock()
		return
	}

	// Cancel-then-speak: the slot holds at most one utterance.
	if a.cancel != nil {
		a.cancel()
	}
	utterCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.mu.Unlock()

	pitch, rate := personaTuning(langCode)
	u := Utterance{Text: text, Voice: voice, Pitch: pitch, Rate: rate}

	go func() {
		defer cancel()
		if err := a.engine.Speak(utterCtx, u); err != nil && utterCtx.Err() == nil {
			slog.Debug("speech synthesis failed", "voice", u.Voice.Name, "error", err)
		}
	}()
}

// SelectVoice picks a voice for the language. English prefers a
// British-English voice by name/locale, then a generic "Female" voice, then
// any en-prefixed voice. Other languages take the first voice whose locale
// prefix matches the code. Returns false when nothing matches.
func SelectVoice(voices []Voice, langCode string) (Voice, bool) {
	if langCode == "" {
		langCode = "en"
	}

	if langCode == "en" {
		for _, v := range voices {
			if isBritish(v) {
				return v, true
			}
		}
		for _, v := range voices {
			if strings.Contains(v.Name, "Female") && hasLocalePrefix(v, "en") {
				return v, true
			}
		}
	}

	for _, v := range voices {
		if hasLocalePrefix(v, langCode) {
			return v, true
		}
	}
	return Voice{}, false
}

func isBritish(v Voice) bool {
	if hasLocalePrefix(v, "en-GB") {
		return true
	}
	name := strings.ToLower(v.Name)
	return strings.Contains(name, "british") || strings.Contains(name, "uk english")
}

func hasLocalePrefix(v Voice, prefix string) bool {
	locale := strings.ToLower(strings.ReplaceAll(v.Locale, "_", "-"))
	return strings.HasPrefix(locale, strings.ToLower(prefix))
}

// personaTuning returns pitch/rate for the assistant persona: slightly lower
// pitch and slightly faster delivery in English, neutral otherwise.
func personaTuning(langCode string) (pitch, rate float64) {
	if langCode == "en" || langCode == "" {
		return 0.9, 1.1
	}
	return 1.0, 1.0
}
