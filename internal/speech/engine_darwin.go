//go:build darwin

package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// NewPlatformEngine returns the macOS engine backed by the `say` CLI, or a
// silent no-op engine if `say` is unavailable.
func NewPlatformEngine() Engine {
	if _, err := exec.LookPath("say"); err != nil {
		return nullEngine{}
	}
	return &sayEngine{}
}

type sayEngine struct{}

// Voices parses `say -v ?` output. Each line looks like:
//
//	Daniel              en_GB    # Hello, my name is Daniel.
func (sayEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, "say", "-v", "?").Output()
	if err != nil {
		return nil, fmt.Errorf("listing voices: %w", err)
	}

	var voices []Voice
	for _, line := range strings.Split(string(out), "\n") {
		name, rest, ok := splitVoiceLine(line)
		if !ok {
			continue
		}
		voices = append(voices, Voice{
			Name:   name,
			Locale: strings.ReplaceAll(rest, "_", "-"),
		})
	}
	return voices, nil
}

func splitVoiceLine(line string) (name, locale string, ok bool) {
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	// The locale is the last field; multi-word voice names precede it.
	return strings.Join(fields[:len(fields)-1], " "), fields[len(fields)-1], true
}

func (sayEngine) Speak(ctx context.Context, u Utterance) error {
	// say has no pitch flag; the inline pbas tag adjusts baseline pitch
	// (47 is the default baseline).
	text := u.Text
	if u.Pitch > 0 && u.Pitch != 1.0 {
		text = fmt.Sprintf("[[pbas %d]] %s", int(47*u.Pitch), text)
	}

	args := []string{"-v", u.Voice.Name}
	if u.Rate > 0 {
		args = append(args, "-r", fmt.Sprintf("%d", int(175*u.Rate)))
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, "say", args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("say: %w", err)
	}
	return nil
}
