//go:build !darwin

package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// NewPlatformEngine returns an espeak-ng backed engine, or a silent no-op
// engine when no synthesizer binary is installed.
func NewPlatformEngine() Engine {
	for _, bin := range []string{"espeak-ng", "espeak"} {
		if _, err := exec.LookPath(bin); err == nil {
			return &espeakEngine{bin: bin}
		}
	}
	return nullEngine{}
}

type espeakEngine struct {
	bin string
}

// Voices parses `espeak --voices` output. Columns:
//
//	Pty Language       Age/Gender VoiceName       File       Other Languages
//	 5  en-gb           M  english             gmw/en
func (e *espeakEngine) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, e.bin, "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("listing voices: %w", err)
	}

	lines := strings.Split(string(out), "\n")
	var voices []Voice
	for i, line := range lines {
		if i == 0 { // header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Locale: fields[1]})
	}
	return voices, nil
}

func (e *espeakEngine) Speak(ctx context.Context, u Utterance) error {
	args := []string{"-v", u.Voice.Locale}
	if u.Pitch > 0 {
		args = append(args, "-p", fmt.Sprintf("%d", int(50*u.Pitch)))
	}
	if u.Rate > 0 {
		args = append(args, "-s", fmt.Sprintf("%d", int(160*u.Rate)))
	}
	args = append(args, u.Text)

	cmd := exec.CommandContext(ctx, e.bin, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", e.bin, err)
	}
	return nil
}
