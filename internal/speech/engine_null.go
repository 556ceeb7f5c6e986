package speech

import "context"

// nullEngine is used when the host has no synthesis capability. Speaking
// through it is a silent skip, matching the adapter contract.
type nullEngine struct{}

func (nullEngine) Voices(ctx context.Context) ([]Voice, error) { return nil, nil }

func (nullEngine) Speak(ctx context.Context, u Utterance) error { return nil }
