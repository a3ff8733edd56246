package repositories

import "context"

// SpeechSynthesizer abstracts text-to-speech collaborators.
type SpeechSynthesizer interface {
	// Synthesize returns the complete audio rendering of text in the
	// given voice. Payloads not recognizable as audio must be rejected
	// with entities.ErrInvalidResponse.
	Synthesize(ctx context.Context, text string, voiceProfile string) ([]byte, error)
}
