package repositories

import (
	"context"

	"github.com/wicaksana/roleplay/domain/entities"
)

// Transcriber abstracts speech recognition collaborators. A backend may fold
// the whole voice turn into one call, in which case the result carries the
// assistant segments and audio alongside the recognized text.
type Transcriber interface {
	// Transcribe uploads a finished clip and returns the recognized text.
	// Empty clips must be rejected with entities.ErrEmptyClip before any
	// network traffic happens.
	Transcribe(ctx context.Context, clip entities.AudioClip, characterID int64) (*TranscriptionResult, error)
}

// TranscriptionResult is what came back from the speech service.
type TranscriptionResult struct {
	// Text is the recognized user utterance
	Text string
	// Segments holds the assistant reply when the backend performed the
	// full round trip in one call; nil otherwise
	Segments []entities.SpeechSegment
	// MessageIDs are persisted identifiers for Segments, index aligned
	MessageIDs []string
}

// Folded reports whether the backend already produced the assistant reply
func (r *TranscriptionResult) Folded() bool {
	return len(r.Segments) > 0
}
