package repositories

import (
	"context"

	"github.com/wicaksana/roleplay/domain/entities"
)

// ConversationService abstracts the remote collaborator that turns a user
// utterance into an assistant reply. The reply may arrive as a single
// segment or as several, each optionally carrying pre-synthesized audio.
type ConversationService interface {
	// Send submits one user turn and returns the assistant response
	Send(ctx context.Context, characterID int64, text string) (*TurnResponse, error)
}

// TurnResponse is the assistant side of one turn.
type TurnResponse struct {
	// Segments in arrival order; never empty on success
	Segments []entities.SpeechSegment
	// UserMessageID is the persisted identifier the backend assigned to
	// the submitted user message, when it persists messages at all
	UserMessageID string
	// MessageIDs are the persisted identifiers for Segments, index
	// aligned; shorter than Segments when the backend did not persist
	MessageIDs []string
}

// History abstracts the remote message log, consumed once when a character
// conversation is (re)opened to seed the local store.
type History interface {
	// Recent returns the ordered message log for the character
	Recent(ctx context.Context, characterID int64) ([]entities.Message, error)
}
