package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role represents the sender of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Emotion is an optional affect tag attached to assistant messages
type Emotion string

const (
	EmotionNeutral Emotion = "neutral"
	EmotionHappy   Emotion = "happy"
	EmotionSad     Emotion = "sad"
	EmotionTired   Emotion = "tired"
	EmotionAnxious Emotion = "anxious"
	EmotionAngry   Emotion = "angry"
)

// MessageStatus tracks the lifecycle of a message in the log
type MessageStatus string

const (
	// MessageStatusCommitted means the text is final and will not change.
	MessageStatusCommitted MessageStatus = "committed"
	// MessageStatusStreaming means the reveal is still writing into Text.
	MessageStatusStreaming MessageStatus = "streaming"
	// MessageStatusFailed marks a locally synthesized error placeholder.
	MessageStatusFailed MessageStatus = "failed"
)

// Message represents a single entry in a character conversation log.
// A message is created with a local ID; once the backend acknowledges it,
// AdoptServerID swaps in the persisted identifier without touching anything
// else. Committed messages are immutable; only the streaming reveal may
// write into a message while Status is MessageStatusStreaming.
type Message struct {
	ID          string        `json:"id"`
	CharacterID int64         `json:"character_id"`
	Role        Role          `json:"role"`
	Text        string        `json:"text"`
	Emotion     Emotion       `json:"emotion,omitempty"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`

	// local is true until a server-assigned ID replaces the optimistic one
	local bool
}

// NewUserMessage creates an optimistic user message for the given character
func NewUserMessage(characterID int64, text string) Message {
	return Message{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Role:        RoleUser,
		Text:        text,
		Status:      MessageStatusCommitted,
		CreatedAt:   time.Now(),
		local:       true,
	}
}

// NewAssistantMessage creates an assistant message in streaming state,
// ready to receive the incremental reveal.
func NewAssistantMessage(characterID int64, emotion Emotion) Message {
	return Message{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Role:        RoleAssistant,
		Emotion:     emotion,
		Status:      MessageStatusStreaming,
		CreatedAt:   time.Now(),
		local:       true,
	}
}

// NewAssistantError creates the locally synthesized placeholder appended when
// a turn fails after the user message was already logged. It is never
// persisted.
func NewAssistantError(characterID int64, text string) Message {
	return Message{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		Role:        RoleAssistant,
		Text:        text,
		Emotion:     EmotionNeutral,
		Status:      MessageStatusFailed,
		CreatedAt:   time.Now(),
		local:       true,
	}
}

// AdoptServerID replaces the optimistic local ID with the identifier the
// backend assigned on persistence. Display order and text are unaffected.
func (m *Message) AdoptServerID(id string) {
	if id == "" {
		return
	}
	m.ID = id
	m.local = false
}

// IsLocal reports whether the message still carries its optimistic ID
func (m *Message) IsLocal() bool {
	return m.local
}

// Commit finalizes a streaming message at its current text
func (m *Message) Commit() {
	if m.Status == MessageStatusStreaming {
		m.Status = MessageStatusCommitted
	}
}

// Validate validates the message data
func (m *Message) Validate() error {
	if m.CharacterID == 0 {
		return errors.New("character_id is required")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return errors.New("invalid message role")
	}
	return nil
}
