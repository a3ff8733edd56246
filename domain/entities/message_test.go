package entities

import (
	"testing"
)

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage(42, "hello")

	if msg.ID == "" {
		t.Error("Expected a local ID to be assigned")
	}

	if !msg.IsLocal() {
		t.Error("Expected a freshly created message to be local")
	}

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}

	if msg.Status != MessageStatusCommitted {
		t.Errorf("Expected status %s, got %s", MessageStatusCommitted, msg.Status)
	}

	if msg.Text != "hello" {
		t.Errorf("Expected text 'hello', got %q", msg.Text)
	}
}

func TestAdoptServerID(t *testing.T) {
	msg := NewUserMessage(42, "hello")
	localID := msg.ID

	// Empty server ID must not clobber the optimistic one
	msg.AdoptServerID("")
	if msg.ID != localID || !msg.IsLocal() {
		t.Error("Empty server ID should leave the message untouched")
	}

	msg.AdoptServerID("srv-1001")
	if msg.ID != "srv-1001" {
		t.Errorf("Expected server ID 'srv-1001', got %q", msg.ID)
	}
	if msg.IsLocal() {
		t.Error("Message should no longer be local after adopting a server ID")
	}
	if msg.Text != "hello" {
		t.Error("Adopting a server ID must not disturb the text")
	}
}

func TestAssistantMessageLifecycle(t *testing.T) {
	msg := NewAssistantMessage(42, EmotionNeutral)

	if msg.Status != MessageStatusStreaming {
		t.Errorf("Expected status %s, got %s", MessageStatusStreaming, msg.Status)
	}

	msg.Text = "partial rev"
	msg.Commit()

	if msg.Status != MessageStatusCommitted {
		t.Errorf("Expected status %s after commit, got %s", MessageStatusCommitted, msg.Status)
	}
	if msg.Text != "partial rev" {
		t.Error("Commit must finalize the message at its current text")
	}

	// Committing twice has no additional effect
	msg.Commit()
	if msg.Status != MessageStatusCommitted {
		t.Error("Second commit should be a no-op")
	}
}

func TestNewAssistantError(t *testing.T) {
	msg := NewAssistantError(7, "sorry, something went wrong")

	if msg.Status != MessageStatusFailed {
		t.Errorf("Expected status %s, got %s", MessageStatusFailed, msg.Status)
	}
	if msg.Role != RoleAssistant {
		t.Errorf("Expected role %s, got %s", RoleAssistant, msg.Role)
	}
	if !msg.IsLocal() {
		t.Error("Error placeholders are never persisted and stay local")
	}
}

func TestMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{
			name:    "valid user message",
			message: NewUserMessage(42, "hi"),
			wantErr: false,
		},
		{
			name:    "missing character",
			message: Message{Role: RoleUser, Text: "hi"},
			wantErr: true,
		},
		{
			name:    "invalid role",
			message: Message{CharacterID: 42, Role: Role("narrator")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
