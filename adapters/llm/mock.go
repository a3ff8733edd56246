package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

// MockConversation is a canned ConversationService for development without
// API keys. Replies echo the persona and cycle through a few stock lines.
type MockConversation struct {
	personas *PersonaDirectory
	logger   *zap.Logger

	mu    sync.Mutex
	turns map[int64]int
}

var _ repositories.ConversationService = (*MockConversation)(nil)

var mockLines = []string{
	"That is an interesting thought. Tell me more.",
	"I was just thinking about something similar!",
	"Hmm. And what do you make of that yourself?",
}

// NewMockConversation creates a mock conversation service
func NewMockConversation(personas *PersonaDirectory, logger *zap.Logger) *MockConversation {
	return &MockConversation{
		personas: personas,
		logger:   logger,
		turns:    make(map[int64]int),
	}
}

// Send returns a canned in-character reply
func (m *MockConversation) Send(ctx context.Context, characterID int64, text string) (*repositories.TurnResponse, error) {
	persona, err := m.personas.Lookup(characterID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	turn := m.turns[characterID]
	m.turns[characterID]++
	m.mu.Unlock()

	reply := fmt.Sprintf("%s %s", persona.Name+":", mockLines[turn%len(mockLines)])
	m.logger.Debug("Mock reply", zap.Int64("characterID", characterID), zap.Int("turn", turn))

	return &repositories.TurnResponse{
		Segments: []entities.SpeechSegment{{
			Text:         reply,
			VoiceProfile: persona.VoiceProfile,
			Emotion:      entities.ClassifyEmotion(reply),
		}},
	}, nil
}
