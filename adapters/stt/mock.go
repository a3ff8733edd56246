package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

// MockTranscriber is a canned Transcriber for development without cloud
// credentials. Empty clips are still rejected so the turn machinery behaves
// the same as with the real service.
type MockTranscriber struct {
	Text   string
	logger *zap.Logger
}

var _ repositories.Transcriber = (*MockTranscriber)(nil)

// NewMockTranscriber creates a mock transcriber returning text for any clip
func NewMockTranscriber(text string, logger *zap.Logger) *MockTranscriber {
	if text == "" {
		text = "hello, can you hear me?"
	}
	return &MockTranscriber{Text: text, logger: logger}
}

// Transcribe returns the canned text
func (m *MockTranscriber) Transcribe(ctx context.Context, clip entities.AudioClip, characterID int64) (*repositories.TranscriptionResult, error) {
	if clip.Empty() {
		return nil, entities.ErrEmptyClip
	}
	m.logger.Debug("Mock transcription", zap.Int("clipBytes", len(clip.Data)))
	return &repositories.TranscriptionResult{Text: m.Text}, nil
}
