// Package stt is the direct Google Cloud Speech adapter for transcription,
// for running without the HTTP backend. Clips are recognized in one
// synchronous call; the assistant reply is produced separately.
package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

const defaultLanguage = "en-US"

// GoogleConfig holds configuration for the Google Speech transcriber.
// Optional fields with defaults:
// - Language: BCP-47 recognition language (default: "en-US")
// Credentials come from the standard GOOGLE_APPLICATION_CREDENTIALS setup.
type GoogleConfig struct {
	Language string
}

// NewGoogleConfigFromEnv creates a new GoogleConfig from environment variables
func NewGoogleConfigFromEnv() GoogleConfig {
	return GoogleConfig{
		Language: os.Getenv("SPEECH_LANGUAGE"),
	}
}

// GoogleTranscriber implements Transcriber using Google Cloud Speech-to-Text
type GoogleTranscriber struct {
	client   *speech.Client
	language string
	logger   *zap.Logger
}

// Ensure GoogleTranscriber implements the Transcriber interface
var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber backed by Google Cloud Speech
func NewGoogleTranscriber(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleTranscriber, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	language := config.Language
	if language == "" {
		language = defaultLanguage
		logger.Info("Using default recognition language", zap.String("language", language))
	}

	return &GoogleTranscriber{
		client:   client,
		language: language,
		logger:   logger,
	}, nil
}

// Transcribe recognizes the clip in one synchronous call. The result never
// carries assistant segments; the conversation adapter produces the reply.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, clip entities.AudioClip, characterID int64) (*repositories.TranscriptionResult, error) {
	if clip.Empty() {
		return nil, entities.ErrEmptyClip
	}

	encoding, err := audioEncoding(clip)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(clip.SampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: clip.Data},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrService, err)
	}

	var transcript string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			transcript += result.Alternatives[0].Transcript
		}
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, fmt.Errorf("%w: no speech detected in audio", entities.ErrService)
	}

	g.logger.Info("Clip transcribed",
		zap.Int("clipBytes", len(clip.Data)),
		zap.Int("textLength", len(transcript)))

	return &repositories.TranscriptionResult{Text: transcript}, nil
}

// Close releases the underlying client
func (g *GoogleTranscriber) Close() error {
	return g.client.Close()
}

// audioEncoding maps the clip's declared format onto the Speech API enum
func audioEncoding(clip entities.AudioClip) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(clip.Encoding) {
	case "WAV", "LINEAR16", "PCM":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "OPUS", "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("%w: unsupported encoding %q", entities.ErrInvalidResponse, clip.Encoding)
	}
}
