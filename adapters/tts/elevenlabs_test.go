package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wicaksana/roleplay/domain/entities"
)

func TestNewElevenLabsSynthesizer(t *testing.T) {
	logger := zaptest.NewLogger(t)

	// Test without API key
	os.Unsetenv("ELEVEN_LABS_API_KEY")
	config := NewElevenLabsConfigFromEnv()
	_, err := NewElevenLabsSynthesizer(config, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	// Test with API key
	os.Setenv("ELEVEN_LABS_API_KEY", "test-api-key")
	defer os.Unsetenv("ELEVEN_LABS_API_KEY")

	config = NewElevenLabsConfigFromEnv()
	synth, err := NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	if synth.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", synth.apiKey)
	}

	if synth.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, synth.voiceID)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	logger := zaptest.NewLogger(t)

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	ctx := context.Background()
	if _, err = synth.Synthesize(ctx, "", ""); err == nil {
		t.Error("Expected error for empty text")
	}
	if _, err = synth.Synthesize(ctx, "   ", ""); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestSynthesizeReturnsAudioBytes(t *testing.T) {
	mp3 := append([]byte("ID3"), make([]byte, 64)...)
	var gotVoicePath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVoicePath = r.URL.Path
		if r.Header.Get("xi-api-key") != "test-api-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(mp3)
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	audio, err := synth.Synthesize(context.Background(), "hello there", "custom-voice")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(audio) != len(mp3) {
		t.Errorf("Expected %d audio bytes, got %d", len(mp3), len(audio))
	}
	if gotVoicePath != "/text-to-speech/custom-voice" {
		t.Errorf("Expected the voice profile to select the voice, got path %q", gotVoicePath)
	}
}

func TestSynthesizeRejectsNonAudioPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>service temporarily unavailable</body></html>"))
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "hello", "")
	if !errors.Is(err, entities.ErrInvalidResponse) {
		t.Errorf("Expected ErrInvalidResponse for a non-audio payload, got %v", err)
	}
}

func TestSynthesizeServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynthesizer(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "hello", "")
	if !errors.Is(err, entities.ErrService) {
		t.Errorf("Expected ErrService for a non-200 response, got %v", err)
	}
}

func TestLooksLikeAudio(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"mp3 id3 tag", []byte("ID3\x04rest"), true},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, true},
		{"wav riff", []byte("RIFF0000WAVE"), true},
		{"ogg", []byte("OggS\x00\x02"), true},
		{"webm ebml", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00}, true},
		{"html error page", []byte("<html>oops</html>"), false},
		{"json error body", []byte(`{"detail":"quota"}`), false},
		{"too short", []byte{0xFF}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeAudio(tt.data); got != tt.want {
				t.Errorf("LooksLikeAudio(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

// Integration test - only runs if ELEVEN_LABS_API_KEY is set with real API key
func TestSynthesizeIntegration(t *testing.T) {
	apiKey := os.Getenv("ELEVEN_LABS_API_KEY")
	if apiKey == "" || apiKey == "test-api-key" {
		t.Skip("Skipping integration test - set ELEVEN_LABS_API_KEY environment variable with real API key")
	}

	logger := zap.NewNop()

	config := NewElevenLabsConfigFromEnv()
	synth, err := NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabsSynthesizer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	audio, err := synth.Synthesize(ctx, "Hello, this is an integration test.", "")
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}
	if len(audio) == 0 {
		t.Error("No audio data received")
	}

	t.Logf("Integration test completed: received %d bytes", len(audio))
}
