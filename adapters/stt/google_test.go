package stt

import (
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/wicaksana/roleplay/domain/entities"
)

func TestAudioEncodingMapping(t *testing.T) {
	tests := []struct {
		encoding string
		want     speechpb.RecognitionConfig_AudioEncoding
		wantErr  bool
	}{
		{"opus", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS, false},
		{"wav", speechpb.RecognitionConfig_LINEAR16, false},
		{"pcm", speechpb.RecognitionConfig_LINEAR16, false},
		{"FLAC", speechpb.RecognitionConfig_FLAC, false},
		{"ogg_opus", speechpb.RecognitionConfig_OGG_OPUS, false},
		{"mp3", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			got, err := audioEncoding(entities.AudioClip{Encoding: tt.encoding})
			if tt.wantErr {
				if !errors.Is(err, entities.ErrInvalidResponse) {
					t.Errorf("Expected ErrInvalidResponse for %q, got %v", tt.encoding, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("audioEncoding(%q) failed: %v", tt.encoding, err)
			}
			if got != tt.want {
				t.Errorf("audioEncoding(%q) = %v, want %v", tt.encoding, got, tt.want)
			}
		})
	}
}
