package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/wicaksana/roleplay/domain/entities"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL, UserID: "user-1"}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, server
}

func TestNewClientRequiresUserID(t *testing.T) {
	if _, err := NewClient(Config{}, zaptest.NewLogger(t)); err == nil {
		t.Error("Expected error when user ID is not set")
	}
}

func TestSendMapsReplyToSegments(t *testing.T) {
	mp3 := append([]byte("ID3"), make([]byte, 32)...)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/send" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Bad request body: %v", err)
		}
		if req.UserID != "user-1" || req.CharacterID != 42 || req.Message != "hello" || !req.IsUserMessage {
			t.Errorf("Unexpected request payload: %+v", req)
		}

		json.NewEncoder(w).Encode(sendResponse{
			Success:     true,
			UserMessage: &chatMessage{ID: 10},
			AIMessages: []chatMessage{
				{ID: 11, Message: "hi there"},
				{ID: 12, Message: "how are you?"},
			},
			AudioData: base64.StdEncoding.EncodeToString(mp3),
		})
	}))

	resp, err := client.Send(context.Background(), 42, "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if resp.UserMessageID != "10" {
		t.Errorf("Expected user message ID 10, got %q", resp.UserMessageID)
	}
	if len(resp.Segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(resp.Segments))
	}
	if resp.Segments[0].Text != "hi there" || resp.Segments[1].Text != "how are you?" {
		t.Errorf("Segments out of order: %+v", resp.Segments)
	}
	if !resp.Segments[0].HasAudio() {
		t.Error("Expected the eager audio blob on the first segment")
	}
	if resp.Segments[1].HasAudio() {
		t.Error("Expected no audio on later segments")
	}
	if len(resp.MessageIDs) != 2 || resp.MessageIDs[0] != "11" || resp.MessageIDs[1] != "12" {
		t.Errorf("Unexpected message IDs: %v", resp.MessageIDs)
	}
}

func TestSendBackendFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{Success: false, Error: "character not found"})
	}))

	_, err := client.Send(context.Background(), 42, "hello")
	if !errors.Is(err, entities.ErrService) {
		t.Errorf("Expected ErrService, got %v", err)
	}
}

func TestSendIgnoresNonAudioBlob(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendResponse{
			Success:    true,
			AIMessages: []chatMessage{{ID: 11, Message: "hi"}},
			AudioData:  base64.StdEncoding.EncodeToString([]byte("<html>error</html>")),
		})
	}))

	resp, err := client.Send(context.Background(), 42, "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.Segments[0].HasAudio() {
		t.Error("Expected a non-audio blob to be dropped, turn degrades to text")
	}
}

func TestTranscribeRejectsEmptyClip(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	_, err := client.Transcribe(context.Background(), entities.AudioClip{}, 42)
	if !errors.Is(err, entities.ErrEmptyClip) {
		t.Fatalf("Expected ErrEmptyClip, got %v", err)
	}
	if calls != 0 {
		t.Error("Expected no network call for an empty clip")
	}
}

func TestTranscribeFoldedRoundTrip(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/voice-chat/send-voice" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("Expected multipart upload: %v", err)
		}
		if r.FormValue("characterId") != "42" {
			t.Errorf("Expected characterId field, got %q", r.FormValue("characterId"))
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("Expected file part: %v", err)
		}
		file.Close()

		json.NewEncoder(w).Encode(voiceResponse{
			Success:         true,
			TranscribedText: "what time is it",
			AIMessage:       &chatMessage{ID: 21, Message: "half past nine"},
		})
	}))

	clip := entities.AudioClip{Data: []byte{0x01, 0x02}, MIMEType: "audio/webm"}
	result, err := client.Transcribe(context.Background(), clip, 42)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if result.Text != "what time is it" {
		t.Errorf("Expected transcribed text, got %q", result.Text)
	}
	if !result.Folded() {
		t.Fatal("Expected a folded result")
	}
	if result.Segments[0].Text != "half past nine" || result.MessageIDs[0] != "21" {
		t.Errorf("Unexpected folded reply: %+v %v", result.Segments, result.MessageIDs)
	}
}

func TestTranscribeEmptyRecognition(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(voiceResponse{Success: true, TranscribedText: "   "})
	}))

	clip := entities.AudioClip{Data: []byte{0x01}}
	_, err := client.Transcribe(context.Background(), clip, 42)
	if !errors.Is(err, entities.ErrService) {
		t.Errorf("Expected ErrService when nothing was recognized, got %v", err)
	}
}

func TestRecentMapsHistory(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/history/42" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]chatMessage{
			{ID: 1, CharacterID: 42, Message: "hello", IsUserMessage: true},
			{ID: 2, CharacterID: 42, Message: "hi!", IsUserMessage: false},
		})
	}))

	messages, err := client.Recent(context.Background(), 42)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != entities.RoleUser || messages[0].ID != "1" {
		t.Errorf("Unexpected first message: %+v", messages[0])
	}
	if messages[1].Role != entities.RoleAssistant || messages[1].Text != "hi!" {
		t.Errorf("Unexpected second message: %+v", messages[1])
	}
	if messages[0].IsLocal() {
		t.Error("History messages carry persisted IDs, not local ones")
	}
}
