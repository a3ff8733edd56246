package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/usecase"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    MessageType
	}{
		{"text message", `{"type":"text_message","text":"hello"}`, false, MessageTypeTextMessage},
		{"text without body", `{"type":"text_message"}`, true, ""},
		{"voice start", `{"type":"voice_start","sample_rate":48000,"encoding":"opus"}`, false, MessageTypeVoiceStart},
		{"voice start defaults", `{"type":"voice_start"}`, false, MessageTypeVoiceStart},
		{"voice start bad rate", `{"type":"voice_start","sample_rate":4000}`, true, ""},
		{"voice end", `{"type":"voice_end"}`, false, MessageTypeVoiceEnd},
		{"cancel", `{"type":"cancel"}`, false, MessageTypeCancel},
		{"playback finished", `{"type":"playback_finished"}`, false, MessageTypePlaybackFinished},
		{"missing type", `{"text":"hello"}`, true, ""},
		{"unsupported type", `{"type":"reboot"}`, true, ""},
		{"invalid json", `{not json`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseInbound([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %s", tt.payload)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInbound failed: %v", err)
			}
			if msg.Type != tt.want {
				t.Errorf("Expected type %q, got %q", tt.want, msg.Type)
			}
		})
	}
}

func TestFromStoreEvent(t *testing.T) {
	msg := entities.NewUserMessage(42, "hello")

	tests := []struct {
		name  string
		event usecase.Event
		want  MessageType
	}{
		{"state change", usecase.Event{Type: usecase.EventStateChanged, State: entities.TurnStateSending}, MessageTypeTurnState},
		{"message appended", usecase.Event{Type: usecase.EventMessageAppended, Message: &msg}, MessageTypeMessage},
		{"message updated", usecase.Event{Type: usecase.EventMessageUpdated, Message: &msg}, MessageTypeMessageUpdate},
		{"now playing", usecase.Event{Type: usecase.EventNowPlaying, NowPlaying: "hi"}, MessageTypeNowPlaying},
		{"notice", usecase.Event{Type: usecase.EventNotice, Notice: "oops"}, MessageTypeNotice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := FromStoreEvent(tt.event)
			if frame == nil {
				t.Fatal("Expected a frame")
			}
			if frame.Type != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, frame.Type)
			}
			if frame.Timestamp == "" {
				t.Error("Expected a timestamp")
			}
		})
	}

	if frame := FromStoreEvent(usecase.Event{Type: "unknown"}); frame != nil {
		t.Errorf("Expected nil for an unknown event, got %+v", frame)
	}
}

func TestFromStoreEventStateWire(t *testing.T) {
	frame := FromStoreEvent(usecase.Event{
		Type:  usecase.EventStateChanged,
		State: entities.TurnStateStreamingResponse,
	})

	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["state"] != "streaming_response" {
		t.Errorf("Expected wire state streaming_response, got %v", decoded["state"])
	}
}

// newLoopbackClient builds a client with a live send buffer but no real
// connection, enough to exercise the device and player adapters.
func newLoopbackClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		send:       make(chan WriteData, 16),
		id:         "test-client",
		lastActive: time.Now(),
		logger:     zaptest.NewLogger(t),
	}
}

func decodeControlFrame(t *testing.T, frame WriteData) *OutboundMessage {
	t.Helper()
	var decoded OutboundMessage
	if err := json.Unmarshal(frame.Payload, &decoded); err != nil {
		t.Fatalf("Bad control frame %s: %v", frame.Payload, err)
	}
	return &decoded
}

func TestConnDeviceLifecycle(t *testing.T) {
	client := newLoopbackClient(t)
	device := newConnDevice(client)

	device.setFormat(&InboundMessage{SampleRate: 44100, Encoding: "pcm", MIMEType: "audio/wav"})

	recording, err := device.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	format := recording.Format()
	if format.SampleRate != 44100 || format.Encoding != "pcm" {
		t.Errorf("Expected the announced format, got %+v", format)
	}

	select {
	case frame := <-client.send:
		if decoded := decodeControlFrame(t, frame); decoded.Type != MessageTypeListeningStart {
			t.Errorf("Expected listening_start ack, got %q", decoded.Type)
		}
	default:
		t.Fatal("Expected an ack frame")
	}

	if _, err := device.Open(context.Background()); err == nil {
		t.Error("Expected a second Open to fail while recording")
	}

	device.push([]byte{0x01, 0x02})
	if err := recording.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := recording.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	var collected [][]byte
	for chunk := range recording.Chunks() {
		collected = append(collected, chunk)
	}
	if len(collected) != 1 || len(collected[0]) != 2 {
		t.Errorf("Expected the pushed chunk, got %v", collected)
	}

	// Frames outside a session are dropped without blocking.
	device.push([]byte{0x03})

	if _, err := device.Open(context.Background()); err != nil {
		t.Errorf("Expected the device to reopen after close, got %v", err)
	}
}

func TestConnPlayerWindow(t *testing.T) {
	client := newLoopbackClient(t)
	player := &connPlayer{client: client}

	segment := entities.SpeechSegment{Text: "hi", Audio: []byte{0x52, 0x49, 0x46, 0x46}}

	done := make(chan error, 1)
	go func() {
		done <- player.Play(context.Background(), segment)
	}()

	nextFrame := func() WriteData {
		t.Helper()
		select {
		case frame := <-client.send:
			return frame
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for a frame")
			return WriteData{}
		}
	}

	start := nextFrame()
	decoded := decodeControlFrame(t, start)
	if decoded.Type != MessageTypeSpeakingStart {
		t.Fatalf("Expected speaking_start, got %q", decoded.Type)
	}
	if decoded.SegmentText != "hi" {
		t.Errorf("Expected the segment text in speaking_start, got %q", decoded.SegmentText)
	}

	audio := nextFrame()
	if audio.Type != 2 || len(audio.Payload) != 4 {
		t.Errorf("Expected a binary audio frame, got type %d with %d bytes", audio.Type, len(audio.Payload))
	}

	end := decodeControlFrame(t, nextFrame())
	if end.Type != MessageTypeSpeakingEnd {
		t.Fatalf("Expected speaking_end, got %q", end.Type)
	}

	// Play holds the window open until the browser acks.
	select {
	case err := <-done:
		t.Fatalf("Play returned before the ack: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	client.ackPlayback()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Play failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Play did not return after the ack")
	}
}

func TestConnPlayerCancelledContext(t *testing.T) {
	client := newLoopbackClient(t)
	player := &connPlayer{client: client}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- player.Play(ctx, entities.SpeechSegment{Text: "hi", Audio: []byte{0x01, 0x02, 0x03, 0x04}})
	}()

	// Drain the window frames, then cancel instead of acking.
	for i := 0; i < 3; i++ {
		select {
		case <-client.send:
		case <-time.After(time.Second):
			t.Fatal("Timed out draining frames")
		}
	}
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected Play to surface the cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Play did not return after cancel")
	}
}

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{entities.ErrTurnActive, "turn_active"},
		{entities.ErrAlreadyCapturing, "already_capturing"},
		{entities.ErrDeviceUnavailable, "device_unavailable"},
		{entities.ErrEmptyClip, "empty_clip"},
		{entities.ErrUpload, "upload_error"},
		{entities.ErrInvalidResponse, "invalid_response"},
		{entities.ErrService, "service_error"},
	}

	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
