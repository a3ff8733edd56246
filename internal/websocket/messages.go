package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/usecase"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeTextMessage      MessageType = "text_message"
	MessageTypeVoiceStart       MessageType = "voice_start"
	MessageTypeVoiceEnd         MessageType = "voice_end"
	MessageTypeCancel           MessageType = "cancel"
	MessageTypePlaybackFinished MessageType = "playback_finished"
)

// Server to client message types
const (
	MessageTypeTurnState      MessageType = "turn_state"
	MessageTypeMessage        MessageType = "message"
	MessageTypeMessageUpdate  MessageType = "message_update"
	MessageTypeNowPlaying     MessageType = "now_playing"
	MessageTypeNotice         MessageType = "notice"
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeSpeakingStart  MessageType = "speaking_start"
	MessageTypeSpeakingEnd    MessageType = "speaking_end"
	MessageTypeError          MessageType = "error"
)

// InboundMessage is a control frame from the browser. Voice audio itself
// arrives as binary frames between voice_start and voice_end.
type InboundMessage struct {
	Type MessageType `json:"type"`
	// Text carries the typed message for text_message
	Text string `json:"text,omitempty"`
	// SampleRate and Encoding describe the clip for voice_start
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
}

// ParseInbound validates a control frame
func ParseInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch msg.Type {
	case MessageTypeTextMessage:
		if msg.Text == "" {
			return nil, fmt.Errorf("text is required for text_message")
		}
	case MessageTypeVoiceStart:
		if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
			return nil, fmt.Errorf("sample_rate must be between 8000 and 48000")
		}
	case MessageTypeVoiceEnd, MessageTypeCancel, MessageTypePlaybackFinished:
		// No payload beyond the type.
	case "":
		return nil, fmt.Errorf("message missing type field")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}

	return &msg, nil
}

// OutboundMessage is a server frame pushed to the browser.
type OutboundMessage struct {
	Type      MessageType       `json:"type"`
	Timestamp string            `json:"timestamp"`
	State     string            `json:"state,omitempty"`
	Message   *entities.Message `json:"message,omitempty"`
	// SegmentText identifies the segment for speaking_start and now_playing
	SegmentText string `json:"segment_text,omitempty"`
	Notice      string `json:"notice,omitempty"`
	Code        string `json:"error_code,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// NewOutbound creates an outbound frame with the timestamp filled in
func NewOutbound(msgType MessageType) *OutboundMessage {
	return &OutboundMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error frame
func CreateErrorMessage(code, detail string) *OutboundMessage {
	msg := NewOutbound(MessageTypeError)
	msg.Code = code
	msg.Detail = detail
	return msg
}

// FromStoreEvent maps a store event onto the wire frame the browser renders
func FromStoreEvent(event usecase.Event) *OutboundMessage {
	switch event.Type {
	case usecase.EventStateChanged:
		msg := NewOutbound(MessageTypeTurnState)
		msg.State = event.State.String()
		return msg
	case usecase.EventMessageAppended:
		msg := NewOutbound(MessageTypeMessage)
		msg.Message = event.Message
		return msg
	case usecase.EventMessageUpdated:
		msg := NewOutbound(MessageTypeMessageUpdate)
		msg.Message = event.Message
		return msg
	case usecase.EventNowPlaying:
		msg := NewOutbound(MessageTypeNowPlaying)
		msg.SegmentText = event.NowPlaying
		return msg
	case usecase.EventNotice:
		msg := NewOutbound(MessageTypeNotice)
		msg.Notice = event.Notice
		return msg
	default:
		return nil
	}
}
