// Package backend is the HTTP adapter for the remote conversation service.
// One client covers the three collaborator interfaces the turn machinery
// consumes: sending turns, uploading voice clips, and fetching history.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/adapters/tts"
	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

const (
	defaultBaseURL     = "http://localhost:8082"
	defaultHTTPTimeout = 30 * time.Second
)

// Config holds configuration for the backend client.
// Required fields:
// - UserID: The identifier the backend scopes conversations by
// Optional fields with defaults:
// - BaseURL: The backend base URL (default: "http://localhost:8082")
type Config struct {
	BaseURL string
	UserID  string
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("BACKEND_BASE_URL"),
		UserID:  os.Getenv("BACKEND_USER_ID"),
	}
}

// ValidateConfig validates the backend client configuration
func ValidateConfig(config Config) error {
	if config.UserID == "" {
		return fmt.Errorf("backend user ID is required")
	}
	return nil
}

// Client talks to the conversation backend over HTTP.
type Client struct {
	baseURL string
	userID  string
	client  *http.Client
	logger  *zap.Logger
}

// Ensure Client implements the collaborator interfaces
var (
	_ repositories.ConversationService = (*Client)(nil)
	_ repositories.Transcriber         = (*Client)(nil)
	_ repositories.History             = (*Client)(nil)
)

// NewClient creates a backend client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
		logger.Info("Using default backend base URL", zap.String("baseURL", baseURL))
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  config.UserID,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		logger:  logger,
	}, nil
}

// chatMessage is the backend's persisted message shape
type chatMessage struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"userId"`
	CharacterID   int64     `json:"characterId"`
	Message       string    `json:"message"`
	IsUserMessage bool      `json:"isUserMessage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// sendRequest is the payload for POST /api/chat/send
type sendRequest struct {
	UserID        string `json:"userId"`
	CharacterID   int64  `json:"characterId"`
	Message       string `json:"message"`
	IsUserMessage bool   `json:"isUserMessage"`
}

// sendResponse is the reply for POST /api/chat/send. AudioData carries the
// synthesized speech for the whole reply, base64 encoded, when the backend
// ran synthesis eagerly.
type sendResponse struct {
	Success     bool          `json:"success"`
	UserMessage *chatMessage  `json:"userMessage"`
	AIMessages  []chatMessage `json:"aiMessages"`
	AudioData   string        `json:"audioData"`
	Error       string        `json:"error"`
}

// voiceResponse is the reply for the folded voice endpoint
type voiceResponse struct {
	Success         bool         `json:"success"`
	TranscribedText string       `json:"transcribedText"`
	UserMessage     *chatMessage `json:"userMessage"`
	AIMessage       *chatMessage `json:"aiMessage"`
	AudioData       string       `json:"audioData"`
	Error           string       `json:"error"`
}

// Send submits one user turn to POST /api/chat/send and maps the reply onto
// assistant segments. Eagerly synthesized audio is attached to the first
// segment; the backend returns one blob per reply.
func (c *Client) Send(ctx context.Context, characterID int64, text string) (*repositories.TurnResponse, error) {
	payload := sendRequest{
		UserID:        c.userID,
		CharacterID:   characterID,
		Message:       text,
		IsUserMessage: true,
	}

	var reply sendResponse
	if err := c.postJSON(ctx, "/api/chat/send", payload, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		return nil, fmt.Errorf("%w: %s", entities.ErrService, orUnknown(reply.Error))
	}
	if len(reply.AIMessages) == 0 {
		return nil, fmt.Errorf("%w: reply carried no assistant messages", entities.ErrInvalidResponse)
	}

	resp := &repositories.TurnResponse{}
	if reply.UserMessage != nil {
		resp.UserMessageID = strconv.FormatInt(reply.UserMessage.ID, 10)
	}
	for _, msg := range reply.AIMessages {
		resp.Segments = append(resp.Segments, entities.SpeechSegment{
			Text:    msg.Message,
			Emotion: entities.ClassifyEmotion(msg.Message),
		})
		resp.MessageIDs = append(resp.MessageIDs, strconv.FormatInt(msg.ID, 10))
	}
	if audio := c.decodeAudio(reply.AudioData); audio != nil {
		resp.Segments[0].Audio = audio
	}

	return resp, nil
}

// Transcribe uploads the clip to the folded voice endpoint, which runs
// recognition, the assistant reply, and synthesis in one round trip.
func (c *Client) Transcribe(ctx context.Context, clip entities.AudioClip, characterID int64) (*repositories.TranscriptionResult, error) {
	if clip.Empty() {
		return nil, entities.ErrEmptyClip
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "clip"+extensionFor(clip.MIMEType))
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.WriteField("characterId", strconv.FormatInt(characterID, 10)); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/voice-chat/send-voice", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUpload, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: voice upload returned status %d", entities.ErrService, httpResp.StatusCode)
	}

	var reply voiceResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidResponse, err)
	}
	if !reply.Success {
		return nil, fmt.Errorf("%w: %s", entities.ErrService, orUnknown(reply.Error))
	}
	if strings.TrimSpace(reply.TranscribedText) == "" {
		return nil, fmt.Errorf("%w: no text was recognized", entities.ErrService)
	}

	result := &repositories.TranscriptionResult{Text: reply.TranscribedText}
	if reply.AIMessage != nil {
		segment := entities.SpeechSegment{
			Text:    reply.AIMessage.Message,
			Emotion: entities.ClassifyEmotion(reply.AIMessage.Message),
		}
		segment.Audio = c.decodeAudio(reply.AudioData)
		result.Segments = []entities.SpeechSegment{segment}
		result.MessageIDs = []string{strconv.FormatInt(reply.AIMessage.ID, 10)}
	}

	c.logger.Info("Voice turn completed",
		zap.Int64("characterID", characterID),
		zap.Int("clipBytes", len(clip.Data)),
		zap.Bool("folded", result.Folded()))
	return result, nil
}

// Recent fetches the persisted log from GET /api/chat/history/{characterId}
func (c *Client) Recent(ctx context.Context, characterID int64) ([]entities.Message, error) {
	url := fmt.Sprintf("%s/api/chat/history/%d", c.baseURL, characterID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrService, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: history returned status %d", entities.ErrService, httpResp.StatusCode)
	}

	var wire []chatMessage
	if err := json.NewDecoder(httpResp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidResponse, err)
	}

	messages := make([]entities.Message, 0, len(wire))
	for _, msg := range wire {
		role := entities.RoleAssistant
		if msg.IsUserMessage {
			role = entities.RoleUser
		}
		messages = append(messages, entities.Message{
			ID:          strconv.FormatInt(msg.ID, 10),
			CharacterID: msg.CharacterID,
			Role:        role,
			Text:        msg.Message,
			Status:      entities.MessageStatusCommitted,
			CreatedAt:   msg.CreatedAt,
		})
	}
	return messages, nil
}

// postJSON posts payload and decodes the reply into out
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", entities.ErrService, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(httpResp.Body)
		c.logger.Error("Backend returned error",
			zap.String("path", path),
			zap.Int("statusCode", httpResp.StatusCode),
			zap.String("response", string(errorBody)))
		return fmt.Errorf("%w: backend returned status %d", entities.ErrService, httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrInvalidResponse, err)
	}
	return nil
}

// decodeAudio turns the backend's base64 audio blob into bytes, dropping
// payloads that do not sniff as audio. A bad blob degrades the reply to
// text only instead of failing the turn.
func (c *Client) decodeAudio(encoded string) []byte {
	if encoded == "" {
		return nil
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		c.logger.Warn("Reply audio is not valid base64, ignoring", zap.Error(err))
		return nil
	}
	if !tts.LooksLikeAudio(audio) {
		c.logger.Warn("Reply audio payload is not recognizable audio, ignoring", zap.Int("size", len(audio)))
		return nil
	}
	return audio
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "mp4"):
		return ".m4a"
	default:
		return ".wav"
	}
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown backend error"
	}
	return msg
}
