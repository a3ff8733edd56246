// Package llm is the direct Gemini adapter for the conversation service. It
// keeps a per character chat history in process and renders replies in the
// character's persona, for running without the HTTP backend.
package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTemperature    = 0.8
	defaultTopP           = 0.95
	defaultTopK           = 40
	defaultMaxTokens      = 512
	defaultTimeoutSeconds = 30
	maxAttempts           = 3
)

// fallbacks are used when Gemini fails after retries; the turn still gets a
// reply instead of an error.
var fallbacks = []string{
	"Hmm, give me a moment. What were you saying?",
	"Sorry, I drifted off for a second. Could you say that again?",
	"I did not quite catch that. Tell me once more?",
}

// GeminiConfig holds configuration for the Gemini conversation adapter.
// Required fields:
// - APIKey: Your Google AI API key
// Optional fields with defaults:
// - Model: The model to use (default: "gemini-2.0-flash")
// - Temperature: Sampling temperature between 0 and 1 (default: 0.8)
// - TopP: Nucleus sampling value between 0 and 1 (default: 0.95)
// - TopK: Top-k sampling value (default: 40)
// - MaxOutputTokens: Reply length cap (default: 512)
// - TimeoutSeconds: Per-call timeout (default: 30)
// - SegmentReplies: Split replies into sentence segments (default: off)
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int
	TimeoutSeconds  int
	SegmentReplies  bool
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}

	if config.Temperature != 0 && (config.Temperature < 0 || config.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}

	if config.TopP != 0 && (config.TopP < 0 || config.TopP > 1) {
		return fmt.Errorf("topP must be between 0 and 1, got %f", config.TopP)
	}

	if config.TopK < 0 {
		return fmt.Errorf("topK must be positive, got %f", config.TopK)
	}

	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	return nil
}

// NewGeminiConfigFromEnv creates a new GeminiConfig from environment variables
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}

	if timeoutStr := os.Getenv("GEMINI_TIMEOUT_SECONDS"); timeoutStr != "" {
		if timeout, err := strconv.Atoi(timeoutStr); err == nil && timeout > 0 {
			config.TimeoutSeconds = timeout
		}
	}

	if segmentStr := os.Getenv("GEMINI_SEGMENT_REPLIES"); segmentStr != "" {
		if segment, err := strconv.ParseBool(segmentStr); err == nil {
			config.SegmentReplies = segment
		}
	}

	return config
}

// GeminiConversation implements ConversationService against the Gemini API.
// Each character keeps its own chat history for the process lifetime.
type GeminiConversation struct {
	client          *genai.Client
	logger          *zap.Logger
	personas        *PersonaDirectory
	model           string
	temperature     float32
	topP            float32
	topK            float32
	maxOutputTokens int
	timeout         time.Duration
	segmentReplies  bool

	mu        sync.Mutex
	histories map[int64][]*genai.Content
}

// Ensure GeminiConversation implements the ConversationService interface
var _ repositories.ConversationService = (*GeminiConversation)(nil)

// NewGeminiConversation creates a new Gemini conversation adapter
func NewGeminiConversation(config GeminiConfig, personas *PersonaDirectory, logger *zap.Logger) (*GeminiConversation, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}

	temperature := config.Temperature
	if temperature == 0 {
		temperature = float32(defaultTemperature)
	}

	topP := config.TopP
	if topP == 0 {
		topP = float32(defaultTopP)
	}

	topK := config.TopK
	if topK == 0 {
		topK = float32(defaultTopK)
	}

	maxOutputTokens := config.MaxOutputTokens
	if maxOutputTokens == 0 {
		maxOutputTokens = defaultMaxTokens
	}

	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}

	return &GeminiConversation{
		client:          client,
		logger:          logger,
		personas:        personas,
		model:           model,
		temperature:     temperature,
		topP:            topP,
		topK:            topK,
		maxOutputTokens: maxOutputTokens,
		timeout:         time.Duration(timeoutSeconds) * time.Second,
		segmentReplies:  config.SegmentReplies,
		histories:       make(map[int64][]*genai.Content),
	}, nil
}

// Send generates the character's reply to one user turn. Gemini failures
// after retries degrade to a fallback reply rather than failing the turn.
func (g *GeminiConversation) Send(ctx context.Context, characterID int64, text string) (*repositories.TurnResponse, error) {
	persona, err := g.personas.Lookup(characterID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	history := append([]*genai.Content(nil), g.histories[characterID]...)
	g.mu.Unlock()

	var contents []*genai.Content
	contents = append(contents, genai.NewContentFromText(persona.SystemPrompt(), genai.RoleUser))
	contents = append(contents, history...)
	userContent := genai.NewContentFromText(text, genai.RoleUser)
	contents = append(contents, userContent)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr(g.topP),
		TopK:            genai.Ptr(g.topK),
		MaxOutputTokens: int32(g.maxOutputTokens),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	for attempt := 0; attempt < maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", entities.ErrService, ctx.Err())
			}
		}
	}

	var replyText string
	if err != nil {
		g.logger.Error("Gemini call failed after retries, using fallback", zap.Error(err))
		replyText = fallbackReply()
	} else {
		replyText = collectText(response)
		if replyText == "" {
			g.logger.Warn("No content generated, using fallback")
			replyText = fallbackReply()
		}
	}

	g.mu.Lock()
	g.histories[characterID] = append(g.histories[characterID],
		userContent,
		genai.NewContentFromText(replyText, genai.RoleModel))
	historyLength := len(g.histories[characterID])
	g.mu.Unlock()

	g.logger.Info("Reply generated",
		zap.Int64("characterID", characterID),
		zap.String("character", persona.Name),
		zap.Int("replyLength", len(replyText)),
		zap.Int("historyLength", historyLength))

	segments := []string{replyText}
	if g.segmentReplies {
		segments = SplitReply(replyText)
	}

	resp := &repositories.TurnResponse{}
	for _, segment := range segments {
		resp.Segments = append(resp.Segments, entities.SpeechSegment{
			Text:         segment,
			VoiceProfile: persona.VoiceProfile,
			Emotion:      entities.ClassifyEmotion(segment),
		})
	}
	return resp, nil
}

// Reset drops the in-process history for a character
func (g *GeminiConversation) Reset(characterID int64) {
	g.mu.Lock()
	delete(g.histories, characterID)
	g.mu.Unlock()
}

func collectText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}

func fallbackReply() string {
	index := int(time.Now().UnixNano()) % len(fallbacks)
	return fallbacks[index]
}
