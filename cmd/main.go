package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/adapters/backend"
	"github.com/wicaksana/roleplay/adapters/llm"
	"github.com/wicaksana/roleplay/adapters/stt"
	"github.com/wicaksana/roleplay/adapters/tts"
	"github.com/wicaksana/roleplay/internal/api"
	"github.com/wicaksana/roleplay/internal/reveal"
	"github.com/wicaksana/roleplay/internal/websocket"
	"github.com/wicaksana/roleplay/usecase"
)

const defaultRevealIntervalMs = 30

func main() {
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	characters := llm.NewPersonaDirectory()

	deps, cleanup, err := buildDeps(characters, logger)
	if err != nil {
		logger.Fatal("Failed to initialize adapters", zap.Error(err))
	}
	defer cleanup()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	hub := websocket.NewHub(deps, logger)
	go hub.Run()

	reaper := websocket.NewConnectionReaper(hub, logger)
	reaper.Start()
	defer reaper.Stop()

	api.InitRoutes(e, hub, characters, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildDeps assembles the connection collaborators. CHAT_MODE selects the
// wiring:
//
//	backend  talk to the companion HTTP backend, which owns the LLM, the
//	         transcription, the history, and the eager reply audio
//	direct   call Gemini, Google Speech, and Eleven Labs from this process
//	mock     canned replies and transcripts, no outbound calls
func buildDeps(characters *llm.PersonaDirectory, logger *zap.Logger) (websocket.Deps, func(), error) {
	mode := os.Getenv("CHAT_MODE")
	if mode == "" {
		mode = "backend"
	}

	deps := websocket.Deps{
		Orchestrator: usecase.Config{
			CallTimeout: usecase.DefaultCallTimeout,
		},
		RevealInterval:    revealIntervalFromEnv(logger),
		RevealGranularity: reveal.ByCharacter,
	}
	cleanup := func() {}

	switch mode {
	case "backend":
		client, err := backend.NewClient(backend.NewConfigFromEnv(), logger)
		if err != nil {
			return websocket.Deps{}, nil, err
		}
		deps.Conversation = client
		deps.Transcriber = client
		deps.History = client

	case "direct":
		conversation, err := llm.NewGeminiConversation(llm.NewGeminiConfigFromEnv(), characters, logger)
		if err != nil {
			return websocket.Deps{}, nil, err
		}
		deps.Conversation = conversation

		transcriber, err := stt.NewGoogleTranscriber(context.Background(), stt.NewGoogleConfigFromEnv(), logger)
		if err != nil {
			return websocket.Deps{}, nil, err
		}
		deps.Transcriber = transcriber
		cleanup = func() {
			if err := transcriber.Close(); err != nil {
				logger.Warn("Failed to close transcriber", zap.Error(err))
			}
		}

		synthesizer, err := tts.NewElevenLabsSynthesizer(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return websocket.Deps{}, nil, err
		}
		deps.Synthesizer = synthesizer
		deps.Orchestrator.SynthesizeReplies = true

	case "mock":
		deps.Conversation = llm.NewMockConversation(characters, logger)
		deps.Transcriber = stt.NewMockTranscriber("Tell me about your day.", logger)

	default:
		logger.Fatal("Unknown CHAT_MODE", zap.String("mode", mode))
	}

	return deps, cleanup, nil
}

func revealIntervalFromEnv(logger *zap.Logger) time.Duration {
	raw := os.Getenv("REVEAL_INTERVAL_MS")
	if raw == "" {
		return defaultRevealIntervalMs * time.Millisecond
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		logger.Warn("Invalid REVEAL_INTERVAL_MS, using default",
			zap.String("value", raw),
			zap.Int("defaultMs", defaultRevealIntervalMs))
		return defaultRevealIntervalMs * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
