package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/joho/godotenv"
	"github.com/wicaksana/roleplay/adapters/tts"
)

// Smoke test for the Eleven Labs synthesizer: converts one line of text and
// saves the MP3 next to the binary. Requires ELEVEN_LABS_API_KEY.
func main() {
	godotenv.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if os.Getenv("ELEVEN_LABS_API_KEY") == "" {
		logger.Fatal("ELEVEN_LABS_API_KEY environment variable is required")
	}

	config := tts.NewElevenLabsConfigFromEnv()
	synthesizer, err := tts.NewElevenLabsSynthesizer(config, logger)
	if err != nil {
		logger.Fatal("Failed to create synthesizer", zap.Error(err))
	}

	text := "Hello! This is a demonstration of the Eleven Labs speech synthesis integration."
	if len(os.Args) > 1 {
		text = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Converting text to speech", zap.String("text", text))

	audio, err := synthesizer.Synthesize(ctx, text, os.Getenv("ELEVEN_LABS_VOICE_ID"))
	if err != nil {
		logger.Fatal("Failed to convert text to speech", zap.Error(err))
	}

	outputFile := "example_output.mp3"
	if err := os.WriteFile(outputFile, audio, 0o644); err != nil {
		logger.Fatal("Failed to write output file", zap.Error(err))
	}

	logger.Info("Audio saved",
		zap.Int("bytes", len(audio)),
		zap.String("outputFile", outputFile))

	if os.Getenv("NO_AUTOPLAY") != "true" {
		if err := playAudioFile(outputFile, logger); err != nil {
			logger.Warn("Failed to play audio automatically", zap.Error(err))
			fmt.Printf("Play it manually, e.g. ffplay -nodisp -autoexit %s\n", outputFile)
		}
	}
}

// playAudioFile tries the common command line players in order
func playAudioFile(filename string, logger *zap.Logger) error {
	players := []struct {
		command string
		args    []string
	}{
		{"ffplay", []string{"-nodisp", "-autoexit"}},
		{"mpg123", nil},
		{"afplay", nil},
		{"play", nil},
	}

	for _, player := range players {
		if _, err := exec.LookPath(player.command); err != nil {
			continue
		}
		args := append(player.args, filename)
		logger.Info("Attempting to play audio", zap.String("player", player.command))
		if err := exec.Command(player.command, args...).Run(); err == nil {
			return nil
		}
	}

	return fmt.Errorf("no suitable audio player found")
}
