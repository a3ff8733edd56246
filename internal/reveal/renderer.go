package reveal

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Granularity selects how much text each reveal step uncovers.
type Granularity string

const (
	// ByCharacter reveals the text one rune at a time
	ByCharacter Granularity = "character"
	// BySegment reveals the whole text in a single step
	BySegment Granularity = "segment"
)

const defaultInterval = 35 * time.Millisecond

// Renderer produces a lazy, time-paced reveal of a text that is already
// fully known. Each emission is the text revealed so far; the final emission
// is the full text. Cancelling the context stops further emissions and
// leaves whatever was revealed in place.
type Renderer struct {
	interval    time.Duration
	granularity Granularity
	logger      *zap.Logger
}

// New creates a renderer. A zero interval falls back to the default pace.
func New(interval time.Duration, granularity Granularity, logger *zap.Logger) *Renderer {
	if interval <= 0 {
		interval = defaultInterval
	}
	if granularity != BySegment {
		granularity = ByCharacter
	}
	return &Renderer{
		interval:    interval,
		granularity: granularity,
		logger:      logger,
	}
}

// Stream begins a reveal of text. The returned channel yields growing
// prefixes and is closed after the full text was emitted or the context was
// cancelled. Each call is an independent stream; the caller is responsible
// for cancelling a previous stream before starting the next one.
func (r *Renderer) Stream(ctx context.Context, text string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		if text == "" {
			return
		}

		if r.granularity == BySegment {
			select {
			case out <- text:
			case <-ctx.Done():
			}
			return
		}

		runes := []rune(text)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for i := 1; i <= len(runes); i++ {
			select {
			case <-ctx.Done():
				r.logger.Debug("Reveal cancelled",
					zap.Int("revealed", i-1),
					zap.Int("total", len(runes)))
				return
			case <-ticker.C:
			}

			select {
			case out <- string(runes[:i]):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
