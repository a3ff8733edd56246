package reveal

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestStreamRevealsFullText(t *testing.T) {
	r := New(time.Millisecond, ByCharacter, zaptest.NewLogger(t))

	var last string
	count := 0
	for partial := range r.Stream(context.Background(), "hello") {
		if !strings.HasPrefix("hello", partial) {
			t.Errorf("Partial %q is not a prefix of the full text", partial)
		}
		if len(partial) <= len(last) {
			t.Errorf("Partials must grow monotonically, got %q after %q", partial, last)
		}
		last = partial
		count++
	}

	if last != "hello" {
		t.Errorf("Expected final emission to be the full text, got %q", last)
	}
	if count != 5 {
		t.Errorf("Expected 5 emissions for 5 runes, got %d", count)
	}
}

func TestStreamHandlesMultibyteRunes(t *testing.T) {
	r := New(time.Millisecond, ByCharacter, zaptest.NewLogger(t))

	text := "héllo wörld"
	var last string
	for partial := range r.Stream(context.Background(), text) {
		last = partial
	}

	if last != text {
		t.Errorf("Expected %q, got %q", text, last)
	}
}

func TestStreamBySegment(t *testing.T) {
	r := New(time.Millisecond, BySegment, zaptest.NewLogger(t))

	var emissions []string
	for partial := range r.Stream(context.Background(), "all at once") {
		emissions = append(emissions, partial)
	}

	if len(emissions) != 1 {
		t.Fatalf("Expected a single emission, got %d", len(emissions))
	}
	if emissions[0] != "all at once" {
		t.Errorf("Expected full text, got %q", emissions[0])
	}
}

func TestStreamCancellationStopsEmissions(t *testing.T) {
	r := New(time.Millisecond, ByCharacter, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	stream := r.Stream(ctx, "a longer text that will be cut off")

	var last string
	for partial := range stream {
		last = partial
		if len(last) == 5 {
			cancel()
		}
	}

	// The channel closed after cancellation; whatever was revealed stays.
	if len(last) < 5 {
		t.Errorf("Expected at least 5 revealed runes, got %q", last)
	}
	if len(last) > 7 {
		t.Errorf("Expected emissions to stop promptly after cancel, got %q", last)
	}

	// Cancelling again has no additional effect.
	cancel()
}

func TestStreamEmptyText(t *testing.T) {
	r := New(time.Millisecond, ByCharacter, zaptest.NewLogger(t))

	count := 0
	for range r.Stream(context.Background(), "") {
		count++
	}

	if count != 0 {
		t.Errorf("Expected no emissions for empty text, got %d", count)
	}
}
