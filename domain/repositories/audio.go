package repositories

import (
	"context"

	"github.com/wicaksana/roleplay/domain/entities"
)

// CaptureDevice abstracts the microphone. At most one Recording is open at a
// time; opening is where the permission prompt and device acquisition happen.
type CaptureDevice interface {
	// Open acquires the device and starts delivering audio chunks.
	// Acquisition failure surfaces entities.ErrDeviceUnavailable.
	Open(ctx context.Context) (Recording, error)
}

// Recording is one live microphone session. The chunk channel is closed when
// the device stops delivering, either because Close was called or the device
// failed underneath.
type Recording interface {
	// Chunks streams raw audio data as it is captured
	Chunks() <-chan []byte
	// Format describes the clip the chunks assemble into
	Format() entities.AudioClip
	// Close releases the device; safe to call more than once
	Close() error
}

// SpeechPlayer abstracts the exclusive audio output channel. Play blocks for
// the whole playback window and returns when the segment finished or failed;
// cancelling the context stops playback immediately.
type SpeechPlayer interface {
	Play(ctx context.Context, segment entities.SpeechSegment) error
}
