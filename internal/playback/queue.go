// Package playback serializes speech output through a single audio sink.
// Segments are played strictly in enqueue order; at most one segment holds
// the sink at any time.
package playback

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

// NowPlayingFunc is notified when the currently playing segment changes.
// A nil segment means the sink went idle.
type NowPlayingFunc func(segment *entities.SpeechSegment)

// Queue owns the playback device. Enqueued segments are drained by a single
// worker so two segments can never overlap on the sink.
type Queue struct {
	player       repositories.SpeechPlayer
	onNowPlaying NowPlayingFunc
	logger       *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []entities.SpeechSegment
	playing bool
	cancel  context.CancelFunc
	closed  bool
}

// New creates a queue draining into player. onNowPlaying may be nil.
func New(player repositories.SpeechPlayer, onNowPlaying NowPlayingFunc, logger *zap.Logger) *Queue {
	q := &Queue{
		player:       player,
		onNowPlaying: onNowPlaying,
		logger:       logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a segment and starts the drain worker if the sink is idle.
// Segments without audio are dropped; the caller renders their text instead.
func (q *Queue) Enqueue(segment entities.SpeechSegment) {
	if !segment.HasAudio() {
		q.logger.Debug("Skipping segment without audio", zap.String("text", segment.Text))
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}

	q.pending = append(q.pending, segment)
	if !q.playing {
		q.playing = true
		go q.drain()
	}
}

// drain plays pending segments one at a time until the queue empties.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.closed {
			q.playing = false
			q.cancel = nil
			q.cond.Broadcast()
			q.mu.Unlock()
			if q.onNowPlaying != nil {
				q.onNowPlaying(nil)
			}
			return
		}
		segment := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		if q.onNowPlaying != nil {
			q.onNowPlaying(&segment)
		}

		err := q.player.Play(ctx, segment)
		cancel()
		if err != nil {
			// A failed segment is skipped so the rest of the reply
			// still plays.
			q.logger.Warn("Segment playback failed",
				zap.String("text", segment.Text),
				zap.Error(err),
			)
		}
	}
}

// Clear stops the current segment and drops everything pending. The queue
// stays usable for the next turn.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the sink is idle and nothing is pending.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.playing {
		q.cond.Wait()
	}
}

// Close clears the queue and rejects further segments.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
