package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
	"github.com/wicaksana/roleplay/internal/capture"
	"github.com/wicaksana/roleplay/internal/playback"
	"github.com/wicaksana/roleplay/internal/reveal"
)

// DefaultCallTimeout bounds every collaborator network call
const DefaultCallTimeout = 30 * time.Second

// FallbackReplyText is appended as a local assistant message when a turn
// fails after the user message was already logged.
const FallbackReplyText = "Sorry, I'm having trouble responding right now. Please try again."

// Config carries the orchestrator's tunables.
type Config struct {
	// VoiceProfile selects the synthesis voice for lazy per segment
	// synthesis; empty uses the collaborator default
	VoiceProfile string
	// SynthesizeReplies requests audio for segments that arrived without
	// it. Synthesis failure degrades the segment to text only.
	SynthesizeReplies bool
	// CallTimeout bounds each collaborator call; zero uses the default
	CallTimeout time.Duration
}

// Orchestrator drives one conversational turn at a time through the state
// machine: capture, transcription, send, streamed reveal, and sequential
// playback. All log and state mutation goes through the owned Store.
//
// Submit methods block until the turn settles back to idle, so callers run
// them from their own goroutine and watch the store's event channel.
type Orchestrator struct {
	store        *Store
	capture      *capture.Controller
	conversation repositories.ConversationService
	transcriber  repositories.Transcriber
	synthesizer  repositories.SpeechSynthesizer
	renderer     *reveal.Renderer
	queue        *playback.Queue
	logger       *zap.Logger

	voiceProfile      string
	synthesizeReplies bool
	callTimeout       time.Duration

	// turnCtx spans one whole turn; Cancel aborts it and every
	// collaborator call and reveal derived from it
	mu         sync.Mutex
	turnCtx    context.Context
	turnCancel context.CancelFunc
}

// NewOrchestrator wires the turn machinery together. The playback queue is
// created here so its now playing notifications feed the store.
func NewOrchestrator(
	store *Store,
	captureController *capture.Controller,
	conversation repositories.ConversationService,
	transcriber repositories.Transcriber,
	synthesizer repositories.SpeechSynthesizer,
	renderer *reveal.Renderer,
	player repositories.SpeechPlayer,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	o := &Orchestrator{
		store:             store,
		capture:           captureController,
		conversation:      conversation,
		transcriber:       transcriber,
		synthesizer:       synthesizer,
		renderer:          renderer,
		logger:            logger,
		voiceProfile:      cfg.VoiceProfile,
		synthesizeReplies: cfg.SynthesizeReplies,
		callTimeout:       cfg.CallTimeout,
	}
	o.queue = playback.New(player, func(segment *entities.SpeechSegment) {
		if segment == nil {
			store.setNowPlaying("")
			return
		}
		store.setNowPlaying(segment.Text)
	}, logger)
	return o
}

// Store returns the conversation store the orchestrator mutates
func (o *Orchestrator) Store() *Store {
	return o.store
}

// claimTurn reserves the turn slot and arms the turn context everything in
// the turn runs under.
func (o *Orchestrator) claimTurn(ctx context.Context, state entities.TurnState) (context.Context, error) {
	if err := o.store.beginTurn(state); err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.turnCtx = turnCtx
	o.turnCancel = cancel
	o.mu.Unlock()
	return turnCtx, nil
}

// turnContext returns the context of the turn in flight, or fallback when
// no turn is active.
func (o *Orchestrator) turnContext(fallback context.Context) context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.turnCtx != nil {
		return o.turnCtx
	}
	return fallback
}

// endTurn releases the turn context after the turn settled
func (o *Orchestrator) endTurn() {
	o.mu.Lock()
	if o.turnCancel != nil {
		o.turnCancel()
		o.turnCancel = nil
		o.turnCtx = nil
	}
	o.mu.Unlock()
}

// SubmitText runs one typed turn. It returns entities.ErrTurnActive when a
// turn is already in flight; a blank submission is ignored.
func (o *Orchestrator) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	turnCtx, err := o.claimTurn(ctx, entities.TurnStateSending)
	if err != nil {
		return err
	}

	user := entities.NewUserMessage(o.store.CharacterID(), text)
	o.store.appendMessage(user)

	o.send(turnCtx, user.ID, text)
	return nil
}

// BeginVoice claims the turn slot and starts recording. The microphone
// failure path returns the store to idle with a transient notice.
func (o *Orchestrator) BeginVoice(ctx context.Context) error {
	turnCtx, err := o.claimTurn(ctx, entities.TurnStateAwaitingCapture)
	if err != nil {
		return err
	}

	if err := o.capture.Start(turnCtx); err != nil {
		o.store.notice("Could not access the microphone")
		o.endTurn()
		o.store.setState(entities.TurnStateIdle)
		return err
	}
	return nil
}

// FinishVoice stops the recording and runs the rest of the voice turn:
// transcription, optimistic user message, send, reveal, playback. An empty
// clip is rejected before any network call. When no capture session is live
// the call is a no-op.
func (o *Orchestrator) FinishVoice(ctx context.Context) error {
	turnCtx := o.turnContext(ctx)

	clip, ok := o.capture.Stop()
	if !ok {
		if o.store.State() == entities.TurnStateAwaitingCapture {
			o.endTurn()
			o.store.setState(entities.TurnStateIdle)
		}
		return nil
	}

	o.store.setState(entities.TurnStateTranscribing)

	if clip.Empty() {
		o.store.notice("Nothing was recorded")
		o.endTurn()
		o.store.setState(entities.TurnStateIdle)
		return entities.ErrEmptyClip
	}

	callCtx, cancel := context.WithTimeout(turnCtx, o.callTimeout)
	result, err := o.transcriber.Transcribe(callCtx, clip, o.store.CharacterID())
	cancel()
	if err != nil {
		if turnCtx.Err() != nil {
			// Cancel already settled the turn.
			return nil
		}
		o.logger.Warn("Transcription failed", zap.Error(err))
		o.failTurn()
		return err
	}

	user := entities.NewUserMessage(o.store.CharacterID(), result.Text)
	o.store.appendMessage(user)

	if result.Folded() {
		// The backend already produced the assistant reply in the
		// same call; skip the separate send.
		o.ingest(turnCtx, result.Segments, result.MessageIDs)
		return nil
	}

	o.send(turnCtx, user.ID, result.Text)
	return nil
}

// Cancel aborts whatever phase the turn is in: the microphone is released,
// the active reveal stops, and playback is cleared. Safe to call from any
// state, including idle, and safe to call twice.
func (o *Orchestrator) Cancel() {
	o.capture.Abort()
	o.endTurn()
	o.queue.Clear()
	o.store.setState(entities.TurnStateIdle)
}

// Close cancels any active turn, shuts the playback queue down, and ends
// the store's event stream.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.queue.Close()
	o.store.Close()
}

// send submits the user text and ingests the response. ctx is the turn
// context; a cancelled turn returns without touching state, which Cancel
// already settled.
func (o *Orchestrator) send(ctx context.Context, userMessageID string, text string) {
	o.store.setState(entities.TurnStateSending)

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	resp, err := o.conversation.Send(callCtx, o.store.CharacterID(), text)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Warn("Conversation service call failed", zap.Error(err))
		o.failTurn()
		return
	}
	if ctx.Err() != nil {
		return
	}

	o.store.adoptServerID(userMessageID, resp.UserMessageID)
	o.ingest(ctx, resp.Segments, resp.MessageIDs)
}

// ingest reveals and plays the assistant segments in arrival order. For each
// segment the log append and the audio enqueue happen together before the
// next segment is touched, so log order always matches playback order.
func (o *Orchestrator) ingest(ctx context.Context, segments []entities.SpeechSegment, messageIDs []string) {
	if len(segments) == 0 {
		o.logger.Warn("Response carried no segments")
		o.failTurn()
		return
	}

	o.store.setState(entities.TurnStateStreamingResponse)

	audioQueued := false
	for i, segment := range segments {
		if ctx.Err() != nil {
			return
		}

		emotion := segment.Emotion
		if emotion == "" {
			emotion = entities.EmotionNeutral
		}
		msg := entities.NewAssistantMessage(o.store.CharacterID(), emotion)
		o.store.appendMessage(msg)

		if o.synthesizeReplies && !segment.HasAudio() && o.synthesizer != nil {
			segment.Audio = o.synthesize(ctx, segment)
		}
		if ctx.Err() != nil {
			// Cancel landed during synthesis; the empty message stays
			// committed empty rather than revealing after the fact.
			o.store.commitMessage(msg.ID, "")
			return
		}
		if segment.HasAudio() {
			o.queue.Enqueue(segment)
			audioQueued = true
		}

		serverID := ""
		if i < len(messageIDs) {
			serverID = messageIDs[i]
		}

		interrupted := o.reveal(ctx, msg.ID, segment.Text)
		o.store.commitMessage(msg.ID, serverID)
		if interrupted {
			return
		}
	}

	if audioQueued {
		o.store.setState(entities.TurnStatePlayingAudio)
		o.queue.Wait()
		if ctx.Err() != nil {
			return
		}
	}
	o.store.setState(entities.TurnStateIdle)
	o.endTurn()
}

// reveal streams text into the message until the full text was emitted or
// the turn was cancelled. It reports whether the turn was interrupted.
func (o *Orchestrator) reveal(ctx context.Context, messageID string, text string) bool {
	for partial := range o.renderer.Stream(ctx, text) {
		o.store.setMessageText(messageID, partial)
	}
	return ctx.Err() != nil
}

// synthesize requests audio for a segment that arrived without it. Failure
// degrades the segment to text only instead of failing the turn.
func (o *Orchestrator) synthesize(ctx context.Context, segment entities.SpeechSegment) []byte {
	profile := segment.VoiceProfile
	if profile == "" {
		profile = o.voiceProfile
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	audio, err := o.synthesizer.Synthesize(callCtx, segment.Text, profile)
	if err != nil {
		o.logger.Warn("Synthesis failed, segment plays as text only",
			zap.String("text", segment.Text),
			zap.Error(err))
		return nil
	}
	return audio
}

// failTurn appends the local fallback assistant message and settles the
// turn back to idle so the conversation stays resubmittable.
func (o *Orchestrator) failTurn() {
	o.store.appendMessage(entities.NewAssistantError(o.store.CharacterID(), FallbackReplyText))
	o.store.notice(FallbackReplyText)
	o.endTurn()
	o.store.setState(entities.TurnStateIdle)
}
