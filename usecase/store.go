package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

// EventType identifies what changed in the store
type EventType string

const (
	// EventStateChanged fires on every turn state transition
	EventStateChanged EventType = "state_changed"
	// EventMessageAppended fires when a message joins the log
	EventMessageAppended EventType = "message_appended"
	// EventMessageUpdated fires on streaming text updates and commits
	EventMessageUpdated EventType = "message_updated"
	// EventNowPlaying fires when the playing segment changes
	EventNowPlaying EventType = "now_playing"
	// EventNotice carries a transient user-visible error notification
	EventNotice EventType = "notice"
)

// Event is one observable change. The presentation layer subscribes to the
// store's event channel and renders from these.
type Event struct {
	Type       EventType         `json:"type"`
	State      entities.TurnState `json:"state,omitempty"`
	Message    *entities.Message `json:"message,omitempty"`
	NowPlaying string            `json:"now_playing,omitempty"`
	Notice     string            `json:"notice,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Store holds the ordered message log and turn state for one active
// character conversation. All mutation goes through the orchestrator; the
// presentation layer only reads snapshots and consumes events.
type Store struct {
	logger *zap.Logger

	mu          sync.RWMutex
	characterID int64
	messages    []entities.Message
	state       entities.TurnState
	nowPlaying  string
	events      chan Event
	closed      bool
}

// NewStore creates a store for the given character, starting idle with an
// empty log.
func NewStore(characterID int64, logger *zap.Logger) *Store {
	return &Store{
		logger:      logger,
		characterID: characterID,
		state:       entities.TurnStateIdle,
		events:      make(chan Event, 100),
	}
}

// CharacterID returns the character this store belongs to
func (s *Store) CharacterID() int64 {
	return s.characterID
}

// Seed replaces the log with the character's persisted history. Called once
// when the conversation is (re)opened; a fetch failure leaves the log empty
// rather than blocking the conversation.
func (s *Store) Seed(ctx context.Context, history repositories.History) error {
	messages, err := history.Recent(ctx, s.characterID)
	if err != nil {
		s.logger.Warn("History fetch failed, starting with empty log",
			zap.Int64("characterID", s.characterID),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.messages = messages
	s.mu.Unlock()

	s.logger.Info("Conversation history loaded",
		zap.Int64("characterID", s.characterID),
		zap.Int("messages", len(messages)))
	return nil
}

// Messages returns a snapshot of the log in display order
func (s *Store) Messages() []entities.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Message(nil), s.messages...)
}

// State returns the current turn state
func (s *Store) State() entities.TurnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// NowPlaying returns the text of the segment currently holding the audio
// output, or an empty string when the sink is idle.
func (s *Store) NowPlaying() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowPlaying
}

// Events returns the channel the presentation layer subscribes to. The
// channel is closed by Close, which ends the subscriber's range loop.
func (s *Store) Events() <-chan Event {
	return s.events
}

// Close ends the event stream. Mutations after Close still apply to the log
// and state; their events are dropped. Safe to call twice.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

// beginTurn atomically claims the turn slot. Only Idle accepts a new turn.
func (s *Store) beginTurn(next entities.TurnState) error {
	s.mu.Lock()
	if !s.state.CanSubmit() {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("Turn rejected, another turn is active", zap.String("state", state.String()))
		return entities.ErrTurnActive
	}
	s.state = next
	s.mu.Unlock()

	s.emit(Event{Type: EventStateChanged, State: next})
	return nil
}

// setState transitions the turn state unconditionally
func (s *Store) setState(state entities.TurnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()

	s.emit(Event{Type: EventStateChanged, State: state})
}

// appendMessage adds a message to the end of the log
func (s *Store) appendMessage(msg entities.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageAppended, Message: &msg})
}

// setMessageText writes the revealed prefix into a streaming message. Writes
// to committed messages are refused; they are immutable.
func (s *Store) setMessageText(id string, text string) {
	s.mu.Lock()
	msg, ok := s.locked(id)
	if !ok || msg.Status != entities.MessageStatusStreaming {
		s.mu.Unlock()
		return
	}
	msg.Text = text
	snapshot := *msg
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageUpdated, Message: &snapshot})
}

// commitMessage finalizes a streaming message and, when the backend assigned
// a persisted identifier, adopts it in place of the optimistic one.
func (s *Store) commitMessage(id string, serverID string) {
	s.mu.Lock()
	msg, ok := s.locked(id)
	if !ok {
		s.mu.Unlock()
		return
	}
	msg.Commit()
	msg.AdoptServerID(serverID)
	snapshot := *msg
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageUpdated, Message: &snapshot})
}

// adoptServerID swaps a persisted identifier into an already committed
// message without touching its text or position.
func (s *Store) adoptServerID(id string, serverID string) {
	s.commitMessage(id, serverID)
}

// setNowPlaying records which segment holds the audio output
func (s *Store) setNowPlaying(text string) {
	s.mu.Lock()
	if s.nowPlaying == text {
		s.mu.Unlock()
		return
	}
	s.nowPlaying = text
	s.mu.Unlock()

	s.emit(Event{Type: EventNowPlaying, NowPlaying: text})
}

// notice surfaces a transient user-visible notification
func (s *Store) notice(text string) {
	s.emit(Event{Type: EventNotice, Notice: text})
}

// locked finds a message by ID. Callers must hold s.mu.
func (s *Store) locked(id string) (*entities.Message, bool) {
	for i := range s.messages {
		if s.messages[i].ID == id {
			return &s.messages[i], true
		}
	}
	return nil, false
}

// emit publishes an event without blocking. The lock serializes emission
// against Close so a late turn goroutine never writes a closed channel.
func (s *Store) emit(event Event) {
	event.Timestamp = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("Event channel full, dropping event", zap.String("type", string(event.Type)))
	}
}
