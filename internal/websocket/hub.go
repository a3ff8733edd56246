package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
	"github.com/wicaksana/roleplay/internal/capture"
	"github.com/wicaksana/roleplay/internal/reveal"
	"github.com/wicaksana/roleplay/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	// Time to wait for the browser's playback_finished ack before a
	// segment's playback window is considered settled anyway.
	playbackAckTimeout = 90 * time.Second

	defaultCharacterID = int64(-1)
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Deps are the collaborators each connection's turn machinery is built from.
// One connection gets its own store and orchestrator; the collaborators are
// shared.
type Deps struct {
	Conversation repositories.ConversationService
	Transcriber  repositories.Transcriber
	Synthesizer  repositories.SpeechSynthesizer
	// History seeds the store on connect when present
	History repositories.History

	Orchestrator      usecase.Config
	RevealInterval    time.Duration
	RevealGranularity reveal.Granularity
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	deps   Deps
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps Deps, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deps:       deps,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientID", client.id),
				zap.Int64("characterID", client.characterID))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("clientID", client.id))
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is one browser connection. It owns a full turn stack: the
// connection doubles as the microphone (binary frames in) and the speaker
// (speaking_start, binary audio, speaking_end frames out).
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; writePump
	// exits on done instead, so late turn goroutines can still enqueue
	// harmlessly.
	send chan WriteData

	// done is closed when the connection tears down
	done chan struct{}

	id          string
	characterID int64

	store        *usecase.Store
	orchestrator *usecase.Orchestrator
	device       *connDevice

	// playbackAck resolves the pending playback window, if any
	ackMu       sync.Mutex
	playbackAck chan struct{}

	// lastActive is read by the connection reaper
	activeMu   sync.Mutex
	lastActive time.Time

	logger *zap.Logger
}

// Serve upgrades the request and runs a connection until it closes. The
// character is selected with the character_id query parameter.
func Serve(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	characterID := defaultCharacterID
	if raw := c.QueryParam("character_id"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			characterID = parsed
		}
	}

	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan WriteData, 256),
		done:        make(chan struct{}),
		id:          uuid.NewString(),
		characterID: characterID,
		lastActive:  time.Now(),
	}
	client.logger = logger.With(zap.String("clientID", client.id))

	deps := hub.deps
	store := usecase.NewStore(characterID, client.logger)
	client.store = store
	client.device = newConnDevice(client)

	renderer := reveal.New(deps.RevealInterval, deps.RevealGranularity, client.logger)
	client.orchestrator = usecase.NewOrchestrator(
		store,
		capture.New(client.device, client.logger),
		deps.Conversation,
		deps.Transcriber,
		deps.Synthesizer,
		renderer,
		&connPlayer{client: client},
		deps.Orchestrator,
		client.logger,
	)

	if deps.History != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		// A failed seed already logs; the conversation starts empty.
		_ = store.Seed(ctx, deps.History)
		cancel()
		for _, msg := range store.Messages() {
			snapshot := msg
			frame := NewOutbound(MessageTypeMessage)
			frame.Message = &snapshot
			client.enqueueJSON(frame)
		}
	}

	hub.register <- client

	go client.writePump()
	go client.eventsPump()
	go client.readPump()

	return nil
}

// readPump pumps frames from the connection into the turn machinery.
func (c *Client) readPump() {
	defer func() {
		// Closing the orchestrator also closes the store's event
		// channel, which ends eventsPump.
		c.orchestrator.Close()
		close(c.done)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		c.touch()

		switch messageType {
		case websocket.TextMessage:
			c.processControlFrame(message)
		case websocket.BinaryMessage:
			c.device.push(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound frames to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// eventsPump forwards store events to the browser as wire frames.
func (c *Client) eventsPump() {
	for event := range c.store.Events() {
		frame := FromStoreEvent(event)
		if frame == nil {
			continue
		}
		c.enqueueJSON(frame)
	}
}

// processControlFrame dispatches one parsed control frame
func (c *Client) processControlFrame(message []byte) {
	msg, err := ParseInbound(message)
	if err != nil {
		c.logger.Warn("Rejected control frame", zap.Error(err))
		c.enqueueJSON(CreateErrorMessage("bad_request", err.Error()))
		return
	}

	switch msg.Type {
	case MessageTypeTextMessage:
		text := msg.Text
		go func() {
			if err := c.orchestrator.SubmitText(context.Background(), text); err != nil {
				c.enqueueJSON(CreateErrorMessage(errorCode(err), err.Error()))
			}
		}()

	case MessageTypeVoiceStart:
		c.device.setFormat(msg)
		// Runs inline so the capture session is registered before the
		// read loop delivers the first binary audio frame; Open on a
		// connection-backed device never blocks.
		if err := c.orchestrator.BeginVoice(context.Background()); err != nil {
			c.enqueueJSON(CreateErrorMessage(errorCode(err), err.Error()))
		}

	case MessageTypeVoiceEnd:
		go func() {
			if err := c.orchestrator.FinishVoice(context.Background()); err != nil {
				c.enqueueJSON(CreateErrorMessage(errorCode(err), err.Error()))
			}
		}()

	case MessageTypeCancel:
		c.orchestrator.Cancel()

	case MessageTypePlaybackFinished:
		c.ackPlayback()
	}
}

// enqueueJSON queues a control frame, dropping it if the client cannot keep
// up. Dropping a status frame is preferable to stalling the turn machinery.
func (c *Client) enqueueJSON(msg *OutboundMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping frame", zap.String("type", string(msg.Type)))
	}
}

// enqueueBinary queues an audio frame. Audio frames block rather than drop;
// a hole in the audio stream is worse than backpressure.
func (c *Client) enqueueBinary(payload []byte) bool {
	select {
	case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: payload}:
		return true
	case <-time.After(writeWait):
		c.logger.Warn("Timed out queueing audio frame")
		return false
	}
}

func (c *Client) touch() {
	c.activeMu.Lock()
	c.lastActive = time.Now()
	c.activeMu.Unlock()
}

func (c *Client) idleSince() time.Time {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return c.lastActive
}

// armPlaybackAck prepares the ack channel for one playback window
func (c *Client) armPlaybackAck() chan struct{} {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	c.playbackAck = make(chan struct{})
	return c.playbackAck
}

// ackPlayback resolves the pending playback window, if any
func (c *Client) ackPlayback() {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	if c.playbackAck != nil {
		close(c.playbackAck)
		c.playbackAck = nil
	}
}

// errorCode maps failure taxonomy errors onto wire codes
func errorCode(err error) string {
	switch {
	case errors.Is(err, entities.ErrTurnActive):
		return "turn_active"
	case errors.Is(err, entities.ErrAlreadyCapturing):
		return "already_capturing"
	case errors.Is(err, entities.ErrDeviceUnavailable):
		return "device_unavailable"
	case errors.Is(err, entities.ErrEmptyClip):
		return "empty_clip"
	case errors.Is(err, entities.ErrUpload):
		return "upload_error"
	case errors.Is(err, entities.ErrInvalidResponse):
		return "invalid_response"
	default:
		return "service_error"
	}
}
