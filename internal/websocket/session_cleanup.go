package websocket

import (
	"time"

	"go.uber.org/zap"
)

const (
	reapInterval = 5 * time.Minute
	idleDeadline = 30 * time.Minute
)

// ConnectionReaper closes connections that went silent without a proper
// close frame, so their orchestrators and capture sessions get torn down.
type ConnectionReaper struct {
	hub      *Hub
	logger   *zap.Logger
	stopChan chan struct{}
}

// NewConnectionReaper creates a reaper for the hub's clients
func NewConnectionReaper(hub *Hub, logger *zap.Logger) *ConnectionReaper {
	return &ConnectionReaper{
		hub:      hub,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background reaping process
func (r *ConnectionReaper) Start() {
	go r.reapLoop()
	r.logger.Info("Connection reaper started")
}

// Stop gracefully stops the reaper
func (r *ConnectionReaper) Stop() {
	close(r.stopChan)
	r.logger.Info("Connection reaper stopped")
}

func (r *ConnectionReaper) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

// reap closes every client idle past the deadline. Closing the connection
// makes its readPump exit, which runs the normal teardown path.
func (r *ConnectionReaper) reap() {
	cutoff := time.Now().Add(-idleDeadline)

	r.hub.mu.RLock()
	var stale []*Client
	for _, client := range r.hub.clients {
		if client.idleSince().Before(cutoff) {
			stale = append(stale, client)
		}
	}
	r.hub.mu.RUnlock()

	for _, client := range stale {
		r.logger.Info("Closing idle connection",
			zap.String("clientID", client.id),
			zap.Time("lastActive", client.idleSince()))
		client.conn.Close()
	}

	if len(stale) > 0 {
		r.logger.Info("Reap completed", zap.Int("closed", len(stale)))
	}
}
