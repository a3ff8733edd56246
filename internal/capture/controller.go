// Package capture owns the microphone. Only one recording session can be
// live at a time; a second Start is rejected without disturbing the first.
package capture

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

type state int

const (
	stateIdle state = iota
	stateRequesting
	stateRecording
)

// Controller guards exclusive access to a capture device and accumulates
// recorded chunks into a clip.
type Controller struct {
	device repositories.CaptureDevice
	logger *zap.Logger

	mu        sync.Mutex
	state     state
	recording repositories.Recording
	chunks    [][]byte
	done      chan struct{}
	// abort marks a Stop or Abort that landed while the device was still
	// being acquired; Start honors it when Open returns
	abort bool
}

// New creates a controller for device.
func New(device repositories.CaptureDevice, logger *zap.Logger) *Controller {
	return &Controller{
		device: device,
		logger: logger,
	}
}

// Recording reports whether a capture session is currently live or being
// acquired.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateIdle
}

// Start acquires the device and begins buffering audio. It returns
// entities.ErrAlreadyCapturing when a session is already live, and
// entities.ErrDeviceUnavailable when the device cannot be acquired. A failed
// Start leaves the controller idle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return entities.ErrAlreadyCapturing
	}
	c.state = stateRequesting
	c.mu.Unlock()

	// The device open can block on a user permission prompt, so it runs
	// outside the lock.
	recording, err := c.device.Open(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = stateIdle
		c.abort = false
		c.mu.Unlock()
		c.logger.Warn("Capture device unavailable", zap.Error(err))
		return entities.ErrDeviceUnavailable
	}

	done := make(chan struct{})

	c.mu.Lock()
	if c.abort {
		// Stop or Abort arrived while the device was being acquired.
		c.abort = false
		c.state = stateIdle
		c.mu.Unlock()
		if err := recording.Close(); err != nil {
			c.logger.Warn("Closing capture device failed", zap.Error(err))
		}
		c.logger.Debug("Capture aborted during device acquisition")
		return nil
	}
	c.state = stateRecording
	c.recording = recording
	c.chunks = nil
	c.done = done
	c.mu.Unlock()

	go c.collect(recording, done)
	return nil
}

// collect buffers chunks until the recording stream closes.
func (c *Controller) collect(recording repositories.Recording, done chan struct{}) {
	defer close(done)
	for chunk := range recording.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		c.mu.Lock()
		c.chunks = append(c.chunks, buf)
		c.mu.Unlock()
	}
}

// Stop ends the live session and returns the accumulated clip. The second
// return is false when no session was live, which callers treat as a no-op.
func (c *Controller) Stop() (entities.AudioClip, bool) {
	c.mu.Lock()
	if c.state == stateRequesting {
		// The device is mid-acquisition; Start releases it and returns
		// to idle when Open comes back.
		c.abort = true
		c.mu.Unlock()
		return entities.AudioClip{}, false
	}
	if c.state != stateRecording {
		c.mu.Unlock()
		return entities.AudioClip{}, false
	}
	recording := c.recording
	done := c.done
	c.mu.Unlock()

	if err := recording.Close(); err != nil {
		c.logger.Warn("Closing capture device failed", zap.Error(err))
	}
	// Wait for the collector to drain the tail of the stream.
	<-done

	c.mu.Lock()
	clip := recording.Format()
	clip.Data = flatten(c.chunks)
	c.chunks = nil
	c.recording = nil
	c.done = nil
	c.state = stateIdle
	c.mu.Unlock()

	return clip, true
}

// Abort ends the live session and discards everything recorded so far.
func (c *Controller) Abort() {
	if _, ok := c.Stop(); ok {
		c.logger.Debug("Capture aborted, clip discarded")
	}
}

func flatten(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		return nil
	}
	buf := make([]byte, 0, total)
	for _, chunk := range chunks {
		buf = append(buf, chunk...)
	}
	return buf
}
