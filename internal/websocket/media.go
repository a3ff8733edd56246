package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/domain/entities"
	"github.com/wicaksana/roleplay/domain/repositories"
)

// chunkBuffer bounds how far capture can run ahead of the collector
const chunkBuffer = 64

// connDevice adapts the websocket connection into a capture device: the
// browser owns the physical microphone, voice_start announces the clip
// format, and binary frames are the recorded chunks.
type connDevice struct {
	client *Client

	mu     sync.Mutex
	active *connRecording
	format entities.AudioClip
}

var _ repositories.CaptureDevice = (*connDevice)(nil)

func newConnDevice(client *Client) *connDevice {
	return &connDevice{
		client: client,
		format: entities.AudioClip{MIMEType: "audio/webm", SampleRate: 48000, Encoding: "opus"},
	}
}

// setFormat records the clip format announced by voice_start
func (d *connDevice) setFormat(msg *InboundMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if msg.SampleRate > 0 {
		d.format.SampleRate = msg.SampleRate
	}
	if msg.Encoding != "" {
		d.format.Encoding = msg.Encoding
	}
	if msg.MIMEType != "" {
		d.format.MIMEType = msg.MIMEType
	}
}

// Open starts one recording session and acks it to the browser
func (d *connDevice) Open(ctx context.Context) (repositories.Recording, error) {
	d.mu.Lock()
	if d.active != nil {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: recording already open", entities.ErrDeviceUnavailable)
	}
	recording := &connRecording{
		device: d,
		chunks: make(chan []byte, chunkBuffer),
		format: d.format,
	}
	d.active = recording
	d.mu.Unlock()

	d.client.enqueueJSON(NewOutbound(MessageTypeListeningStart))
	return recording, nil
}

// push delivers one binary frame to the live recording. Frames arriving
// outside a session are dropped.
func (d *connDevice) push(data []byte) {
	d.mu.Lock()
	recording := d.active
	d.mu.Unlock()

	if recording == nil {
		d.client.logger.Warn("Audio frame outside a capture session, dropping",
			zap.Int("size", len(data)))
		return
	}

	select {
	case recording.chunks <- data:
	default:
		d.client.logger.Warn("Capture buffer full, dropping audio frame",
			zap.Int("size", len(data)))
	}
}

// release detaches a finished recording
func (d *connDevice) release(recording *connRecording) {
	d.mu.Lock()
	if d.active == recording {
		d.active = nil
	}
	d.mu.Unlock()
}

// connRecording is one live capture session over the connection.
type connRecording struct {
	device *connDevice
	chunks chan []byte
	format entities.AudioClip
	once   sync.Once
}

var _ repositories.Recording = (*connRecording)(nil)

func (r *connRecording) Chunks() <-chan []byte { return r.chunks }

func (r *connRecording) Format() entities.AudioClip { return r.format }

// Close detaches the session from the connection and ends the chunk stream.
// Safe to call more than once.
func (r *connRecording) Close() error {
	r.once.Do(func() {
		r.device.release(r)
		close(r.chunks)
	})
	return nil
}

// connPlayer adapts the connection into the speech output channel. One
// segment's playback window spans speaking_start, the binary audio frame,
// speaking_end, and the browser's playback_finished ack. Play blocks for the
// whole window, which is what keeps segments from overlapping at the
// speaker.
type connPlayer struct {
	client *Client
}

var _ repositories.SpeechPlayer = (*connPlayer)(nil)

// Play ships one segment and waits for the browser to finish playing it
func (p *connPlayer) Play(ctx context.Context, segment entities.SpeechSegment) error {
	ack := p.client.armPlaybackAck()

	start := NewOutbound(MessageTypeSpeakingStart)
	start.SegmentText = segment.Text
	p.client.enqueueJSON(start)

	if !p.client.enqueueBinary(segment.Audio) {
		p.client.enqueueJSON(NewOutbound(MessageTypeSpeakingEnd))
		return fmt.Errorf("%w: audio frame could not be delivered", entities.ErrService)
	}

	p.client.enqueueJSON(NewOutbound(MessageTypeSpeakingEnd))

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playbackAckTimeout):
		return fmt.Errorf("%w: no playback ack received", entities.ErrService)
	}
}
