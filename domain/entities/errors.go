package entities

import "errors"

// Failure taxonomy for the turn machinery. Collaborator adapters wrap these
// with fmt.Errorf("...: %w", err) so callers can branch with errors.Is.
var (
	// ErrDeviceUnavailable means the microphone could not be acquired,
	// either because permission was denied or no device exists.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrAlreadyCapturing means a capture session is already active;
	// the existing session is left untouched.
	ErrAlreadyCapturing = errors.New("capture already in progress")

	// ErrEmptyClip means a recording finished with zero bytes; it is
	// rejected before any network call.
	ErrEmptyClip = errors.New("recorded clip is empty")

	// ErrUpload means the clip could not reach the transcription service.
	ErrUpload = errors.New("clip upload failed")

	// ErrService means a collaborator returned a non-success response or
	// the call exceeded its deadline.
	ErrService = errors.New("conversation service error")

	// ErrInvalidResponse means a payload was malformed, for example
	// synthesis returned bytes not recognizable as audio.
	ErrInvalidResponse = errors.New("invalid collaborator response")

	// ErrTurnActive means a submission arrived while a turn was already
	// in flight; only Idle accepts new turns.
	ErrTurnActive = errors.New("a turn is already active")
)
