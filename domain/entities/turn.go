package entities

// TurnState represents the phase of the single active conversational turn.
// Exactly one TurnState is current per conversation; a new submission is
// accepted only from TurnStateIdle.
type TurnState string

const (
	TurnStateIdle              TurnState = "idle"
	TurnStateAwaitingCapture   TurnState = "awaiting_capture"
	TurnStateTranscribing      TurnState = "transcribing"
	TurnStateSending           TurnState = "sending"
	TurnStateStreamingResponse TurnState = "streaming_response"
	TurnStatePlayingAudio      TurnState = "playing_audio"
)

// CanSubmit reports whether a new turn may begin from this state
func (s TurnState) CanSubmit() bool {
	return s == TurnStateIdle
}

func (s TurnState) String() string {
	return string(s)
}
