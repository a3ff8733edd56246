package entities

// SpeechSegment is one discrete chunk of an assistant response, optionally
// paired with synthesized audio. Segments arrive in order and are revealed
// and played in the same order.
type SpeechSegment struct {
	Text         string  `json:"text"`
	VoiceProfile string  `json:"voice_profile,omitempty"`
	Emotion      Emotion `json:"emotion,omitempty"`
	Audio        []byte  `json:"-"`
}

// HasAudio reports whether the segment carries pre-synthesized audio
func (s SpeechSegment) HasAudio() bool {
	return len(s.Audio) > 0
}

// AudioClip is a finalized recording produced by one capture session.
type AudioClip struct {
	Data       []byte `json:"-"`
	MIMEType   string `json:"mime_type"`
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
}

// Empty reports whether the clip contains no audio data at all
func (c AudioClip) Empty() bool {
	return len(c.Data) == 0
}
