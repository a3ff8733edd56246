package llm

import "strings"

// maxSegmentRunes keeps segments short enough for responsive synthesis;
// longer sentences are still kept whole.
const maxSegmentRunes = 120

// SplitReply breaks a reply into sentence-bounded segments so the reveal and
// playback can start before the full reply is rendered. Sentences are packed
// into a segment until it would exceed the target length; a single oversized
// sentence stays intact.
func SplitReply(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return []string{text}
	}

	var segments []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && len([]rune(current.String()))+len([]rune(sentence)) > maxSegmentRunes {
			segments = append(segments, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		segments = append(segments, strings.TrimSpace(current.String()))
	}
	return segments
}

// splitSentences cuts on terminal punctuation, keeping the punctuation with
// its sentence. Both ASCII and CJK terminators count.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？', '…':
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
