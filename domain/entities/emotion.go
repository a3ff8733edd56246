package entities

import "strings"

// emotionKeywords maps each affect tag to the phrases that signal it. Both
// English and Chinese forms are listed because replies arrive in either
// language depending on the character.
var emotionKeywords = map[Emotion][]string{
	EmotionSad: {
		"sad", "unhappy", "lonely", "heartbroken", "miserable", "down",
		"难过", "伤心", "不开心", "孤单", "沮丧", "失落", "郁闷", "忧伤",
	},
	EmotionTired: {
		"tired", "exhausted", "sleepy", "weary", "worn out",
		"累", "疲惫", "疲劳", "困倦", "乏力",
	},
	EmotionAnxious: {
		"anxious", "worried", "nervous", "uneasy", "afraid", "panic",
		"焦虑", "担心", "紧张", "不安", "忧虑", "恐慌",
	},
	EmotionHappy: {
		"happy", "glad", "delighted", "wonderful", "excited", "joy",
		"开心", "高兴", "愉快", "喜悦", "兴奋", "欢乐", "欣喜",
	},
	EmotionAngry: {
		"angry", "furious", "mad", "annoyed", "outraged",
		"生气", "愤怒", "恼火", "暴怒",
	},
}

// emotionWeights rank the affects so distress outscores a stray cheerful
// word when both appear.
var emotionWeights = map[Emotion]int{
	EmotionAngry:   4,
	EmotionSad:     3,
	EmotionAnxious: 3,
	EmotionTired:   2,
	EmotionHappy:   1,
}

// classifyOrder fixes the tie-break: heavier affects are considered first.
var classifyOrder = []Emotion{
	EmotionAngry, EmotionSad, EmotionAnxious, EmotionTired, EmotionHappy,
}

// ClassifyEmotion scores a reply's wording against the keyword lists and
// returns the dominant affect. No hit means neutral.
func ClassifyEmotion(text string) Emotion {
	if text == "" {
		return EmotionNeutral
	}
	lower := strings.ToLower(text)

	best := EmotionNeutral
	bestScore := 0
	for _, emotion := range classifyOrder {
		score := 0
		for _, keyword := range emotionKeywords[emotion] {
			if strings.Contains(lower, keyword) {
				score += emotionWeights[emotion]
			}
		}
		if score > bestScore {
			best = emotion
			bestScore = score
		}
	}
	return best
}
