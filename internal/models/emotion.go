package models

import "strings"

// Emotion is a facial-expression label. The zero value means no label.
type Emotion string

const (
	EmotionNone     Emotion = ""
	EmotionHappy    Emotion = "Happy"
	EmotionSad      Emotion = "Sad"
	EmotionStressed Emotion = "Stressed"
	EmotionAngry    Emotion = "Angry"
	EmotionNeutral  Emotion = "Neutral"
	EmotionTired    Emotion = "Tired"
)

// Emotions lists every label the analyzer may produce, in prompt order.
var Emotions = []Emotion{
	EmotionHappy,
	EmotionSad,
	EmotionStressed,
	EmotionAngry,
	EmotionNeutral,
	EmotionTired,
}

// ParseEmotion maps free model output onto the closed label set.
// Quotes, periods and case are ignored; anything else yields EmotionNone.
func ParseEmotion(raw string) Emotion {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '.', '*', '`':
			return -1
		}
		return r
	}, raw)
	cleaned = strings.TrimSpace(cleaned)

	for _, e := range Emotions {
		if strings.EqualFold(cleaned, string(e)) {
			return e
		}
	}
	return EmotionNone
}

func (e Emotion) Valid() bool {
	return e != EmotionNone && ParseEmotion(string(e)) == e
}
