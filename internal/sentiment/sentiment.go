// Package sentiment labels review text as positive, negative or neutral from its VADER compound
// polarity.
package sentiment

import (
	"strings"
	"sync"

	"github.com/jonreiter/govader"
)

// Labels.
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// Threshold is the absolute polarity at or beyond which a text is labelled positive or negative.
const Threshold = 0.05

// analyzer loads the VADER lexicon once. PolarityScores only reads it, so it is shared.
var analyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// Polarity returns the compound polarity of text in [-1, 1]. Blank text has polarity 0.
func Polarity(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	return analyzer().PolarityScores(text).Compound
}

// Label returns Positive, Negative or Neutral for text.
func Label(text string) string {
	return labelFor(Polarity(text))
}

func labelFor(p float64) string {
	switch {
	case p >= Threshold:
		return Positive
	case p <= -Threshold:
		return Negative
	default:
		return Neutral
	}
}
