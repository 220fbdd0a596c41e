// Package emotion streams windowed capture audio to a prosody model and
// publishes coarse emotion samples onto the session bus.
package emotion

import (
	"sort"

	"github.com/vango-go/vai-wingman/pkg/core/stream"
)

// Label is one raw provider score.
type Label struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

var coarse = map[string]stream.EmotionState{
	"Admiration":   stream.EmotionPositive,
	"Amusement":    stream.EmotionPositive,
	"Contentment":  stream.EmotionPositive,
	"Excitement":   stream.EmotionPositive,
	"Joy":          stream.EmotionPositive,
	"Relief":       stream.EmotionPositive,
	"Satisfaction": stream.EmotionPositive,
	"Triumph":      stream.EmotionPositive,

	"Anger":          stream.EmotionNegative,
	"Annoyance":      stream.EmotionNegative,
	"Boredom":        stream.EmotionNegative,
	"Contempt":       stream.EmotionNegative,
	"Disappointment": stream.EmotionNegative,
	"Disgust":        stream.EmotionNegative,
	"Distress":       stream.EmotionNegative,
	"Sadness":        stream.EmotionNegative,
	"Tiredness":      stream.EmotionNegative,

	"Anxiety":       stream.EmotionUncertain,
	"Awkwardness":   stream.EmotionUncertain,
	"Confusion":     stream.EmotionUncertain,
	"Doubt":         stream.EmotionUncertain,
	"Embarrassment": stream.EmotionUncertain,
	"Fear":          stream.EmotionUncertain,

	"Concentration": stream.EmotionEngaged,
	"Contemplation": stream.EmotionEngaged,
	"Determination": stream.EmotionEngaged,
	"Interest":      stream.EmotionEngaged,
	"Realization":   stream.EmotionEngaged,

	"Surprise (positive)": stream.EmotionEngaged,

	"Calmness": stream.EmotionNeutral,
}

// Classify folds raw labels into one coarse state: the state whose labels carry
// the greatest total score. Unmapped labels count toward neutral. Ties resolve
// in favour of neutral, then in the order positive, negative, uncertain, engaged.
func Classify(labels []Label) stream.EmotionSample {
	if len(labels) == 0 {
		return stream.EmotionSample{State: stream.EmotionNeutral}
	}

	totals := make(map[stream.EmotionState]float64)
	top := labels[0]
	for _, l := range labels {
		state, ok := coarse[l.Name]
		if !ok {
			state = stream.EmotionNeutral
		}
		totals[state] += l.Score
		if l.Score > top.Score {
			top = l
		}
	}

	order := []stream.EmotionState{
		stream.EmotionNeutral,
		stream.EmotionPositive,
		stream.EmotionNegative,
		stream.EmotionUncertain,
		stream.EmotionEngaged,
	}
	best := order[0]
	for _, s := range order[1:] {
		if totals[s] > totals[best] {
			best = s
		}
	}
	return stream.EmotionSample{State: best, Score: totals[best], Top: top.Name}
}

// TopLabels returns the n highest-scoring labels, strongest first.
func TopLabels(labels []Label, n int) []Label {
	out := append([]Label(nil), labels...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
