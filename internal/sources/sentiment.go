package sources

import "github.com/jonreiter/govader"

// Scorer is the sentiment boundary: article text in, compound score in
// [-1, 1] out.
type Scorer interface {
	Score(text string) (float64, error)
}

type vaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer returns the VADER-backed scorer used in production.
func NewVaderScorer() Scorer {
	return &vaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *vaderScorer) Score(text string) (float64, error) {
	return v.analyzer.PolarityScores(text).Compound, nil
}
