// Package regime scores how machine-driven an instrument's current activity
// looks and buckets the score into BOT, MIXED or HUMAN.
package regime

import (
	"fmt"
	"math"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

const epsilon = 1e-9

// Scorer variant names accepted by NewScorer.
const (
	ScorerSnapshot   = "snapshot"
	ScorerPercentile = "percentile"
)

// Inputs carries everything any scorer variant may look at. The previous
// cycle's depth is only used by percentile features.
type Inputs struct {
	MidMoveAbs float64
	Spread     *float64
	Depth5     *float64
	DepthBid   *float64
	DepthAsk   *float64
	Vol24h     float64
	PrevDepth5 *float64
}

// Scorer maps inputs to a bot-likelihood score in [0,1].
type Scorer interface {
	Name() string
	Score(in Inputs) float64
}

// Observer is implemented by scorers that learn from the observations they
// score. The orchestrator calls Observe after Score.
type Observer interface {
	Observe(in Inputs)
}

// Thresholds are the inclusive bucket edges.
type Thresholds struct {
	Bot   float64
	Human float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Bot: 0.65, Human: 0.40}
}

// Classify buckets score: >= Bot is BOT, <= Human is HUMAN, otherwise MIXED.
func (t Thresholds) Classify(score float64) models.Regime {
	if score >= t.Bot {
		return models.RegimeBot
	}
	if score <= t.Human {
		return models.RegimeHuman
	}
	return models.RegimeMixed
}

// Classify buckets score with the default thresholds.
func Classify(score float64) models.Regime {
	return DefaultThresholds().Classify(score)
}

// NewScorer returns the named variant. refCapacity bounds the reference
// population of the percentile scorer.
func NewScorer(name string, refCapacity int) (Scorer, error) {
	switch name {
	case ScorerSnapshot, "":
		return SnapshotScorer{}, nil
	case ScorerPercentile:
		return NewPercentileScorer(DefaultWeights(), NewReference(refCapacity)), nil
	default:
		return nil, fmt.Errorf("unknown regime scorer %q", name)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
