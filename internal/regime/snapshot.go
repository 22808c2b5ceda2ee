package regime

import "math"

// SnapshotScorer scores from the current snapshot alone.
type SnapshotScorer struct{}

func (SnapshotScorer) Name() string { return ScorerSnapshot }

func (SnapshotScorer) Score(in Inputs) float64 {
	return BotScore(in.MidMoveAbs, in.Spread, in.Depth5, in.Vol24h)
}

// BotScore combines four bounded sub-scores with weights 0.30/0.25/0.25/0.20:
//
//   - PMWV: |Δmid| per unit of 24h volume, log-compressed. High price churn
//     relative to traded volume reads as bot activity.
//   - spread tightness: 1/(1+100·spread); 0.5 without a positive spread.
//   - depth/volume: log-compressed depth5 over 24h volume; 0.3 without depth.
//   - spread stability: bucketed on the current spread; 0.5 without spread.
//
// Without positive volume the score is a neutral 0.5.
func BotScore(midMoveAbs float64, spread, depth5 *float64, vol24h float64) float64 {
	if !(vol24h > 0) {
		return 0.5
	}
	vol := math.Max(vol24h, epsilon)

	pmwv := midMoveAbs / vol
	pmwvScore := clamp01(math.Log1p(pmwv*10000) / math.Log(10001))

	spreadScore := 0.5
	if spread != nil && *spread > 0 {
		spreadScore = 1 / (1 + *spread*100)
	}

	depthScore := 0.3
	if depth5 != nil && *depth5 > 0 {
		depthScore = math.Min(1, math.Log1p(*depth5/vol)/math.Log(11))
	}

	stabilityScore := 0.5
	if spread != nil {
		switch s := *spread; {
		case s < 0.002:
			stabilityScore = 1.0
		case s < 0.01:
			stabilityScore = 0.7
		case s < 0.05:
			stabilityScore = 0.4
		default:
			stabilityScore = 0.2
		}
	}

	score := 0.30*pmwvScore +
		0.25*spreadScore +
		0.25*depthScore +
		0.20*stabilityScore
	return clamp01(score)
}
