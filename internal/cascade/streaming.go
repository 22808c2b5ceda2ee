package cascade

import (
	"math"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// Streaming fires when at least two of spread expansion, depth collapse and
// a spread-normalised mid jump hold. This is the detector wired into the
// live loop.
type Streaming struct {
	cfg Config
}

func NewStreaming(cfg Config) *Streaming {
	return &Streaming{cfg: cfg}
}

func (s *Streaming) Name() string { return DetectorStreaming }

func (s *Streaming) Detect(in Input, prior models.CascadeState) (models.CascadeSignal, models.CascadeState) {
	next := nextState(in)

	if in.Mid == nil || in.Spread == nil || in.Depth5 == nil {
		return notFired(models.OutcomeMissingData, nil), next
	}
	if in.MedianSpread == nil || in.MedianDepth5 == nil {
		return notFired(models.OutcomeInsufficientHistory, nil), next
	}

	mid, spread, depth := *in.Mid, *in.Spread, *in.Depth5
	medSpread, medDepth := *in.MedianSpread, *in.MedianDepth5

	var reasons []string
	if medSpread > 0 && spread >= s.cfg.SpreadMult*medSpread {
		reasons = append(reasons, models.CondSpreadExpansion)
	}
	if medDepth > 0 && depth <= s.cfg.DepthCollapseMult*medDepth {
		reasons = append(reasons, models.CondDepthCollapse)
	}
	// the jump is scaled by the current spread, not a rolling volatility
	if prior.LastMid != nil && spread > 0 && math.Abs(mid-*prior.LastMid) >= s.cfg.SigmaK*spread {
		reasons = append(reasons, models.CondMidJump)
	}

	if len(reasons) < 2 {
		return notFired(models.OutcomeNoCascade, reasons), next
	}

	sig := models.CascadeSignal{
		Outcome:  models.OutcomeCascadeFired,
		Fired:    true,
		Strength: math.Min(float64(len(reasons)), 3) / 3,
		Details:  reasons,
	}
	if prior.LastMid != nil {
		sig.Direction = direction(mid - *prior.LastMid)
	}
	return sig, next
}
