package cascade

import (
	"math"
	"sort"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

const epsilon = 1e-9

// Standalone requires three of four conditions: spread expansion, depth
// collapse, a mid jump against the rolling mid sigma and an extreme
// price-move-per-volume relative to the instrument's own history.
type Standalone struct {
	cfg Config
}

func NewStandalone(cfg Config) *Standalone {
	return &Standalone{cfg: cfg}
}

func (s *Standalone) Name() string { return DetectorStandalone }

func (s *Standalone) Detect(in Input, prior models.CascadeState) (models.CascadeSignal, models.CascadeState) {
	next := nextState(in)

	if in.Mid == nil || in.Spread == nil || in.Depth5 == nil {
		return notFired(models.OutcomeMissingData, nil), next
	}
	if in.MedianSpread == nil || in.MedianDepth5 == nil {
		return notFired(models.OutcomeInsufficientHistory, nil), next
	}

	mid, spread, depth := *in.Mid, *in.Spread, *in.Depth5
	medSpread, medDepth := *in.MedianSpread, *in.MedianDepth5
	prevMid := mid
	if prior.LastMid != nil {
		prevMid = *prior.LastMid
	}
	dmid := math.Abs(mid - prevMid)

	var reasons []string
	if medSpread > 0 && spread >= s.cfg.SpreadMult*medSpread {
		reasons = append(reasons, models.CondSpreadExpansion)
	}
	if medDepth > 0 && depth <= s.cfg.DepthCollapseMult*medDepth {
		reasons = append(reasons, models.CondDepthCollapse)
	}
	if in.MidSigma > 0 && dmid >= s.cfg.JumpSigmaMult*in.MidSigma {
		reasons = append(reasons, models.CondMidJump)
	}
	if len(in.PMWVHistory) >= s.cfg.MinPMWVHistory && len(in.PMWVHistory) > 0 {
		if PMWV(dmid, in.WindowVolume) >= Quantile(in.PMWVHistory, s.cfg.PMWVPercentile) {
			reasons = append(reasons, models.CondPMWVExtreme)
		}
	}

	if len(reasons) < 3 {
		return notFired(models.OutcomeNoCascade, reasons), next
	}
	return models.CascadeSignal{
		Outcome:   models.OutcomeCascadeFired,
		Fired:     true,
		Direction: direction(mid - prevMid),
		Strength:  float64(len(reasons)) / 4,
		Details:   reasons,
	}, next
}

// PMWV is the absolute mid move per unit of volume traded in the window.
func PMWV(dmid, windowVolume float64) float64 {
	return math.Abs(dmid) / math.Max(windowVolume, epsilon)
}

// Quantile returns the q-quantile of values with linear interpolation
// between order statistics. q is clamped to [0,1]; values is not modified.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q = math.Max(0, math.Min(1, q))
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
