// Package screening gates instruments for a strategy family on liquidity,
// volume and exit risk.
package screening

import (
	"math"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

const epsilon = 1e-9

// Reason is the screening outcome code. The first failing check wins.
type Reason string

const (
	ReasonOK              Reason = "OK"
	ReasonNoClobBook      Reason = "NO_CLOB_BOOK"
	ReasonDepthTooLow     Reason = "DEPTH_TOO_LOW"
	ReasonVol24hMissing   Reason = "VOL24H_MISSING"
	ReasonVol24hTooLow    Reason = "VOL24H_TOO_LOW"
	ReasonExitRiskTooHigh Reason = "EXIT_RISK_TOO_HIGH"
)

// FamilyThresholds are expressed as multiples of the target position size S,
// except the exit-risk levels which are ratios of S to 24h volume.
type FamilyThresholds struct {
	DepthMinMult float64
	VolMinMult   float64
	ExitRiskMax  float64
	ExitRiskWarn float64
}

type Config struct {
	Equity        float64
	TargetPosFrac float64
	MaxPosFrac    float64
	A             FamilyThresholds
	H             FamilyThresholds
}

func DefaultConfig() Config {
	return Config{
		Equity:        10_000,
		TargetPosFrac: 0.01,
		MaxPosFrac:    0.05,
		A: FamilyThresholds{
			DepthMinMult: 8,
			VolMinMult:   20,
			ExitRiskMax:  0.10,
			ExitRiskWarn: 0.05,
		},
		H: FamilyThresholds{
			DepthMinMult: 3,
			VolMinMult:   10,
			ExitRiskMax:  0.20,
			ExitRiskWarn: 0.10,
		},
	}
}

// Result reports the decision together with the thresholds that produced it.
type Result struct {
	OK           bool          `json:"ok"`
	Reason       Reason        `json:"reason"`
	Family       models.Family `json:"family"`
	S            float64       `json:"s"`
	ExitRisk     *float64      `json:"exit_risk,omitempty"`
	Depth5Min    float64       `json:"depth5_min"`
	Vol24hMin    float64       `json:"vol24h_min"`
	ExitRiskWarn bool          `json:"exit_risk_warn"`
}

// Engine is stateless; it only holds its configuration.
type Engine struct {
	cfg Config
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// PositionSize is the target position size S.
func (e *Engine) PositionSize() float64 {
	return e.cfg.Equity * e.cfg.TargetPosFrac
}

// MaxPositionSize is the per-market cap.
func (e *Engine) MaxPositionSize() float64 {
	return e.cfg.Equity * e.cfg.MaxPosFrac
}

// Thresholds returns the profile for family. Anything other than A uses H.
func (e *Engine) Thresholds(family models.Family) FamilyThresholds {
	if family == models.FamilyA {
		return e.cfg.A
	}
	return e.cfg.H
}

// Screen evaluates the failure ladder for family. It never fails: missing
// inputs are reported through the reason code.
func (e *Engine) Screen(family models.Family, vol24h, depth5 *float64, okBook bool) Result {
	s := e.PositionSize()
	th := e.Thresholds(family)

	res := Result{
		Family:    family,
		S:         s,
		Depth5Min: th.DepthMinMult * s,
		Vol24hMin: th.VolMinMult * s,
	}

	// Non-finite inputs count as missing.
	switch {
	case !okBook || !finite(depth5):
		res.Reason = ReasonNoClobBook
		return res
	case *depth5 < res.Depth5Min:
		res.Reason = ReasonDepthTooLow
		return res
	case !finite(vol24h):
		res.Reason = ReasonVol24hMissing
		return res
	case *vol24h < res.Vol24hMin:
		res.Reason = ReasonVol24hTooLow
		return res
	}

	exitRisk := s / math.Max(*vol24h, epsilon)
	res.ExitRisk = &exitRisk
	if exitRisk > th.ExitRiskMax {
		res.Reason = ReasonExitRiskTooHigh
		return res
	}

	res.OK = true
	res.Reason = ReasonOK
	res.ExitRiskWarn = exitRisk > th.ExitRiskWarn
	return res
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
