// Package cascade detects short-lived liquidity dislocations (wide spread,
// thin book, price jump) that a fade strategy trades against.
//
// Detectors are pure: Detect takes the prior per-instrument state and returns
// the new one. Tracker owns the per-instrument states for the live loop.
package cascade

import (
	"fmt"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// Detector variant names accepted by New.
const (
	DetectorStreaming  = "streaming"
	DetectorStandalone = "standalone"
)

// Input is one observation and its baselines. Fields a variant does not use
// are ignored.
type Input struct {
	Mid          *float64
	Spread       *float64
	Depth5       *float64
	MedianSpread *float64
	MedianDepth5 *float64

	// Standalone variant only.
	MidSigma     float64
	WindowVolume float64
	PMWVHistory  []float64
}

// Detector evaluates one observation against its baselines. It never
// panics on absent or degenerate inputs.
type Detector interface {
	Name() string
	Detect(in Input, prior models.CascadeState) (models.CascadeSignal, models.CascadeState)
}

// Config holds the thresholds of both variants.
type Config struct {
	Detector          string  `mapstructure:"detector"`
	SpreadMult        float64 `mapstructure:"spread_mult"`
	DepthCollapseMult float64 `mapstructure:"depth_collapse_mult"`
	SigmaK            float64 `mapstructure:"sigma_k"`
	JumpSigmaMult     float64 `mapstructure:"jump_sigma_mult"`
	PMWVPercentile    float64 `mapstructure:"pmwv_percentile"`
	MinPMWVHistory    int     `mapstructure:"min_pmwv_history"`
}

func DefaultConfig() Config {
	return Config{
		Detector:          DetectorStreaming,
		SpreadMult:        2.0,
		DepthCollapseMult: 0.60,
		SigmaK:            2.0,
		JumpSigmaMult:     2.0,
		PMWVPercentile:    0.95,
		MinPMWVHistory:    30,
	}
}

// New returns the variant named by cfg.Detector.
func New(cfg Config) (Detector, error) {
	switch cfg.Detector {
	case DetectorStreaming, "":
		return NewStreaming(cfg), nil
	case DetectorStandalone:
		return NewStandalone(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cascade detector %q", cfg.Detector)
	}
}

// nextState is the one-step memory update, applied whatever the outcome.
func nextState(in Input) models.CascadeState {
	return models.CascadeState{
		LastMid:    copyFloat(in.Mid),
		LastSpread: copyFloat(in.Spread),
		LastDepth5: copyFloat(in.Depth5),
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func direction(delta float64) *models.Direction {
	d := models.FadeDown
	if delta > 0 {
		d = models.FadeUp
	}
	return &d
}

func notFired(outcome models.Outcome, reasons []string) models.CascadeSignal {
	return models.CascadeSignal{Outcome: outcome, Details: reasons}
}
