package models

import (
	"strings"
	"time"
)

// Family selects a screening threshold profile.
type Family string

const (
	// FamilyA covers automated / microstructure strategies (strict thresholds).
	FamilyA Family = "A"
	// FamilyH covers human / informational strategies (looser thresholds).
	FamilyH Family = "H"
)

// Regime is the dominant trading behaviour of an instrument.
type Regime string

const (
	RegimeBot   Regime = "BOT"
	RegimeMixed Regime = "MIXED"
	RegimeHuman Regime = "HUMAN"
)

// BotScore is a bot-likelihood score in [0,1] and its regime bucket.
type BotScore struct {
	Score  float64 `json:"score"`
	Regime Regime  `json:"regime"`
}

// Direction is the side a fade trade would take against a cascade.
type Direction string

const (
	// FadeUp: the mid rose, bet on reversion downward.
	FadeUp Direction = "FADE_UP"
	// FadeDown: the mid fell or held, bet on reversion upward.
	FadeDown Direction = "FADE_DOWN"
)

// Outcome tags the result of a cascade evaluation.
type Outcome string

const (
	OutcomeMissingData         Outcome = "MISSING_DATA"
	OutcomeInsufficientHistory Outcome = "INSUFFICIENT_HISTORY"
	OutcomeNoCascade           Outcome = "NO_CASCADE"
	OutcomeCascadeFired        Outcome = "CASCADE_FIRED"
)

// Cascade trigger condition names.
const (
	CondSpreadExpansion = "SPREAD_EXPANSION"
	CondDepthCollapse   = "DEPTH_COLLAPSE"
	CondMidJump         = "MID_JUMP"
	CondPMWVExtreme     = "PMWV_EXTREME"
)

// CascadeSignal is one cycle's cascade verdict for one instrument.
type CascadeSignal struct {
	Outcome   Outcome    `json:"outcome"`
	Fired     bool       `json:"fired"`
	Direction *Direction `json:"direction,omitempty"`
	Strength  float64    `json:"strength"`
	Details   []string   `json:"details"`
}

// DetailString joins the triggered conditions, falling back to the outcome tag.
func (s CascadeSignal) DetailString() string {
	if len(s.Details) == 0 {
		return string(s.Outcome)
	}
	return strings.Join(s.Details, ",")
}

// CascadeState is the one-step memory the cascade detector keeps per instrument.
type CascadeState struct {
	LastMid    *float64 `json:"last_mid,omitempty"`
	LastSpread *float64 `json:"last_spread,omitempty"`
	LastDepth5 *float64 `json:"last_depth5,omitempty"`
}

// Strategy names the strategy a routed record belongs to.
type Strategy string

const (
	StrategyA2 Strategy = "A2"
	StrategyH1 Strategy = "H1"
)

// Signal kinds stored with a SignalRecord.
const (
	KindFadeCascade = "FADE_CASCADE"
	KindCandidate   = "CANDIDATE"
)

// SignalRecord is a routed outcome, persisted and notified.
type SignalRecord struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	MarketID  string     `json:"market_id"`
	Slug      string     `json:"slug"`
	TokenID   string     `json:"token_id"`
	Strategy  Strategy   `json:"strategy"`
	Kind      string     `json:"kind"`
	Direction *Direction `json:"direction,omitempty"`
	Strength  float64    `json:"strength"`
	Mid       *float64   `json:"mid,omitempty"`
	Regime    Regime     `json:"regime"`
	BotScore  float64    `json:"bot_score"`
	Details   string     `json:"details"`
}

// OrderSide is BUY or SELL.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderIntent is a paper order prepared for a fired signal.
type OrderIntent struct {
	TokenID  string    `json:"token_id"`
	Side     OrderSide `json:"side"`
	Price    float64   `json:"price"`
	Size     float64   `json:"size"`
	Reason   string    `json:"reason"`
	Strategy Strategy  `json:"strategy"`
}
