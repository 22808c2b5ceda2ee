// Package review holds the manual-review checklist applied to H1
// candidates before a human takes an informational position.
package review

import (
	"math"
	"strings"
)

// Reason is the checklist verdict tag.
type Reason string

const (
	ReasonNoResolutionSource   Reason = "NO_RESOLUTION_SOURCE"
	ReasonWordingAmbiguous     Reason = "WORDING_AMBIGUOUS"
	ReasonNoScenarios          Reason = "NO_SCENARIOS"
	ReasonInvalidScenarioProbs Reason = "INVALID_SCENARIO_PROBS"
	ReasonEdgeTooSmall         Reason = "EDGE_TOO_SMALL"
	ReasonOKNoCatalyst         Reason = "OK_NO_CATALYST_ASSUME_HOLD"
	ReasonOK                   Reason = "OK"
)

// DefaultMinEdge is ten probability points.
const DefaultMinEdge = 0.10

// Scenario is one way the market could resolve, with the reviewer's
// probability for it.
type Scenario struct {
	Name        string  `yaml:"name"`
	P           float64 `yaml:"p"`
	ResolvesYes bool    `yaml:"resolves_yes"`
}

// Case is a reviewer's write-up of a candidate market.
type Case struct {
	MarketSlug              string     `yaml:"market_slug"`
	Question                string     `yaml:"question"`
	ResolutionSourceDefined bool       `yaml:"resolution_source_defined"`
	WordingIsUnambiguous    bool       `yaml:"wording_is_unambiguous"`
	Scenarios               []Scenario `yaml:"scenarios"`
	PMarket                 float64    `yaml:"p_market"`
	CatalystDefined         bool       `yaml:"catalyst_defined"`
	ThesisInvalidationRule  string     `yaml:"thesis_invalidation_rule"`
}

// Decision is the checklist outcome. PModel and Edge are set once the
// scenario gate has been passed.
type Decision struct {
	OK     bool
	Reason Reason
	PModel *float64
	Edge   *float64
}

// Checklist evaluates cases in gate order: resolution and wording, the
// scenario model and its edge over the market, then the exit plan.
type Checklist struct {
	MinEdge float64
}

func NewChecklist(minEdge float64) Checklist {
	if minEdge <= 0 {
		minEdge = DefaultMinEdge
	}
	return Checklist{MinEdge: minEdge}
}

func (c Checklist) Evaluate(cs Case) Decision {
	if !cs.ResolutionSourceDefined {
		return Decision{Reason: ReasonNoResolutionSource}
	}
	if !cs.WordingIsUnambiguous {
		return Decision{Reason: ReasonWordingAmbiguous}
	}

	if len(cs.Scenarios) == 0 {
		return Decision{Reason: ReasonNoScenarios}
	}
	var total, yes float64
	for _, s := range cs.Scenarios {
		if s.P < 0 || math.IsNaN(s.P) || math.IsInf(s.P, 0) {
			return Decision{Reason: ReasonInvalidScenarioProbs}
		}
		total += s.P
		if s.ResolvesYes {
			yes += s.P
		}
	}
	if total <= 0 {
		return Decision{Reason: ReasonInvalidScenarioProbs}
	}

	// scenario weights need not sum to one
	pModel := yes / total
	edge := math.Abs(pModel - cs.PMarket)
	d := Decision{PModel: &pModel, Edge: &edge}

	if edge < c.MinEdge {
		d.Reason = ReasonEdgeTooSmall
		return d
	}

	d.OK = true
	if !cs.CatalystDefined && !strings.Contains(strings.ToLower(cs.ThesisInvalidationRule), "resolution") {
		d.Reason = ReasonOKNoCatalyst
		return d
	}
	d.Reason = ReasonOK
	return d
}
