package regime

import (
	"math"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/baseline"
)

// Features are the raw per-observation values the percentile scorer ranks.
type Features struct {
	// ChurnProxy is the fraction of top-of-book depth replaced since the
	// previous cycle.
	ChurnProxy float64
	// QuoteTradeProxy is the depth change per unit of 24h volume.
	QuoteTradeProxy float64
	PMWV            float64
	// Symmetry is 1 for a balanced book and tends to 0 as one side dominates.
	Symmetry float64
}

// FeaturesOf derives features from inputs. Missing values contribute 0,
// except symmetry which is a neutral 0.5 when either side is unknown.
func FeaturesOf(in Inputs) Features {
	vol := math.Max(in.Vol24h, epsilon)
	f := Features{
		PMWV:     in.MidMoveAbs / vol,
		Symmetry: 0.5,
	}
	if in.Depth5 != nil && in.PrevDepth5 != nil {
		change := math.Abs(*in.Depth5 - *in.PrevDepth5)
		f.ChurnProxy = change / math.Max(*in.PrevDepth5, epsilon)
		f.QuoteTradeProxy = change / vol
	}
	if in.DepthBid != nil && in.DepthAsk != nil {
		f.Symmetry = BookSymmetry(*in.DepthBid, *in.DepthAsk)
	}
	return f
}

// BookSymmetry is 1 - |bid-ask|/(bid+ask).
func BookSymmetry(bid, ask float64) float64 {
	return 1 - math.Abs(bid-ask)/(bid+ask+epsilon)
}

// Weights applied to the feature percentiles.
type Weights struct {
	Churn      float64
	QuoteTrade float64
	PMWV       float64
	Symmetry   float64
}

func DefaultWeights() Weights {
	return Weights{Churn: 0.30, QuoteTrade: 0.25, PMWV: 0.25, Symmetry: 0.20}
}

// DefaultReferenceCapacity bounds each reference feature window.
const DefaultReferenceCapacity = 2048

// Reference is a bounded population of recent features across all
// instruments, one window per feature.
type Reference struct {
	churn *baseline.Window
	qtr   *baseline.Window
	pmwv  *baseline.Window
	sym   *baseline.Window
}

func NewReference(capacity int) *Reference {
	if capacity < 1 {
		capacity = DefaultReferenceCapacity
	}
	return &Reference{
		churn: baseline.NewWindow(capacity),
		qtr:   baseline.NewWindow(capacity),
		pmwv:  baseline.NewWindow(capacity),
		sym:   baseline.NewWindow(capacity),
	}
}

func (r *Reference) Add(f Features) {
	r.churn.Push(f.ChurnProxy)
	r.qtr.Push(f.QuoteTradeProxy)
	r.pmwv.Push(f.PMWV)
	r.sym.Push(f.Symmetry)
}

func (r *Reference) Len() int {
	return r.churn.Len()
}

// PercentileRank is the fraction of ref strictly below x, 0.5 for an empty
// reference.
func PercentileRank(x float64, ref []float64) float64 {
	if len(ref) == 0 {
		return 0.5
	}
	below := 0
	for _, v := range ref {
		if v < x {
			below++
		}
	}
	return float64(below) / float64(len(ref))
}

// PercentileScorer ranks each feature against the reference population and
// combines the ranks with Weights. It scores 0.5 until it has observed data.
type PercentileScorer struct {
	weights Weights
	ref     *Reference
}

func NewPercentileScorer(w Weights, ref *Reference) *PercentileScorer {
	if ref == nil {
		ref = NewReference(0)
	}
	return &PercentileScorer{weights: w, ref: ref}
}

func (p *PercentileScorer) Name() string { return ScorerPercentile }

func (p *PercentileScorer) Score(in Inputs) float64 {
	f := FeaturesOf(in)
	score := p.weights.Churn*PercentileRank(f.ChurnProxy, p.ref.churn.Values()) +
		p.weights.QuoteTrade*PercentileRank(f.QuoteTradeProxy, p.ref.qtr.Values()) +
		p.weights.PMWV*PercentileRank(f.PMWV, p.ref.pmwv.Values()) +
		p.weights.Symmetry*PercentileRank(f.Symmetry, p.ref.sym.Values())
	return clamp01(score)
}

// Observe adds the features of in to the reference population.
func (p *PercentileScorer) Observe(in Inputs) {
	p.ref.Add(FeaturesOf(in))
}
