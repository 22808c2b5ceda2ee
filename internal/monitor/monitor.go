package monitor

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/baseline"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/cascade"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/regime"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/screening"
)

// DetailManualReview marks H1 candidates.
const DetailManualReview = "MANUAL_REVIEW"

// candidateStrength is the fixed strength of an H1 review candidate.
const candidateStrength = 0.5

type Config struct {
	CheckpointInterval int
	MaxMarketsPerCycle int
	TacticalSizeFrac   float64
	TopK               int
	NotifyCooldown     time.Duration
	Thresholds         regime.Thresholds
}

func DefaultConfig() Config {
	return Config{
		CheckpointInterval: 10,
		MaxMarketsPerCycle: 80,
		TacticalSizeFrac:   0.25,
		TopK:               10,
		NotifyCooldown:     10 * time.Minute,
		Thresholds:         regime.DefaultThresholds(),
	}
}

// StateStore persists the monitor's per-instrument state between runs.
type StateStore interface {
	SaveBaselines(map[string]baseline.Checkpoint) error
	LoadBaselines() (map[string]baseline.Checkpoint, error)
	SaveCascadeStates(map[string]models.CascadeState) error
	LoadCascadeStates() (map[string]models.CascadeState, error)
	SavePriors(map[string]models.PriorObservation) error
	LoadPriors() (map[string]models.PriorObservation, error)
}

// Components are the analysis stages the monitor sequences.
type Components struct {
	Baselines *baseline.Tracker
	Scorer    regime.Scorer
	Cascades  *cascade.Tracker
	Screener  *screening.Engine
}

// Decision carries every intermediate value of one instrument's pass.
type Decision struct {
	Snapshot     models.Snapshot
	MedianSpread *float64
	MedianDepth5 *float64
	MidMoveAbs   float64
	WindowVolume float64
	BotScore     models.BotScore
	Family       models.Family
	Screen       screening.Result
	// Cascade is set only when the detector ran.
	Cascade *models.CascadeSignal
	// Signal is set for a fired cascade or an H1 candidate.
	Signal *models.SignalRecord
}

type notifiedRecord struct {
	Direction string
	SentAt    time.Time
}

// Monitor routes snapshots through baseline, regime, screening and cascade
// stages. It is driven by a single goroutine and holds plain maps.
type Monitor struct {
	store      StateStore
	baselines  *baseline.Tracker
	scorer     regime.Scorer
	cascades   *cascade.Tracker
	screener   *screening.Engine
	priors     map[string]models.PriorObservation
	notified   map[string]notifiedRecord
	config     Config
	cycleCount int
	now        func() time.Time
}

// New builds a monitor and restores any state persisted in store. A nil
// store disables checkpointing.
func New(store StateStore, config Config, c Components) *Monitor {
	m := &Monitor{
		store:     store,
		baselines: c.Baselines,
		scorer:    c.Scorer,
		cascades:  c.Cascades,
		screener:  c.Screener,
		priors:    make(map[string]models.PriorObservation),
		notified:  make(map[string]notifiedRecord),
		config:    config,
		now:       time.Now,
	}
	if m.baselines == nil {
		m.baselines = baseline.New(baseline.DefaultConfig())
	}
	if m.scorer == nil {
		m.scorer = regime.SnapshotScorer{}
	}
	if m.cascades == nil {
		m.cascades = cascade.NewTracker(cascade.NewStreaming(cascade.DefaultConfig()))
	}
	if m.screener == nil {
		m.screener = screening.New(screening.DefaultConfig())
	}
	if m.config.CheckpointInterval <= 0 {
		m.config.CheckpointInterval = 1
	}

	if store != nil {
		m.restore()
	}
	return m
}

func (m *Monitor) restore() {
	if cps, err := m.store.LoadBaselines(); err != nil {
		logger.Warn("Failed to load persisted baselines: %v", err)
	} else {
		m.baselines.Restore(cps)
		logger.Info("Loaded %d persisted baselines", len(cps))
	}
	if states, err := m.store.LoadCascadeStates(); err != nil {
		logger.Warn("Failed to load persisted cascade states: %v", err)
	} else {
		m.cascades.Restore(states)
	}
	if priors, err := m.store.LoadPriors(); err != nil {
		logger.Warn("Failed to load persisted prior observations: %v", err)
	} else {
		for id, p := range priors {
			m.priors[id] = p
		}
	}
}

// Process runs one snapshot through the pipeline. Screening failure for the
// selected family ends the pass for this instrument.
func (m *Monitor) Process(snap models.Snapshot) Decision {
	id := snap.MarketID
	book := snap.Book()
	prior := m.priors[id]
	d := Decision{Snapshot: snap}

	d.MedianSpread, d.MedianDepth5 = m.baselines.Observe(id, book.Spread, book.Depth5)

	if book.Mid != nil && prior.Mid != nil {
		d.MidMoveAbs = math.Abs(*book.Mid - *prior.Mid)
	}
	if snap.Vol24h != nil && prior.Vol24h != nil {
		// Volume24hr is a rolling total; its cycle-over-cycle rise
		// approximates what traded in between.
		d.WindowVolume = math.Max(0, *snap.Vol24h-*prior.Vol24h)
	}

	var vol24h float64
	if snap.Vol24h != nil {
		vol24h = *snap.Vol24h
	}
	in := regime.Inputs{
		MidMoveAbs: d.MidMoveAbs,
		Spread:     book.Spread,
		Depth5:     book.Depth5,
		DepthBid:   book.DepthBid,
		DepthAsk:   book.DepthAsk,
		Vol24h:     vol24h,
		PrevDepth5: prior.Depth5,
	}
	score := m.scorer.Score(in)
	if obs, ok := m.scorer.(regime.Observer); ok {
		obs.Observe(in)
	}
	d.BotScore = models.BotScore{Score: score, Regime: m.config.Thresholds.Classify(score)}

	d.Family = models.FamilyA
	if d.BotScore.Regime == models.RegimeHuman {
		d.Family = models.FamilyH
	}
	d.Screen = m.screener.Screen(d.Family, snap.Vol24h, book.Depth5, snap.OKBook)

	if d.Screen.OK {
		if d.Family == models.FamilyA {
			m.detect(&d, book)
		} else {
			d.Signal = m.newSignal(snap, d, models.StrategyH1, models.KindCandidate)
			d.Signal.Strength = candidateStrength
			d.Signal.Details = DetailManualReview
		}
	}

	m.remember(id, snap, book, prior, d)
	return d
}

func (m *Monitor) detect(d *Decision, book models.BookView) {
	id := d.Snapshot.MarketID
	sig := m.cascades.Step(id, cascade.Input{
		Mid:          book.Mid,
		Spread:       book.Spread,
		Depth5:       book.Depth5,
		MedianSpread: d.MedianSpread,
		MedianDepth5: d.MedianDepth5,
		MidSigma:     m.baselines.MidSigma(id),
		WindowVolume: d.WindowVolume,
		PMWVHistory:  m.baselines.PMWVHistory(id),
	})
	d.Cascade = &sig
	if !sig.Fired {
		return
	}
	rec := m.newSignal(d.Snapshot, *d, models.StrategyA2, models.KindFadeCascade)
	rec.Direction = sig.Direction
	rec.Strength = sig.Strength
	rec.Details = sig.DetailString()
	d.Signal = rec
}

func (m *Monitor) newSignal(snap models.Snapshot, d Decision, strategy models.Strategy, kind string) *models.SignalRecord {
	return &models.SignalRecord{
		ID:        uuid.NewString(),
		Timestamp: snap.Timestamp,
		MarketID:  snap.MarketID,
		Slug:      snap.Slug,
		TokenID:   snap.TokenID,
		Strategy:  strategy,
		Kind:      kind,
		Mid:       snap.Book().Mid,
		Regime:    d.BotScore.Regime,
		BotScore:  d.BotScore.Score,
	}
}

// remember records the mid history and replaces the prior observation,
// whether or not this cycle's book was available.
func (m *Monitor) remember(id string, snap models.Snapshot, book models.BookView, prior models.PriorObservation, d Decision) {
	if book.Mid != nil && prior.Mid != nil {
		m.baselines.ObservePMWV(id, cascade.PMWV(d.MidMoveAbs, d.WindowVolume))
	}
	m.baselines.ObserveMid(id, book.Mid)
	m.priors[id] = models.PriorObservation{
		Mid:    book.Mid,
		Spread: book.Spread,
		Depth5: book.Depth5,
		Vol24h: snap.Vol24h,
	}
}

// OrderIntent prepares the paper order for a fired cascade: S scaled by the
// tactical fraction, capped at the per-market maximum. A rise is faded with
// a sell, a fall with a buy; without a direction the order defaults to SELL.
func (m *Monitor) OrderIntent(d Decision) (models.OrderIntent, bool) {
	if d.Signal == nil || d.Signal.Strategy != models.StrategyA2 {
		return models.OrderIntent{}, false
	}
	size := math.Min(m.screener.PositionSize()*m.config.TacticalSizeFrac, m.screener.MaxPositionSize())
	price := 0.5
	if d.Signal.Mid != nil {
		price = *d.Signal.Mid
	}
	side := models.SideSell
	if d.Signal.Direction != nil && *d.Signal.Direction == models.FadeDown {
		side = models.SideBuy
	}
	return models.OrderIntent{
		TokenID:  d.Signal.TokenID,
		Side:     side,
		Price:    price,
		Size:     size,
		Reason:   d.Signal.Details,
		Strategy: models.StrategyA2,
	}, true
}

// EndCycle counts a finished cycle and checkpoints every CheckpointInterval.
func (m *Monitor) EndCycle() {
	m.cycleCount++
	if m.cycleCount%m.config.CheckpointInterval == 0 {
		m.checkpoint()
	}
}

func (m *Monitor) checkpoint() {
	if m.store == nil {
		return
	}
	if err := m.store.SaveBaselines(m.baselines.Export()); err != nil {
		logger.Warn("Failed to checkpoint baselines: %v", err)
	}
	if err := m.store.SaveCascadeStates(m.cascades.Export()); err != nil {
		logger.Warn("Failed to checkpoint cascade states: %v", err)
	}
	priors := make(map[string]models.PriorObservation, len(m.priors))
	for id, p := range m.priors {
		priors[id] = p
	}
	if err := m.store.SavePriors(priors); err != nil {
		logger.Warn("Failed to checkpoint prior observations: %v", err)
	}
}

func (m *Monitor) Shutdown() {
	logger.Info("Checkpointing %d instrument baselines before shutdown", m.baselines.Len())
	m.checkpoint()
}

// Tracked is the number of instruments with a baseline.
func (m *Monitor) Tracked() int {
	return m.baselines.Len()
}

func notifyKey(sig models.SignalRecord) string {
	return string(sig.Strategy) + ":" + sig.MarketID
}

func directionOf(sig models.SignalRecord) string {
	if sig.Direction == nil {
		return ""
	}
	return string(*sig.Direction)
}

// FilterRecentlySent drops signals for instruments already notified within
// cooldown in the same direction. A direction flip is always let through.
func (m *Monitor) FilterRecentlySent(sigs []models.SignalRecord, cooldown time.Duration) []models.SignalRecord {
	now := m.now()
	var result []models.SignalRecord
	for _, sig := range sigs {
		rec, exists := m.notified[notifyKey(sig)]
		if exists && now.Sub(rec.SentAt) < cooldown && rec.Direction == directionOf(sig) {
			continue
		}
		result = append(result, sig)
	}
	return result
}

func (m *Monitor) RecordNotified(sigs []models.SignalRecord) {
	now := m.now()
	for _, sig := range sigs {
		m.notified[notifyKey(sig)] = notifiedRecord{
			Direction: directionOf(sig),
			SentAt:    now,
		}
	}
}

// PostProcessSignals removes signals still in cooldown, then keeps the TopK
// strongest.
func (m *Monitor) PostProcessSignals(sigs []models.SignalRecord) []models.SignalRecord {
	fresh := m.FilterRecentlySent(sigs, m.config.NotifyCooldown)
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Strength > fresh[j].Strength
	})
	if m.config.TopK > 0 && len(fresh) > m.config.TopK {
		fresh = fresh[:m.config.TopK]
	}
	return fresh
}
