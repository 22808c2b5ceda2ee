package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/metrics"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

// SnapshotSource supplies the instrument universe and per-instrument
// snapshots. FetchSnapshot never fails; book failures come back with
// OKBook unset.
type SnapshotSource interface {
	ListUniverse(ctx context.Context) ([]models.MarketMeta, error)
	FetchSnapshot(ctx context.Context, meta models.MarketMeta) models.Snapshot
}

// Recorder persists per-cycle outputs.
type Recorder interface {
	SaveSnapshot(models.Snapshot) error
	SaveBotScore(ts time.Time, marketID string, score models.BotScore) error
	SaveSignal(models.SignalRecord) error
}

// UniverseRecorder is optionally implemented by a Recorder that also keeps
// market metadata.
type UniverseRecorder interface {
	SaveMarkets(markets []models.MarketMeta, seenAt time.Time) error
}

// Notifier delivers routed signals.
type Notifier interface {
	SendSignals([]models.SignalRecord) error
}

// Executor places an order intent and returns an order id. An empty id
// with a nil error means the order was only logged.
type Executor interface {
	PlaceOrder(models.OrderIntent) (string, error)
}

// Summary describes one completed cycle.
type Summary struct {
	StartedAt  time.Time
	Duration   time.Duration
	Listed     int
	Processed  int
	NoBook     int
	Regimes    map[models.Regime]int
	Fired      int
	Candidates int
	Notified   int
	Orders     int
	Errors     int
}

// CycleDeps wires a Cycle. Only Monitor and Source are required.
type CycleDeps struct {
	Monitor  *Monitor
	Source   SnapshotSource
	Recorder Recorder
	Notifier Notifier
	Executor Executor
	Metrics  *metrics.Registry
}

// Cycle runs one pass over the universe per Run call.
type Cycle struct {
	deps CycleDeps

	mu   sync.Mutex
	last *Summary
}

func NewCycle(deps CycleDeps) *Cycle {
	return &Cycle{deps: deps}
}

// Run processes up to MaxMarketsPerCycle instruments serially. It returns an
// error only when the universe cannot be listed or ctx is cancelled; the
// partial summary is still returned in the latter case, and the instrument
// being fetched at cancellation is not processed.
func (c *Cycle) Run(ctx context.Context) (Summary, error) {
	m := c.deps.Monitor
	sum := Summary{
		StartedAt: time.Now(),
		Regimes:   make(map[models.Regime]int),
	}

	universe, err := c.deps.Source.ListUniverse(ctx)
	if err != nil {
		c.deps.Metrics.ObserveProviderError("universe")
		return sum, err
	}
	if limit := m.config.MaxMarketsPerCycle; limit > 0 && len(universe) > limit {
		universe = universe[:limit]
	}
	sum.Listed = len(universe)

	if ur, ok := c.deps.Recorder.(UniverseRecorder); ok && len(universe) > 0 {
		if err := ur.SaveMarkets(universe, sum.StartedAt); err != nil {
			logger.Warn("Failed to save universe: %v", err)
			sum.Errors++
		}
	}

	var signals []models.SignalRecord
	for _, meta := range universe {
		if err := ctx.Err(); err != nil {
			return c.abort(&sum, err)
		}

		snap := c.deps.Source.FetchSnapshot(ctx, meta)
		// A fetch interrupted by cancellation leaves the instrument untouched.
		if err := ctx.Err(); err != nil {
			return c.abort(&sum, err)
		}
		c.deps.Metrics.ObserveMarket(snap.OKBook)
		if !snap.OKBook {
			sum.NoBook++
		}
		if c.deps.Recorder != nil {
			if err := c.deps.Recorder.SaveSnapshot(snap); err != nil {
				logger.Warn("Failed to save snapshot for %s: %v", snap.MarketID, err)
				sum.Errors++
			}
		}

		d := m.Process(snap)
		sum.Processed++
		sum.Regimes[d.BotScore.Regime]++
		c.deps.Metrics.ObserveRegime(string(d.BotScore.Regime))

		if c.deps.Recorder != nil {
			if err := c.deps.Recorder.SaveBotScore(snap.Timestamp, snap.MarketID, d.BotScore); err != nil {
				logger.Warn("Failed to save bot score for %s: %v", snap.MarketID, err)
				sum.Errors++
			}
		}

		if !d.Screen.OK {
			c.deps.Metrics.ObserveScreenFailure(string(d.Family), string(d.Screen.Reason))
			logger.Debug("Market %s (%s, score=%.3f) failed %s screening: %s",
				snap.MarketID, d.BotScore.Regime, d.BotScore.Score, d.Family, d.Screen.Reason)
			continue
		}
		if d.Screen.ExitRiskWarn {
			logger.Debug("Market %s exit risk %.4f above warn level", snap.MarketID, *d.Screen.ExitRisk)
		}
		if d.Cascade != nil {
			c.deps.Metrics.ObserveCascade(string(d.Cascade.Outcome))
		}
		if d.Signal == nil {
			continue
		}

		c.deps.Metrics.ObserveSignal(string(d.Signal.Strategy))
		if c.deps.Recorder != nil {
			if err := c.deps.Recorder.SaveSignal(*d.Signal); err != nil {
				logger.Warn("Failed to save signal for %s: %v", snap.MarketID, err)
				sum.Errors++
			}
		}
		signals = append(signals, *d.Signal)

		switch d.Signal.Strategy {
		case models.StrategyA2:
			sum.Fired++
			logger.Info("Cascade on %s: strength=%.2f direction=%s details=%s",
				snap.MarketID, d.Signal.Strength, directionOf(*d.Signal), d.Signal.Details)
			c.placeOrder(&sum, d)
		case models.StrategyH1:
			sum.Candidates++
			logger.Debug("H1 review candidate %s (score=%.3f)", snap.MarketID, d.BotScore.Score)
		}
	}

	if err := ctx.Err(); err != nil {
		return c.abort(&sum, err)
	}
	c.notify(&sum, signals)
	c.finish(&sum)
	return sum, nil
}

// abort ends a cancelled cycle without counting it, so no checkpoint is
// taken and Last keeps the previous complete summary.
func (c *Cycle) abort(sum *Summary, err error) (Summary, error) {
	sum.Duration = time.Since(sum.StartedAt)
	return *sum, err
}

func (c *Cycle) placeOrder(sum *Summary, d Decision) {
	if c.deps.Executor == nil {
		return
	}
	intent, ok := c.deps.Monitor.OrderIntent(d)
	if !ok {
		return
	}
	orderID, err := c.deps.Executor.PlaceOrder(intent)
	if err != nil {
		logger.Warn("Order for %s not placed: %v", intent.TokenID, err)
		sum.Errors++
		return
	}
	if orderID != "" {
		sum.Orders++
	}
}

func (c *Cycle) notify(sum *Summary, signals []models.SignalRecord) {
	if c.deps.Notifier == nil || len(signals) == 0 {
		return
	}
	toSend := c.deps.Monitor.PostProcessSignals(signals)
	if len(toSend) == 0 {
		return
	}
	if err := c.deps.Notifier.SendSignals(toSend); err != nil {
		logger.Error("Failed to send notifications: %v", err)
		sum.Errors++
		return
	}
	c.deps.Monitor.RecordNotified(toSend)
	sum.Notified = len(toSend)
}

func (c *Cycle) finish(sum *Summary) {
	c.deps.Monitor.EndCycle()
	sum.Duration = time.Since(sum.StartedAt)
	c.deps.Metrics.ObserveCycle(sum.Duration, c.deps.Monitor.Tracked())

	c.mu.Lock()
	last := *sum
	c.last = &last
	c.mu.Unlock()
}

// Last returns the most recent summary. Safe for use from other goroutines.
func (c *Cycle) Last() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Summary{}, false
	}
	return *c.last, true
}
