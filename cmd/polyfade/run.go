package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/baseline"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/cascade"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/config"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/execution"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/metrics"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/monitor"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/polymarket"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/regime"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/screening"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/storage"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/telegram"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the research loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd.Context(), a.cfg)
		},
	}
}

// buildMonitor wires the core components named by cfg.
func buildMonitor(cfg *config.Config, store monitor.StateStore) (*monitor.Monitor, error) {
	scorer, err := regime.NewScorer(cfg.Regime.Scorer, cfg.Regime.ReferenceCapacity)
	if err != nil {
		return nil, err
	}
	detector, err := cascade.New(cfg.Cascade)
	if err != nil {
		return nil, err
	}
	return monitor.New(store, cfg.MonitorEngineConfig(), monitor.Components{
		Baselines: baseline.New(cfg.BaselineTrackerConfig()),
		Scorer:    scorer,
		Cascades:  cascade.NewTracker(detector),
		Screener:  screening.New(cfg.ScreeningEngineConfig()),
	}), nil
}

func runLoop(ctx context.Context, cfg *config.Config) error {
	store, err := storage.New(cfg.Storage.MaxMarkets, cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		go func() {
			if err := reg.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	client := polymarket.NewClient(cfg.Polymarket.ClientConfig)
	provider := polymarket.NewProvider(client, cfg.Polymarket.ProviderConfig, reg)

	mon, err := buildMonitor(cfg, store)
	if err != nil {
		return err
	}

	if cfg.Execution.Enabled {
		logger.Warn("execution.enabled is set; live orders are unavailable and every intent will fail")
	}
	deps := monitor.CycleDeps{
		Monitor:  mon,
		Source:   provider,
		Recorder: store,
		Executor: execution.NewAdapter(cfg.Execution),
		Metrics:  reg,
	}

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelay)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		deps.Notifier = telegramClient
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	cycle := monitor.NewCycle(deps)

	if telegramClient != nil {
		telegramClient.SetStatusFunc(func() string { return statusText(cycle, client) })
		telegramClient.SetRecentFunc(func(limit int) ([]models.SignalRecord, error) {
			return store.RecentSignals("", limit)
		})
		telegramClient.ListenForCommands(ctx)
	}

	logger.Info("Starting research loop against %s (interval: %v, max markets: %d, scorer: %s, detector: %s)",
		provider, cfg.Monitor.PollInterval, cfg.Monitor.MaxMarketsPerCycle,
		cfg.Regime.Scorer, cfg.Cascade.Detector)

	ticker := time.NewTicker(cfg.Monitor.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(sum monitor.Summary, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			consecutiveFailures++
			logger.Error("Research cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}
		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0
		logger.Info("Cycle completed in %v: %s", sum.Duration.Round(time.Millisecond), summaryLine(sum))
	}

	prune := func() {
		if cfg.Storage.Retention <= 0 {
			return
		}
		n, err := store.Prune(time.Now().Add(-cfg.Storage.Retention))
		if err != nil {
			logger.Warn("Failed to prune history: %v", err)
			return
		}
		if n > 0 {
			logger.Debug("Pruned %d rows older than %v", n, cfg.Storage.Retention)
		}
	}

	logger.Debug("Running initial research cycle")
	handleCycleResult(cycle.Run(ctx))

	for {
		select {
		case <-ctx.Done():
			mon.Shutdown()
			logger.Info("Service stopped")
			return nil

		case <-ticker.C:
			logger.Debug("Starting scheduled research cycle")
			handleCycleResult(cycle.Run(ctx))
			prune()
		}
	}
}

func summaryLine(sum monitor.Summary) string {
	return fmt.Sprintf("%d/%d markets processed, %d without book, BOT=%d MIXED=%d HUMAN=%d, A2 fires=%d, H1 candidates=%d, notified=%d, errors=%d",
		sum.Processed, sum.Listed, sum.NoBook,
		sum.Regimes[models.RegimeBot], sum.Regimes[models.RegimeMixed], sum.Regimes[models.RegimeHuman],
		sum.Fired, sum.Candidates, sum.Notified, sum.Errors)
}

func statusText(cycle *monitor.Cycle, client *polymarket.Client) string {
	var b strings.Builder
	sum, ok := cycle.Last()
	if !ok {
		b.WriteString("No cycle completed yet.")
	} else {
		fmt.Fprintf(&b, "Last cycle %s (%v)\n%s",
			sum.StartedAt.UTC().Format("2006-01-02 15:04:05"), sum.Duration.Round(time.Millisecond), summaryLine(sum))
	}
	fmt.Fprintf(&b, "\nCLOB breaker: %s", client.BreakerState())
	return b.String()
}
