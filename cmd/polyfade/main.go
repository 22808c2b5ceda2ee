package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/config"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
)

type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "polyfade",
		Short:         "Polymarket microstructure research loop",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			if a.configPath != "" {
				logger.Info("Configuration loaded from %s", a.configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file (defaults and POLYFADE_* env when empty)")

	root.AddCommand(a.runCmd())
	root.AddCommand(a.screenCmd())
	root.AddCommand(a.reviewCmd())
	return root
}
