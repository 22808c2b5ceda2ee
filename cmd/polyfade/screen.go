package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/monitor"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/polymarket"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/screening"
)

func (a *app) screenCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Screen the current universe under both families once",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := polymarket.NewClient(a.cfg.Polymarket.ClientConfig)
			provider := polymarket.NewProvider(client, a.cfg.Polymarket.ProviderConfig, nil)
			screener := screening.New(a.cfg.ScreeningEngineConfig())
			return screenOnce(cmd, provider, screener, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum number of markets to snapshot")
	return cmd
}

type screenCounts struct {
	Candidates int
	NoBook     int
	OK         map[models.Family]int
}

func screenOnce(cmd *cobra.Command, source monitor.SnapshotSource, screener *screening.Engine, limit int) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	metas, err := source.ListUniverse(ctx)
	if err != nil {
		return fmt.Errorf("failed to list universe: %w", err)
	}
	fmt.Fprintf(out, "Candidates (open & tokenized): %d\n", len(metas))
	if limit > 0 && len(metas) > limit {
		metas = metas[:limit]
	}

	counts := screenCounts{Candidates: len(metas), OK: make(map[models.Family]int)}
	for _, meta := range metas {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := source.FetchSnapshot(ctx, meta)
		if !snap.OKBook {
			counts.NoBook++
		}
		book := snap.Book()
		for _, family := range []models.Family{models.FamilyA, models.FamilyH} {
			res := screener.Screen(family, snap.Vol24h, book.Depth5, snap.OKBook)
			if !res.OK {
				continue
			}
			counts.OK[family]++
			writeScreenRow(out, snap, res)
		}
	}

	fmt.Fprintf(out, "\nScreened %d markets (%d without book). OK counts: A=%d, H=%d\n",
		counts.Candidates, counts.NoBook, counts.OK[models.FamilyA], counts.OK[models.FamilyH])
	return nil
}

func writeScreenRow(w io.Writer, snap models.Snapshot, res screening.Result) {
	name := snap.Slug
	if name == "" {
		name = snap.MarketID
	}
	var depth, vol, exit float64
	if snap.Depth5 != nil {
		depth = *snap.Depth5
	}
	if snap.Vol24h != nil {
		vol = *snap.Vol24h
	}
	if res.ExitRisk != nil {
		exit = *res.ExitRisk
	}
	warn := ""
	if res.ExitRiskWarn {
		warn = " (exit risk warn)"
	}
	fmt.Fprintf(w, "[%s OK] %-50s depth5=%.0f vol24h=%.0f exit=%.3f%s\n", res.Family, name, depth, vol, exit, warn)
}
