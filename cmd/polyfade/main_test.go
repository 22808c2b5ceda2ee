package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/config"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/monitor"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/review"
	"github.com/algotradingios/Trading-Polymarket-Framework/internal/screening"
)

type staticSource struct {
	metas []models.MarketMeta
	snaps map[string]models.Snapshot
}

func (s *staticSource) ListUniverse(ctx context.Context) ([]models.MarketMeta, error) {
	return s.metas, nil
}

func (s *staticSource) FetchSnapshot(ctx context.Context, meta models.MarketMeta) models.Snapshot {
	return s.snaps[meta.MarketID]
}

func TestScreenOnce(t *testing.T) {
	// S = 100: A needs depth >= 800 and vol >= 2000, H needs depth >= 300 and vol >= 1000
	src := &staticSource{
		metas: []models.MarketMeta{{MarketID: "deep"}, {MarketID: "thin"}, {MarketID: "dead"}},
		snaps: map[string]models.Snapshot{
			"deep": {MarketID: "deep", Slug: "deep-market", OKBook: true, Depth5: models.Float(5000), Vol24h: models.Float(100000)},
			"thin": {MarketID: "thin", OKBook: true, Depth5: models.Float(400), Vol24h: models.Float(5000)},
			"dead": {MarketID: "dead", Vol24h: models.Float(100000)},
		},
	}

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := screenOnce(cmd, src, screening.New(screening.DefaultConfig()), 0); err != nil {
		t.Fatalf("screenOnce() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Candidates (open & tokenized): 3",
		"[A OK] deep-market",
		"[H OK] deep-market",
		"[H OK] thin",
		"(1 without book). OK counts: A=1, H=2",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "[A OK] thin") {
		t.Errorf("thin market should fail family A:\n%s", got)
	}
}

func TestWriteReview(t *testing.T) {
	cases := []review.Case{
		{
			MarketSlug: "pass-case", ResolutionSourceDefined: true, WordingIsUnambiguous: true,
			Scenarios: []review.Scenario{{Name: "y", P: 0.7, ResolvesYes: true}, {Name: "n", P: 0.3}},
			PMarket:   0.4, CatalystDefined: true,
		},
		{MarketSlug: "vague-case", ResolutionSourceDefined: true},
	}

	var out bytes.Buffer
	writeReview(&out, review.NewChecklist(0.1), cases)
	got := out.String()
	for _, want := range []string{
		"[PASS] pass-case",
		"OK p_model=0.700 p_market=0.400 edge=0.300",
		"[REJECT] vague-case",
		"WORDING_AMBIGUOUS",
		"1 of 2 cases pass (min edge 0.10)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestBuildMonitor(t *testing.T) {
	cfg := config.Default()
	cfg.Regime.Scorer = "percentile"
	cfg.Cascade.Detector = "standalone"
	if _, err := buildMonitor(cfg, nil); err != nil {
		t.Fatalf("buildMonitor() error = %v", err)
	}

	cfg.Cascade.Detector = "bogus"
	if _, err := buildMonitor(cfg, nil); err == nil {
		t.Error("expected error for unknown detector")
	}
}

func TestSummaryLine(t *testing.T) {
	sum := monitor.Summary{
		Listed: 80, Processed: 78, NoBook: 5,
		Regimes:  map[models.Regime]int{models.RegimeBot: 10, models.RegimeHuman: 60, models.RegimeMixed: 8},
		Fired:    2, Candidates: 7, Notified: 9, Duration: time.Second,
	}
	want := "78/80 markets processed, 5 without book, BOT=10 MIXED=8 HUMAN=60, A2 fires=2, H1 candidates=7, notified=9, errors=0"
	if got := summaryLine(sum); got != want {
		t.Errorf("summaryLine() = %q, want %q", got, want)
	}
}
