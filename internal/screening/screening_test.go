package screening

import (
	"math"
	"reflect"
	"testing"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

func f(v float64) *float64 { return models.Float(v) }

func TestPositionSize(t *testing.T) {
	e := New(DefaultConfig())
	if got := e.PositionSize(); got != 100 {
		t.Errorf("PositionSize() = %v, want 100", got)
	}
	if got := e.MaxPositionSize(); got != 500 {
		t.Errorf("MaxPositionSize() = %v, want 500", got)
	}
}

func TestScreen_FailureLadder(t *testing.T) {
	e := New(DefaultConfig())

	tests := []struct {
		name   string
		family models.Family
		vol    *float64
		depth  *float64
		okBook bool
		want   Reason
		wantOK bool
	}{
		{"no book flag", models.FamilyA, f(1e6), f(1e6), false, ReasonNoClobBook, false},
		{"depth absent", models.FamilyA, f(1e6), nil, true, ReasonNoClobBook, false},
		{"depth too low A", models.FamilyA, f(1e6), f(799), true, ReasonDepthTooLow, false},
		{"depth too low wins over missing vol", models.FamilyA, nil, f(10), true, ReasonDepthTooLow, false},
		{"vol missing", models.FamilyA, nil, f(800), true, ReasonVol24hMissing, false},
		{"vol too low A", models.FamilyA, f(1999), f(800), true, ReasonVol24hTooLow, false},
		{"ok A", models.FamilyA, f(3000), f(800), true, ReasonOK, true},
		{"depth ok for H only", models.FamilyH, f(1000), f(300), true, ReasonOK, true},
		{"vol too low H", models.FamilyH, f(999), f(300), true, ReasonVol24hTooLow, false},
		{"NaN depth", models.FamilyA, f(1e6), f(math.NaN()), true, ReasonNoClobBook, false},
		{"infinite depth", models.FamilyA, f(1e6), f(math.Inf(1)), true, ReasonNoClobBook, false},
		{"NaN vol", models.FamilyA, f(math.NaN()), f(800), true, ReasonVol24hMissing, false},
		{"infinite vol", models.FamilyA, f(math.Inf(1)), f(800), true, ReasonVol24hMissing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Screen(tt.family, tt.vol, tt.depth, tt.okBook)
			if res.Reason != tt.want {
				t.Errorf("reason = %s, want %s", res.Reason, tt.want)
			}
			if res.OK != tt.wantOK {
				t.Errorf("ok = %v, want %v", res.OK, tt.wantOK)
			}
			if res.Family != tt.family {
				t.Errorf("family = %s, want %s", res.Family, tt.family)
			}
		})
	}
}

func TestScreen_NoBookAlwaysWins(t *testing.T) {
	e := New(DefaultConfig())
	inputs := []*float64{nil, f(0), f(1), f(1e9)}
	for _, fam := range []models.Family{models.FamilyA, models.FamilyH} {
		for _, vol := range inputs {
			for _, depth := range inputs {
				res := e.Screen(fam, vol, depth, false)
				if res.Reason != ReasonNoClobBook {
					t.Fatalf("family %s vol=%v depth=%v: reason = %s, want NO_CLOB_BOOK", fam, vol, depth, res.Reason)
				}
			}
		}
	}
}

func TestScreen_ExitRiskScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Equity = 10_000
	cfg.TargetPosFrac = 0.01
	e := New(cfg)

	res := e.Screen(models.FamilyA, f(3000), f(5000), true)
	if !res.OK {
		t.Fatalf("expected ok, got reason %s", res.Reason)
	}
	if res.S != 100 {
		t.Errorf("S = %v, want 100", res.S)
	}
	if res.ExitRisk == nil || math.Abs(*res.ExitRisk-100.0/3000.0) > 1e-12 {
		t.Errorf("exit risk = %v, want %.6f", res.ExitRisk, 100.0/3000.0)
	}
	if res.Depth5Min != 800 || res.Vol24hMin != 2000 {
		t.Errorf("thresholds = (%v, %v), want (800, 2000)", res.Depth5Min, res.Vol24hMin)
	}
	if res.ExitRiskWarn {
		t.Error("exit risk 0.033 should not trip the 0.05 warn level")
	}
}

func TestScreen_ExitRiskTooHigh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.A.VolMinMult = 5
	e := New(cfg)

	res := e.Screen(models.FamilyA, f(600), f(800), true)
	if res.Reason != ReasonExitRiskTooHigh {
		t.Fatalf("reason = %s, want EXIT_RISK_TOO_HIGH", res.Reason)
	}
	if res.ExitRisk == nil {
		t.Fatal("exit risk should be reported on EXIT_RISK_TOO_HIGH")
	}
	if res.OK {
		t.Error("should not be ok")
	}
}

func TestScreen_ExitRiskWarn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.H.VolMinMult = 5
	e := New(cfg)

	// 100 / 700 = 0.143: below H max 0.20, above H warn 0.10.
	res := e.Screen(models.FamilyH, f(700), f(300), true)
	if !res.OK {
		t.Fatalf("expected ok, got %s", res.Reason)
	}
	if !res.ExitRiskWarn {
		t.Error("expected exit risk warning")
	}
}

func TestScreen_ZeroVolumeGuarded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.A.VolMinMult = 0
	e := New(cfg)

	res := e.Screen(models.FamilyA, f(0), f(800), true)
	if res.Reason != ReasonExitRiskTooHigh {
		t.Fatalf("reason = %s, want EXIT_RISK_TOO_HIGH", res.Reason)
	}
	if res.ExitRisk == nil || math.IsInf(*res.ExitRisk, 0) || math.IsNaN(*res.ExitRisk) {
		t.Errorf("exit risk should be finite, got %v", res.ExitRisk)
	}
}

func TestScreen_Idempotent(t *testing.T) {
	e := New(DefaultConfig())
	a := e.Screen(models.FamilyA, f(3000), f(900), true)
	b := e.Screen(models.FamilyA, f(3000), f(900), true)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("screen not idempotent: %+v vs %+v", a, b)
	}
}
