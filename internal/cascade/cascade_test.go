package cascade

import (
	"math"
	"reflect"
	"testing"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/models"
)

func f(v float64) *float64 { return models.Float(v) }

func baseInput(mid, spread, depth float64) Input {
	return Input{
		Mid:          f(mid),
		Spread:       f(spread),
		Depth5:       f(depth),
		MedianSpread: f(0.01),
		MedianDepth5: f(1000),
	}
}

func TestStreaming_FiresWithoutPriorMid(t *testing.T) {
	d := NewStreaming(DefaultConfig())
	sig, next := d.Detect(baseInput(0.5, 0.025, 500), models.CascadeState{})

	if !sig.Fired || sig.Outcome != models.OutcomeCascadeFired {
		t.Fatalf("expected fired cascade, got %+v", sig)
	}
	if math.Abs(sig.Strength-2.0/3.0) > 1e-12 {
		t.Errorf("Strength = %v, want 0.667", sig.Strength)
	}
	if sig.Direction != nil {
		t.Errorf("Direction = %v, want nil without prior mid", *sig.Direction)
	}
	want := []string{models.CondSpreadExpansion, models.CondDepthCollapse}
	if !reflect.DeepEqual(sig.Details, want) {
		t.Errorf("Details = %v, want %v", sig.Details, want)
	}
	if next.LastMid == nil || *next.LastMid != 0.5 || *next.LastSpread != 0.025 || *next.LastDepth5 != 500 {
		t.Errorf("next state = %+v, want current observation", next)
	}
}

func TestStreaming_SingleConditionDoesNotFire(t *testing.T) {
	d := NewStreaming(DefaultConfig())
	sig, _ := d.Detect(baseInput(0.5, 0.015, 500), models.CascadeState{})

	if sig.Fired {
		t.Fatal("one condition should not fire")
	}
	if sig.Outcome != models.OutcomeNoCascade {
		t.Errorf("Outcome = %v, want NO_CASCADE", sig.Outcome)
	}
	if !reflect.DeepEqual(sig.Details, []string{models.CondDepthCollapse}) {
		t.Errorf("Details = %v, want [DEPTH_COLLAPSE]", sig.Details)
	}
	if sig.Strength != 0 || sig.Direction != nil {
		t.Errorf("non-firing signal should carry no strength or direction: %+v", sig)
	}
}

func TestStreaming_NoConditions(t *testing.T) {
	d := NewStreaming(DefaultConfig())
	sig, _ := d.Detect(baseInput(0.5, 0.01, 1000), models.CascadeState{LastMid: f(0.5)})
	if sig.Fired || len(sig.Details) != 0 {
		t.Errorf("expected quiet signal, got %+v", sig)
	}
	if sig.DetailString() != "NO_CASCADE" {
		t.Errorf("DetailString() = %q, want NO_CASCADE", sig.DetailString())
	}
}

func TestStreaming_Direction(t *testing.T) {
	tests := []struct {
		name     string
		prior    float64
		mid      float64
		want     models.Direction
		strength float64
	}{
		// |0.6-0.5| >= 2*0.025 adds the mid jump
		{"rise fades up", 0.5, 0.6, models.FadeUp, 1},
		{"fall fades down", 0.6, 0.5, models.FadeDown, 1},
		{"flat fades down", 0.5, 0.5, models.FadeDown, 2.0 / 3.0},
	}
	d := NewStreaming(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, _ := d.Detect(baseInput(tt.mid, 0.025, 500), models.CascadeState{LastMid: f(tt.prior)})
			if !sig.Fired {
				t.Fatalf("expected fire, got %+v", sig)
			}
			if sig.Direction == nil || *sig.Direction != tt.want {
				t.Errorf("Direction = %v, want %v", sig.Direction, tt.want)
			}
			if math.Abs(sig.Strength-tt.strength) > 1e-12 {
				t.Errorf("Strength = %v, want %v", sig.Strength, tt.strength)
			}
		})
	}
}

func TestStreaming_Degenerate(t *testing.T) {
	d := NewStreaming(DefaultConfig())

	missing := baseInput(0.5, 0.02, 500)
	missing.Depth5 = nil
	sig, next := d.Detect(missing, models.CascadeState{LastMid: f(0.4)})
	if sig.Outcome != models.OutcomeMissingData || sig.Fired {
		t.Errorf("Outcome = %v, want MISSING_DATA", sig.Outcome)
	}
	// state is replaced even when the observation is incomplete
	if next.LastDepth5 != nil || next.LastMid == nil || *next.LastMid != 0.5 {
		t.Errorf("next state = %+v", next)
	}

	history := baseInput(0.5, 0.02, 500)
	history.MedianDepth5 = nil
	if sig, _ := d.Detect(history, models.CascadeState{}); sig.Outcome != models.OutcomeInsufficientHistory {
		t.Errorf("Outcome = %v, want INSUFFICIENT_HISTORY", sig.Outcome)
	}

	zeroMedians := baseInput(0.5, 0.5, 0)
	zeroMedians.MedianSpread = f(0)
	zeroMedians.MedianDepth5 = f(0)
	if sig, _ := d.Detect(zeroMedians, models.CascadeState{}); sig.Fired || len(sig.Details) != 0 {
		t.Errorf("zero medians should trigger nothing, got %+v", sig)
	}
}

func TestStreaming_SpreadBoundaryIsInclusive(t *testing.T) {
	d := NewStreaming(DefaultConfig())
	sig, _ := d.Detect(baseInput(0.5, 0.02, 500), models.CascadeState{})
	if !sig.Fired {
		t.Errorf("spread exactly at 2x median should count, got %+v", sig)
	}
}

func standaloneInput(mid, windowVol float64, history []float64) Input {
	in := baseInput(mid, 0.025, 900)
	in.MidSigma = 0.02
	in.WindowVolume = windowVol
	in.PMWVHistory = history
	return in
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestStandalone_ThreeOfFour(t *testing.T) {
	d := NewStandalone(DefaultConfig())
	// spread expansion, mid jump (0.1 >= 0.04) and PMWV 0.01 >= 0.001
	sig, _ := d.Detect(standaloneInput(0.6, 10, repeat(0.001, 30)), models.CascadeState{LastMid: f(0.5)})

	if !sig.Fired {
		t.Fatalf("expected fire, got %+v", sig)
	}
	if sig.Strength != 0.75 {
		t.Errorf("Strength = %v, want 0.75", sig.Strength)
	}
	if sig.Direction == nil || *sig.Direction != models.FadeUp {
		t.Errorf("Direction = %v, want FADE_UP", sig.Direction)
	}
	want := []string{models.CondSpreadExpansion, models.CondMidJump, models.CondPMWVExtreme}
	if !reflect.DeepEqual(sig.Details, want) {
		t.Errorf("Details = %v, want %v", sig.Details, want)
	}
}

func TestStandalone_ShortHistorySkipsPMWV(t *testing.T) {
	d := NewStandalone(DefaultConfig())
	sig, _ := d.Detect(standaloneInput(0.6, 10, repeat(0.001, 29)), models.CascadeState{LastMid: f(0.5)})

	if sig.Fired {
		t.Fatalf("two conditions should not fire the standalone detector: %+v", sig)
	}
	want := []string{models.CondSpreadExpansion, models.CondMidJump}
	if !reflect.DeepEqual(sig.Details, want) {
		t.Errorf("Details = %v, want %v", sig.Details, want)
	}
}

func TestStandalone_NoPriorMidAlwaysHasDirection(t *testing.T) {
	d := NewStandalone(DefaultConfig())
	in := standaloneInput(0.5, 10, repeat(0, 40))
	in.Depth5 = f(500)
	// dmid is 0: no jump, but pmwv 0 meets a zero quantile
	sig, _ := d.Detect(in, models.CascadeState{})

	if !sig.Fired {
		t.Fatalf("expected fire, got %+v", sig)
	}
	if sig.Direction == nil || *sig.Direction != models.FadeDown {
		t.Errorf("Direction = %v, want FADE_DOWN", sig.Direction)
	}
}

func TestStandalone_ZeroSigmaNeverJumps(t *testing.T) {
	d := NewStandalone(DefaultConfig())
	in := standaloneInput(0.9, 10, nil)
	in.MidSigma = 0
	sig, _ := d.Detect(in, models.CascadeState{LastMid: f(0.1)})
	for _, r := range sig.Details {
		if r == models.CondMidJump {
			t.Error("mid jump should need a positive sigma")
		}
	}
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"empty", nil, 0.5, 0},
		{"median interpolates", []float64{4, 1, 3, 2}, 0.5, 2.5},
		{"p95", []float64{0, 10}, 0.95, 9.5},
		{"max", []float64{3, 1, 2}, 1, 3},
		{"min", []float64{3, 1, 2}, 0, 1},
		{"clamped", []float64{3, 1, 2}, 7, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Quantile(tt.values, tt.q); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Quantile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", DetectorStreaming, DetectorStandalone} {
		cfg := DefaultConfig()
		cfg.Detector = name
		d, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%q) error = %v", name, err)
		}
		if name != "" && d.Name() != name {
			t.Errorf("Name() = %q, want %q", d.Name(), name)
		}
	}
	cfg := DefaultConfig()
	cfg.Detector = "oracle"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown detector")
	}
}

func TestTracker_CarriesPriorMid(t *testing.T) {
	tr := NewTracker(NewStreaming(DefaultConfig()))

	first := tr.Step("m", baseInput(0.5, 0.01, 1000))
	if first.Fired {
		t.Fatalf("quiet observation fired: %+v", first)
	}
	second := tr.Step("m", baseInput(0.6, 0.025, 500))
	if !second.Fired || second.Direction == nil || *second.Direction != models.FadeUp {
		t.Errorf("second step = %+v, want FADE_UP fire", second)
	}
	if second.Strength != 1 {
		t.Errorf("Strength = %v, want 1", second.Strength)
	}

	if _, ok := tr.State("other"); ok {
		t.Error("unseen instrument should have no state")
	}
	restored := NewTracker(NewStreaming(DefaultConfig()))
	restored.Restore(tr.Export())
	s, ok := restored.State("m")
	if !ok || s.LastMid == nil || *s.LastMid != 0.6 {
		t.Errorf("restored state = %+v", s)
	}
}
