package scaling

import "testing"

func TestDamp_LargerOfFixedAndPctStepWins(t *testing.T) {
	// current=100, required=10: fixed step=5, pct step=20% of 100=20.
	// The larger permitted decrease (20) wins, per the resolved open
	// question in §4.6/§9: min_allowed = 100-20 = 80.
	info := ASGInfo{Name: "A", Min: 0, Max: 200, Desired: 100}
	params := Params{ScaleDownStepFixed: 5, ScaleDownStepPct: 0.20}

	d := damp("A", info, 10, params)
	if d.Final != 80 {
		t.Errorf("expected final=80 (pct step wins), got %d", d.Final)
	}
	if d.Reason != ReasonScaleDownClamped {
		t.Errorf("expected scale_down_clamped, got %s", d.Reason)
	}
}

func TestDamp_ScaleUpNeverDamped(t *testing.T) {
	info := ASGInfo{Name: "A", Min: 0, Max: 200, Desired: 3}
	params := Params{ScaleDownStepFixed: 1}

	d := damp("A", info, 50, params)
	if d.Final != 50 {
		t.Errorf("expected unbounded scale-up to 50, got %d", d.Final)
	}
	if d.Reason != ReasonScaleUp {
		t.Errorf("expected scale_up, got %s", d.Reason)
	}
}

func TestDamp_ClampedToMax(t *testing.T) {
	info := ASGInfo{Name: "A", Min: 0, Max: 10, Desired: 3}
	params := Params{ScaleDownStepFixed: 1}

	d := damp("A", info, 50, params)
	if d.Final != 10 {
		t.Errorf("expected final clamped to max=10, got %d", d.Final)
	}
}

func TestDamp_ClampedToMin(t *testing.T) {
	info := ASGInfo{Name: "A", Min: 5, Max: 10, Desired: 6}
	params := Params{ScaleDownStepFixed: 10}

	d := damp("A", info, 0, params)
	if d.Final != 5 {
		t.Errorf("expected final clamped to min=5, got %d", d.Final)
	}
}

func TestDamp_NoOpWhenUnchanged(t *testing.T) {
	info := ASGInfo{Name: "A", Min: 0, Max: 10, Desired: 4}
	params := Params{ScaleDownStepFixed: 1}

	d := damp("A", info, 4, params)
	if d.Changed() {
		t.Error("expected no-op decision to report unchanged")
	}
	if d.Reason != ReasonUnchanged {
		t.Errorf("expected unchanged, got %s", d.Reason)
	}
}
