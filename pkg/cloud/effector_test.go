package cloud

import (
	"context"
	"testing"

	"nodescaler/pkg/scaling"
)

func TestApply_NoOpOnUnchanged(t *testing.T) {
	client := NewFakeClient(ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3})
	decisions := []scaling.Decision{{ASG: "A", Current: 3, Final: 3, Reason: scaling.ReasonUnchanged}}

	results := Apply(context.Background(), client, decisions, DefaultEffectorOptions())

	if results[0].Applied {
		t.Error("expected no-op decision to not be applied")
	}
	got, _ := client.Desired("A")
	if got != 3 {
		t.Errorf("expected desired capacity unchanged at 3, got %d", got)
	}
}

func TestApply_ChangedCallsSetDesiredCapacity(t *testing.T) {
	client := NewFakeClient(ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3})
	decisions := []scaling.Decision{{ASG: "A", Current: 3, Final: 6, Reason: scaling.ReasonScaleUp}}

	results := Apply(context.Background(), client, decisions, DefaultEffectorOptions())

	if !results[0].Applied {
		t.Fatalf("expected decision to be applied, err=%v", results[0].Err)
	}
	got, _ := client.Desired("A")
	if got != 6 {
		t.Errorf("expected desired capacity 6, got %d", got)
	}
}

func TestApply_OneFailureDoesNotAbortOthers(t *testing.T) {
	client := NewFakeClient(
		ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3},
		ASGInfo{Name: "B", Min: 1, Max: 10, Desired: 3},
	)
	client.RejectNames = map[string]bool{"A": true}
	decisions := []scaling.Decision{
		{ASG: "A", Current: 3, Final: 6, Reason: scaling.ReasonScaleUp},
		{ASG: "B", Current: 3, Final: 6, Reason: scaling.ReasonScaleUp},
	}

	opts := DefaultEffectorOptions()
	opts.MaxRetries = 1
	results := Apply(context.Background(), client, decisions, opts)

	if results[0].Err == nil {
		t.Error("expected ASG A to report an error")
	}
	if !results[1].Applied {
		t.Fatalf("expected ASG B to still be applied, err=%v", results[1].Err)
	}
	got, _ := client.Desired("B")
	if got != 6 {
		t.Errorf("expected ASG B desired capacity 6, got %d", got)
	}
}

func TestApply_DecisionErrorSkipsEffectorCall(t *testing.T) {
	client := NewFakeClient(ASGInfo{Name: "A", Min: 1, Max: 10, Desired: 3})
	decisions := []scaling.Decision{{ASG: "A", Current: 3, Final: 3, Err: errBoom{}}}

	results := Apply(context.Background(), client, decisions, DefaultEffectorOptions())
	if results[0].Applied {
		t.Error("expected decision with Err set to never reach the cloud client")
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
