package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"watchpost/model"
)

// scriptedProber returns one result per call, in order, and counts
// calls. The last result repeats if the script runs out.
type scriptedProber struct {
	script []model.CheckResult
	calls  int
}

func (p *scriptedProber) Probe(ctx context.Context, def *model.CheckDefinition) model.CheckResult {
	i := p.calls
	p.calls++
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	return p.script[i]
}

func failure(msg string) model.CheckResult {
	return model.CheckResult{Status: model.StatusFailure, ErrorMessage: msg}
}

func success() model.CheckResult {
	return model.CheckResult{Status: model.StatusSuccess}
}

// newTestRetrier wires a retrier whose sleeps record their durations
// instead of actually sleeping.
func newTestRetrier(p Prober, slept *[]time.Duration) *Retrier {
	r := NewRetrier(p, RetryDefaults{MaxRetries: 3, RetryDelayMs: 2000, ConfirmationDelayMs: 5000})
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return r
}

func TestRunCycleImmediateSuccess(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{success()}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	if res.Status != model.StatusSuccess {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if p.calls != 1 {
		t.Errorf("probe calls = %d, want 1", p.calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %d times, want 0", len(slept))
	}
}

func TestRunCycleWarningNotRetried(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{{Status: model.StatusWarning, ErrorMessage: "overdue"}}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	if res.Status != model.StatusWarning {
		t.Errorf("Status = %q, want warning", res.Status)
	}
	if p.calls != 1 {
		t.Errorf("probe calls = %d, want 1", p.calls)
	}
}

func TestRunCycleZeroRetries(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("boom")}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	zero := 0
	def := &model.CheckDefinition{ID: "c1", Retry: model.RetryConfig{MaxRetries: &zero}}
	res := r.RunCycle(context.Background(), def)

	if res.Status != model.StatusFailure {
		t.Errorf("Status = %q, want failure", res.Status)
	}
	if res.ErrorMessage != "boom" {
		t.Errorf("ErrorMessage = %q, want raw failure message", res.ErrorMessage)
	}
	if p.calls != 1 {
		t.Errorf("probe calls = %d, want exactly 1 with zero retries", p.calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %d times, want 0", len(slept))
	}
}

func TestRunCycleRetrySucceeds(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("503"), success()}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	if res.Status != model.StatusSuccess {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if p.calls != 2 {
		t.Errorf("probe calls = %d, want 2", p.calls)
	}
	if len(slept) != 1 || slept[0] != 2000*time.Millisecond {
		t.Errorf("slept %v, want one 2s retry delay", slept)
	}
}

func TestRunCycleConfirmationRecovers(t *testing.T) {
	// First attempt plus all retries fail, but the confirmation attempt
	// succeeds: the episode ends clean, with no lingering error message.
	p := &scriptedProber{script: []model.CheckResult{
		failure("503"), failure("503"), failure("503"), failure("503"),
		{Status: model.StatusSuccess, ErrorMessage: "stale message"},
	}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	if res.Status != model.StatusSuccess {
		t.Errorf("Status = %q, want success", res.Status)
	}
	if res.ErrorMessage != "" {
		t.Errorf("ErrorMessage = %q, want cleared", res.ErrorMessage)
	}
	if p.calls != 5 {
		t.Errorf("probe calls = %d, want 5 (initial + 3 retries + confirmation)", p.calls)
	}
}

func TestRunCycleConfirmedFailure(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("connection refused")}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	if res.Status != model.StatusFailure {
		t.Errorf("Status = %q, want failure", res.Status)
	}
	want := "Confirmed failure after 3 retries: connection refused"
	if res.ErrorMessage != want {
		t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, want)
	}
	if p.calls != 5 {
		t.Errorf("probe calls = %d, want 5", p.calls)
	}

	wantSleeps := []time.Duration{
		2000 * time.Millisecond,
		2000 * time.Millisecond,
		2000 * time.Millisecond,
		5000 * time.Millisecond,
	}
	if len(slept) != len(wantSleeps) {
		t.Fatalf("slept %d times, want %d", len(slept), len(wantSleeps))
	}
	for i, d := range wantSleeps {
		if slept[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, slept[i], d)
		}
	}
}

func TestRunCyclePerCheckOverrides(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("down")}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	one, hundred, threeHundred := 1, 100, 300
	def := &model.CheckDefinition{
		ID: "c1",
		Retry: model.RetryConfig{
			MaxRetries:          &one,
			RetryDelayMs:        &hundred,
			ConfirmationDelayMs: &threeHundred,
		},
	}
	res := r.RunCycle(context.Background(), def)

	if !strings.Contains(res.ErrorMessage, "Confirmed failure after 1 retries") {
		t.Errorf("ErrorMessage = %q, want confirmed failure with 1 retry", res.ErrorMessage)
	}
	wantSleeps := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}
	if len(slept) != 2 || slept[0] != wantSleeps[0] || slept[1] != wantSleeps[1] {
		t.Errorf("slept %v, want %v", slept, wantSleeps)
	}
}

func TestRunCycleEmptyFailureMessage(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("")}}
	var slept []time.Duration
	r := newTestRetrier(p, &slept)

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	want := "Confirmed failure after 3 retries: check failed"
	if res.ErrorMessage != want {
		t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, want)
	}
}

func TestRunCycleCancelledDuringRetry(t *testing.T) {
	p := &scriptedProber{script: []model.CheckResult{failure("down")}}
	r := NewRetrier(p, RetryDefaults{MaxRetries: 3, RetryDelayMs: 2000, ConfirmationDelayMs: 5000})
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	res := r.RunCycle(context.Background(), &model.CheckDefinition{ID: "c1"})

	// Cancellation returns the last observed result without the
	// confirmed-failure rewrite.
	if res.Status != model.StatusFailure {
		t.Errorf("Status = %q, want failure", res.Status)
	}
	if res.ErrorMessage != "down" {
		t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, "down")
	}
	if p.calls != 1 {
		t.Errorf("probe calls = %d, want 1", p.calls)
	}
}
