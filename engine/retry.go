package engine

import (
	"context"
	"fmt"
	"time"

	"watchpost/model"
)

// RetryDefaults are the engine-level fallbacks for checks that leave
// their retry config unset.
type RetryDefaults struct {
	MaxRetries          int
	RetryDelayMs        int
	ConfirmationDelayMs int
}

// Retrier drives a Prober through the retry/confirmation protocol and
// produces the single result the rest of the system sees.
//
// The protocol: one attempt; on failure, up to MaxRetries further
// attempts each preceded by RetryDelay; if all fail, one confirmation
// attempt after ConfirmationDelay. A successful confirmation erases the
// episode (error message cleared); a failed confirmation is rewritten as
// a confirmed failure. The added latency on real failures is intentional
// and scales with per-check configuration.
type Retrier struct {
	Prober   Prober
	Defaults RetryDefaults

	// Sleep is swappable for tests. It must honor ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrier(p Prober, d RetryDefaults) *Retrier {
	return &Retrier{Prober: p, Defaults: d, Sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Retrier) config(def *model.CheckDefinition) (maxRetries int, retryDelay, confirmDelay time.Duration) {
	maxRetries = r.Defaults.MaxRetries
	if def.Retry.MaxRetries != nil {
		maxRetries = *def.Retry.MaxRetries
	}
	delayMs := r.Defaults.RetryDelayMs
	if def.Retry.RetryDelayMs != nil {
		delayMs = *def.Retry.RetryDelayMs
	}
	confirmMs := r.Defaults.ConfirmationDelayMs
	if def.Retry.ConfirmationDelayMs != nil {
		confirmMs = *def.Retry.ConfirmationDelayMs
	}
	return maxRetries, time.Duration(delayMs) * time.Millisecond, time.Duration(confirmMs) * time.Millisecond
}

// RunCycle executes one full check cycle and returns its final result.
func (r *Retrier) RunCycle(ctx context.Context, def *model.CheckDefinition) model.CheckResult {
	first := r.Prober.Probe(ctx, def)
	if first.Status != model.StatusFailure {
		return first
	}

	maxRetries, retryDelay, confirmDelay := r.config(def)
	if maxRetries == 0 {
		return first
	}

	last := first
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := r.Sleep(ctx, retryDelay); err != nil {
			return last
		}
		last = r.Prober.Probe(ctx, def)
		if last.Status != model.StatusFailure {
			return last
		}
	}

	// All retries spent. One confirmation attempt decides whether this
	// was a transient blip or a sustained outage.
	if err := r.Sleep(ctx, confirmDelay); err != nil {
		return last
	}
	confirm := r.Prober.Probe(ctx, def)
	if confirm.Status != model.StatusFailure {
		confirm.ErrorMessage = ""
		return confirm
	}

	msg := confirm.ErrorMessage
	if msg == "" {
		msg = last.ErrorMessage
	}
	if msg == "" {
		msg = "check failed"
	}
	confirm.ErrorMessage = fmt.Sprintf("Confirmed failure after %d retries: %s", maxRetries, msg)
	return confirm
}
