package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"watchpost/alert"
	"watchpost/hub"
	"watchpost/model"
	"watchpost/notify"
)

// Runner executes one batch invocation: probe every selected check
// through the retry protocol, update failure streaks, aggregate resource
// status, evaluate alert rules, and fan out notifications.
type Runner struct {
	Store      Store
	Retrier    *Retrier
	Counter    *FailureCounter
	Dispatcher notify.Dispatcher
	WS         *hub.Hub // optional

	// Parallelism bounds concurrent checks. Each check's own
	// retry/confirmation sequence stays strictly sequential.
	Parallelism int

	Now func() time.Time
}

type SkippedCheck struct {
	CheckID string `json:"checkId"`
	Reason  string `json:"reason"`
}

// Summary is the invocation output. It reflects actual outcomes,
// including partial persistence failures.
type Summary struct {
	Total             int                 `json:"total"`
	Skipped           int                 `json:"skipped"`
	Success           int                 `json:"success"`
	Warning           int                 `json:"warning"`
	Failed            int                 `json:"failed"`
	AlertsCreated     int                 `json:"alertsCreated"`
	AlertsSuppressed  int                 `json:"alertsSuppressed"`
	PersistErrors     int                 `json:"persistErrors"`
	Results           []model.CheckResult `json:"results"`
	SkippedChecks     []SkippedCheck      `json:"skippedChecks"`
}

// outcome pairs a check's final result with its post-update streak.
type outcome struct {
	def    model.CheckDefinition
	result model.CheckResult
	count  int
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run processes all enabled checks matching the filter and returns the
// invocation summary. Only a failure to read the check definitions is an
// error; everything downstream is best-effort and accounted for in the
// summary.
func (r *Runner) Run(ctx context.Context, f Filter) (*Summary, error) {
	checks, err := r.Store.EnabledChecks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load checks: %w", err)
	}

	sum := &Summary{Total: len(checks)}
	now := r.now()

	var runnable []model.CheckDefinition
	for _, def := range checks {
		inMaint, err := r.Store.InMaintenance(ctx, def.ResourceID, now)
		if err != nil {
			log.Printf("engine: maintenance lookup for %s: %v", def.ID, err)
		}
		if inMaint {
			sum.Skipped++
			sum.SkippedChecks = append(sum.SkippedChecks, SkippedCheck{CheckID: def.ID, Reason: "in maintenance window"})
			continue
		}
		runnable = append(runnable, def)
	}

	outcomes := r.runChecks(ctx, runnable, sum)

	for _, o := range outcomes {
		switch o.result.Status {
		case model.StatusSuccess:
			sum.Success++
		case model.StatusWarning:
			sum.Warning++
		case model.StatusFailure:
			sum.Failed++
		}
		sum.Results = append(sum.Results, o.result)
	}

	r.updateResourceStatuses(ctx, outcomes, sum)
	r.evaluateAlerts(ctx, outcomes, sum)

	return sum, nil
}

// runChecks drives every runnable check through its retry cycle with
// bounded parallelism, persisting each final result and failure count as
// it completes.
func (r *Runner) runChecks(ctx context.Context, checks []model.CheckDefinition, sum *Summary) []outcome {
	par := r.Parallelism
	if par <= 0 {
		par = 8
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []outcome
	)
	sem := make(chan struct{}, par)

	for i := range checks {
		def := checks[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := r.Retrier.RunCycle(ctx, &def)
			res.ID = uuid.NewString()

			count, err := r.Counter.Update(ctx, &def, res.Failed())
			if err != nil {
				log.Printf("engine: persist failure count for %s: %v", def.ID, err)
				mu.Lock()
				sum.PersistErrors++
				mu.Unlock()
			}

			if err := r.Store.InsertResult(ctx, &res); err != nil {
				log.Printf("engine: persist result for %s: %v", def.ID, err)
				mu.Lock()
				sum.PersistErrors++
				mu.Unlock()
			}

			if r.WS != nil {
				r.WS.Broadcast(hub.Event{
					Type:       "check.result",
					ResourceID: def.ResourceID,
					Payload:    res,
				})
			}

			mu.Lock()
			outcomes = append(outcomes, outcome{def: def, result: res, count: count})
			mu.Unlock()
		}()
	}
	wg.Wait()
	return outcomes
}

// updateResourceStatuses runs only after every check has its final
// result, so a resource's status reflects a consistent snapshot of the
// cycle.
func (r *Runner) updateResourceStatuses(ctx context.Context, outcomes []outcome, sum *Summary) {
	byResource := make(map[string][]model.CheckResult)
	for _, o := range outcomes {
		byResource[o.def.ResourceID] = append(byResource[o.def.ResourceID], o.result)
	}

	now := r.now()
	for resourceID, results := range byResource {
		status := AggregateStatus(results)
		if err := r.Store.UpdateResourceStatus(ctx, resourceID, status, now); err != nil {
			log.Printf("engine: update status for resource %s: %v", resourceID, err)
			sum.PersistErrors++
			continue
		}
		if r.WS != nil {
			r.WS.Broadcast(hub.Event{
				Type:       "resource.status",
				ResourceID: resourceID,
				Payload:    map[string]string{"status": string(status)},
			})
		}
	}
}

func (r *Runner) evaluateAlerts(ctx context.Context, outcomes []outcome, sum *Summary) {
	resources := make(map[string]*model.Resource)
	resource := func(id string) *model.Resource {
		if res, ok := resources[id]; ok {
			return res
		}
		res, err := r.Store.Resource(ctx, id)
		if err != nil {
			log.Printf("engine: load resource %s: %v", id, err)
			res = &model.Resource{ID: id, Name: id}
		}
		resources[id] = res
		return res
	}

	now := r.now()
	for _, o := range outcomes {
		res := resource(o.def.ResourceID)

		rules, err := r.Store.RulesForResource(ctx, o.def.ResourceID, res.Type)
		if err != nil {
			log.Printf("engine: load rules for %s: %v", o.def.ResourceID, err)
			rules = nil
		}

		fired := false
		for i := range rules {
			rule := rules[i]
			if !alert.Fires(&rule, &o.result, o.count) {
				continue
			}
			fired = true

			suppressed, reason := alert.Suppressed(rule.Quiet, now)
			a := &model.Alert{
				ID:                uuid.NewString(),
				ResourceID:        o.def.ResourceID,
				CheckID:           o.def.ID,
				RuleID:            rule.ID,
				Severity:          model.SeverityCritical,
				Message:           alert.Message(&rule, &o.result, res.Name, o.count),
				Suppressed:        suppressed,
				SuppressionReason: reason,
				CreatedAt:         now,
			}
			r.recordAlert(ctx, a, &rule, res, sum)
		}

		// Fallback: a failing check that hit its threshold with no
		// configured rule firing still produces a bare alert. Failures
		// are never silently unalarmed.
		threshold := o.def.FailureThreshold
		if threshold < 1 {
			threshold = 1
		}
		if o.result.Failed() && o.count >= threshold && !fired {
			a := &model.Alert{
				ID:         uuid.NewString(),
				ResourceID: o.def.ResourceID,
				CheckID:    o.def.ID,
				Severity:   model.SeverityCritical,
				Message:    alert.FallbackMessage(&o.result, res.Name, o.count),
				CreatedAt:  now,
			}
			r.recordAlert(ctx, a, nil, res, sum)
		}
	}
}

// recordAlert persists an alert and, unless suppressed, notifies every
// resolved channel: the rule's linked channels if any, otherwise all
// globally enabled channels.
func (r *Runner) recordAlert(ctx context.Context, a *model.Alert, rule *model.AlertRule, res *model.Resource, sum *Summary) {
	if err := r.Store.InsertAlert(ctx, a); err != nil {
		log.Printf("engine: persist alert for %s: %v", a.ResourceID, err)
		sum.PersistErrors++
	}
	sum.AlertsCreated++

	if r.WS != nil {
		r.WS.Broadcast(hub.Event{Type: "alert.created", ResourceID: a.ResourceID, Payload: a})
	}

	if a.Suppressed {
		sum.AlertsSuppressed++
		return
	}
	if r.Dispatcher == nil {
		return
	}

	var channels []model.NotificationChannel
	var err error
	if rule != nil && len(rule.ChannelIDs) > 0 {
		channels, err = r.Store.ChannelsForRule(ctx, rule.ID)
	} else {
		channels, err = r.Store.EnabledChannels(ctx)
	}
	if err != nil {
		log.Printf("engine: resolve channels for alert %s: %v", a.ID, err)
		return
	}

	p := notify.Payload{
		Title:        fmt.Sprintf("Alert: %s", res.Name),
		Message:      a.Message,
		Severity:     a.Severity,
		ResourceName: res.Name,
	}
	for _, ch := range channels {
		if err := r.Dispatcher.Send(ctx, ch, p); err != nil {
			log.Printf("engine: notify channel %s: %v", ch.Name, err)
		}
	}
}
