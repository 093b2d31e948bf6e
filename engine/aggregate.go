package engine

import "watchpost/model"

// AggregateStatus reduces a resource's final check results for one cycle
// into a single status. Order matters: no results is unknown, all
// failures is down, any failure or warning is degraded, otherwise up.
func AggregateStatus(results []model.CheckResult) model.ResourceStatus {
	if len(results) == 0 {
		return model.ResourceUnknown
	}

	failures, warnings := 0, 0
	for _, r := range results {
		switch r.Status {
		case model.StatusFailure:
			failures++
		case model.StatusWarning:
			warnings++
		}
	}

	switch {
	case failures == len(results):
		return model.ResourceDown
	case failures > 0 || warnings > 0:
		return model.ResourceDegraded
	default:
		return model.ResourceUp
	}
}
