// Package alert decides whether alert rules fire for check results and
// whether quiet hours suppress their notifications.
package alert

import (
	"fmt"

	"watchpost/model"
)

// Fires reports whether a rule triggers for one final check result.
// consecutiveFailures is the post-update streak for the result's check.
func Fires(rule *model.AlertRule, res *model.CheckResult, consecutiveFailures int) bool {
	if !rule.Enabled {
		return false
	}

	switch rule.Type {
	case model.RuleConsecutiveFailures:
		return rule.Operator.Compare(float64(consecutiveFailures), rule.Threshold)

	case model.RuleResponseTime:
		if res.ResponseTimeMs == nil {
			return false
		}
		return rule.Operator.Compare(*res.ResponseTimeMs, rule.Threshold)

	case model.RuleSSLExpiry:
		// Days-remaining is modeled but never collected, so this rule
		// type cannot currently fire.
		if res.SSLDaysRemaining == nil {
			return false
		}
		return rule.Operator.Compare(float64(*res.SSLDaysRemaining), rule.Threshold)

	case model.RuleDowntime:
		// Coarse proxy: one failing result counts as 100% downtime,
		// anything else as 0%.
		downtime := 0.0
		if res.Failed() {
			downtime = 100.0
		}
		return rule.Operator.Compare(downtime, rule.Threshold)

	case model.RuleAzureMetric, model.RuleAzureHealth:
		// Azure checks repurpose ResponseTimeMs to carry the aggregate
		// value (metric) or optimization score (health).
		if res.ResponseTimeMs == nil {
			return false
		}
		return rule.Operator.Compare(*res.ResponseTimeMs, rule.Threshold)
	}
	return false
}

// Message renders the alert text for a fired rule.
func Message(rule *model.AlertRule, res *model.CheckResult, resourceName string, consecutiveFailures int) string {
	switch rule.Type {
	case model.RuleConsecutiveFailures:
		return fmt.Sprintf("%s: %d consecutive check failures (threshold %s %.0f)",
			resourceName, consecutiveFailures, rule.Operator, rule.Threshold)
	case model.RuleResponseTime:
		return fmt.Sprintf("%s: response time %.0fms (threshold %s %.0fms)",
			resourceName, *res.ResponseTimeMs, rule.Operator, rule.Threshold)
	case model.RuleSSLExpiry:
		return fmt.Sprintf("%s: certificate expires in %d days (threshold %s %.0f)",
			resourceName, *res.SSLDaysRemaining, rule.Operator, rule.Threshold)
	case model.RuleDowntime:
		return fmt.Sprintf("%s is down: %s", resourceName, orDefault(res.ErrorMessage, "check failed"))
	case model.RuleAzureMetric:
		return fmt.Sprintf("%s: metric value %.2f (threshold %s %.2f)",
			resourceName, *res.ResponseTimeMs, rule.Operator, rule.Threshold)
	case model.RuleAzureHealth:
		return fmt.Sprintf("%s: azure health score %.0f (threshold %s %.0f)",
			resourceName, *res.ResponseTimeMs, rule.Operator, rule.Threshold)
	}
	return fmt.Sprintf("%s: alert rule %s fired", resourceName, rule.Name)
}

// FallbackMessage renders the bare threshold alert used when a failing
// check reached its failure threshold but no configured rule fired.
func FallbackMessage(res *model.CheckResult, resourceName string, consecutiveFailures int) string {
	return fmt.Sprintf("%s: check failed %d times in a row: %s",
		resourceName, consecutiveFailures, orDefault(res.ErrorMessage, "check failed"))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
