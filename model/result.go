package model

import "time"

type CheckStatus string

const (
	StatusSuccess CheckStatus = "success"
	StatusFailure CheckStatus = "failure"
	StatusWarning CheckStatus = "warning"
)

// CheckResult is the outcome of a single probe attempt, or of a full
// retry cycle (the cycle's final result is the one persisted).
//
// ResponseTimeMs is overloaded: for network checks it carries
// elapsed milliseconds, for heartbeat the age of the last heartbeat, for
// azure_metric the computed aggregate, and for azure_health the
// optimization score.
type CheckResult struct {
	ID             string      `json:"id"`
	CheckID        string      `json:"checkId"`
	Status         CheckStatus `json:"status"`
	ResponseTimeMs *float64    `json:"responseTimeMs,omitempty"`
	StatusCode     *int        `json:"statusCode,omitempty"`

	// Reserved: the engine models certificate expiry but never collects
	// it, so both fields stay null.
	SSLExpiryDate    *time.Time `json:"sslExpiryDate,omitempty"`
	SSLDaysRemaining *int       `json:"sslDaysRemaining,omitempty"`

	ErrorMessage string    `json:"errorMessage,omitempty"`
	CheckedAt    time.Time `json:"checkedAt"`
}

func (r CheckResult) Failed() bool {
	return r.Status == StatusFailure
}

type ResourceStatus string

const (
	ResourceUp       ResourceStatus = "up"
	ResourceDegraded ResourceStatus = "degraded"
	ResourceDown     ResourceStatus = "down"
	ResourceUnknown  ResourceStatus = "unknown"
)
