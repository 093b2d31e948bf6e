package model

import "time"

type RuleType string

const (
	RuleDowntime            RuleType = "downtime"
	RuleSSLExpiry           RuleType = "ssl_expiry"
	RuleResponseTime        RuleType = "response_time"
	RuleConsecutiveFailures RuleType = "consecutive_failures"
	RuleAzureMetric         RuleType = "azure_metric"
	RuleAzureHealth         RuleType = "azure_health"
)

// QuietHours is a window during which a rule's alerts still fire but
// notifications are suppressed. Start/End are "HH:MM" local to Timezone.
// An empty Days list means every day.
type QuietHours struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Start    string   `json:"start,omitempty" yaml:"start,omitempty"`
	End      string   `json:"end,omitempty" yaml:"end,omitempty"`
	Days     []string `json:"days,omitempty" yaml:"days,omitempty"`
	Timezone string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// AlertRule is either a direct rule bound to one resource, or a template
// bound to a resource type and applied to every matching resource except
// those in Exclusions.
type AlertRule struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	ResourceID   string   `json:"resourceId,omitempty" yaml:"resourceId,omitempty"`
	ResourceType string   `json:"resourceType,omitempty" yaml:"resourceType,omitempty"`
	IsTemplate   bool     `json:"isTemplate" yaml:"isTemplate"`
	Type         RuleType `json:"type" yaml:"type"`
	Operator     Operator `json:"operator" yaml:"operator"`
	Threshold    float64  `json:"threshold" yaml:"threshold"`
	Enabled      bool     `json:"enabled" yaml:"enabled"`

	Quiet      QuietHours `json:"quietHours" yaml:"quietHours"`
	Exclusions []string   `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
	ChannelIDs []string   `json:"channelIds,omitempty" yaml:"channelIds,omitempty"`
}

// Alert is one notification-worthy event. RuleID is empty for alerts
// synthesized by the failure-threshold fallback path.
type Alert struct {
	ID                string    `json:"id"`
	ResourceID        string    `json:"resourceId"`
	CheckID           string    `json:"checkId,omitempty"`
	RuleID            string    `json:"ruleId,omitempty"`
	Severity          string    `json:"severity"`
	Message           string    `json:"message"`
	Suppressed        bool      `json:"notificationSuppressed"`
	SuppressionReason string    `json:"suppressionReason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

const SeverityCritical = "critical"
