package model

import "time"

type CheckType string

const (
	CheckHTTP        CheckType = "http"
	CheckKeyword     CheckType = "keyword"
	CheckSSL         CheckType = "ssl"
	CheckPort        CheckType = "port"
	CheckPing        CheckType = "ping"
	CheckHeartbeat   CheckType = "heartbeat"
	CheckAzureMetric CheckType = "azure_metric"
	CheckAzureHealth CheckType = "azure_health"
)

type MatchMode string

const (
	MatchContains    MatchMode = "contains"
	MatchNotContains MatchMode = "not_contains"
)

type Aggregation string

const (
	AggAverage Aggregation = "average"
	AggMax     Aggregation = "max"
	AggMin     Aggregation = "min"
	AggTotal   Aggregation = "total"
)

// Operator is a numeric comparison: gt, gte, lt, lte.
type Operator string

const (
	OpGT  Operator = "gt"
	OpGTE Operator = "gte"
	OpLT  Operator = "lt"
	OpLTE Operator = "lte"
)

// Compare applies the operator. Unknown operators never match.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGT:
		return value > threshold
	case OpGTE:
		return value >= threshold
	case OpLT:
		return value < threshold
	case OpLTE:
		return value <= threshold
	}
	return false
}

// RetryConfig controls the retry/confirmation protocol for one check.
// Nil fields fall back to the engine defaults (3 / 2000ms / 5000ms).
type RetryConfig struct {
	MaxRetries          *int `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelayMs        *int `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
	ConfirmationDelayMs *int `json:"confirmationDelayMs,omitempty" yaml:"confirmationDelayMs,omitempty"`
}

// CheckDefinition is one configured probe. Only the fields relevant to
// Type are consulted; the rest are ignored, never validated.
type CheckDefinition struct {
	ID         string    `json:"id" yaml:"id"`
	ResourceID string    `json:"resourceId" yaml:"resourceId"`
	Name       string    `json:"name" yaml:"name"`
	Type       CheckType `json:"type" yaml:"type"`
	Enabled    bool      `json:"enabled" yaml:"enabled"`

	// http / keyword / ssl
	URL                string            `json:"url,omitempty" yaml:"url,omitempty"`
	HTTPMethod         string            `json:"httpMethod,omitempty" yaml:"httpMethod,omitempty"`
	ExpectedStatusCode int               `json:"expectedStatusCode,omitempty" yaml:"expectedStatusCode,omitempty"`
	AuthType           string            `json:"authType,omitempty" yaml:"authType,omitempty"` // basic, bearer
	AuthUsername       string            `json:"authUsername,omitempty" yaml:"authUsername,omitempty"`
	AuthPassword       string            `json:"authPassword,omitempty" yaml:"authPassword,omitempty"`
	AuthToken          string            `json:"authToken,omitempty" yaml:"authToken,omitempty"`
	CustomHeaders      map[string]string `json:"customHeaders,omitempty" yaml:"customHeaders,omitempty"`
	KeywordValue       string            `json:"keywordValue,omitempty" yaml:"keywordValue,omitempty"`
	MatchMode          MatchMode         `json:"matchMode,omitempty" yaml:"matchMode,omitempty"`

	// port / ping
	IPAddress string `json:"ipAddress,omitempty" yaml:"ipAddress,omitempty"`
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`

	// heartbeat
	ExpectedIntervalSeconds int        `json:"expectedIntervalSeconds,omitempty" yaml:"expectedIntervalSeconds,omitempty"`
	LastHeartbeatAt         *time.Time `json:"lastHeartbeatAt,omitempty" yaml:"lastHeartbeatAt,omitempty"`

	// azure_metric / azure_health
	AzureResourceID    string      `json:"azureResourceId,omitempty" yaml:"azureResourceId,omitempty"`
	MetricName         string      `json:"metricName,omitempty" yaml:"metricName,omitempty"`
	MetricNamespace    string      `json:"metricNamespace,omitempty" yaml:"metricNamespace,omitempty"`
	TimeframeMinutes   int         `json:"timeframeMinutes,omitempty" yaml:"timeframeMinutes,omitempty"`
	Aggregation        Aggregation `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	ComparisonOperator Operator    `json:"comparisonOperator,omitempty" yaml:"comparisonOperator,omitempty"`
	ThresholdValue     float64     `json:"thresholdValue,omitempty" yaml:"thresholdValue,omitempty"`

	TimeoutSeconds      int         `json:"timeoutSeconds" yaml:"timeoutSeconds"`
	Retry               RetryConfig `json:"retry" yaml:"retry"`
	FailureThreshold    int         `json:"failureThreshold" yaml:"failureThreshold"`
	CurrentFailureCount int         `json:"currentFailureCount" yaml:"currentFailureCount"`
}

// Timeout returns the per-attempt network timeout, defaulting to 10s.
func (c *CheckDefinition) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
