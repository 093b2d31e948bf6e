package engine

import (
	"context"
	"time"

	"watchpost/model"
)

// Filter narrows an invocation to one check or one resource. The zero
// value selects every enabled check.
type Filter struct {
	CheckID    string
	ResourceID string
}

// Store is the persistence surface the engine consumes. All reads
// reflect state no older than the start of the current invocation;
// writes are best-effort per record (one failed write never blocks the
// rest of the cycle).
type Store interface {
	EnabledChecks(ctx context.Context, f Filter) ([]model.CheckDefinition, error)
	Resource(ctx context.Context, id string) (*model.Resource, error)
	InMaintenance(ctx context.Context, resourceID string, at time.Time) (bool, error)

	// RulesForResource returns direct rules for the resource plus enabled
	// template rules matching resourceType, minus templates excluding it.
	RulesForResource(ctx context.Context, resourceID, resourceType string) ([]model.AlertRule, error)

	SetFailureCount(ctx context.Context, checkID string, count int) error
	InsertResult(ctx context.Context, r *model.CheckResult) error
	UpdateResourceStatus(ctx context.Context, resourceID string, status model.ResourceStatus, at time.Time) error
	InsertAlert(ctx context.Context, a *model.Alert) error

	ChannelsForRule(ctx context.Context, ruleID string) ([]model.NotificationChannel, error)
	EnabledChannels(ctx context.Context) ([]model.NotificationChannel, error)

	// Azure tables, written by the external sync job.
	AzureResource(ctx context.Context, id string) (*model.AzureResource, error)
	MetricSamples(ctx context.Context, azureResourceID, metric, namespace string, since time.Time) ([]model.MetricSample, error)
}
