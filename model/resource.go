package model

import "time"

// Resource is the monitored entity a set of checks belongs to.
type Resource struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Type          string         `json:"type" yaml:"type"` // vm, app_service, database, ...
	Status        ResourceStatus `json:"status" yaml:"status"`
	LastCheckedAt *time.Time     `json:"lastCheckedAt,omitempty" yaml:"lastCheckedAt,omitempty"`
}

// MaintenanceWindow suspends checking for a resource while now is inside
// [StartsAt, EndsAt).
type MaintenanceWindow struct {
	ID         string    `json:"id" yaml:"id"`
	ResourceID string    `json:"resourceId" yaml:"resourceId"`
	StartsAt   time.Time `json:"startsAt" yaml:"startsAt"`
	EndsAt     time.Time `json:"endsAt" yaml:"endsAt"`
}

type NotificationChannel struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"` // slack, teams, webhook
	WebhookURL string `json:"webhookUrl" yaml:"webhookUrl"`
	Enabled    bool   `json:"enabled" yaml:"enabled"`
}
