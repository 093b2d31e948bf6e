package model

import "time"

// AzureResource mirrors the row the external Azure sync job maintains.
// The engine only reads it: azure_health checks compare LastSyncedAt
// against a staleness cutoff, and azure_metric checks read samples
// linked to it.
type AzureResource struct {
	ID                string     `json:"id"`
	ResourceID        string     `json:"resourceId"`
	Name              string     `json:"name"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt,omitempty"`
	OptimizationScore *float64   `json:"optimizationScore,omitempty"`
}

// MetricSample is one aggregated metric datapoint written by the sync job.
type MetricSample struct {
	AzureResourceID string    `json:"azureResourceId"`
	MetricName      string    `json:"metricName"`
	Namespace       string    `json:"namespace"`
	Value           float64   `json:"value"`
	SampledAt       time.Time `json:"sampledAt"`
}
