// Package store provides the persistence backends. Postgres (pgx) is
// the production backend; sqlite serves single-node and dev installs.
// Both implement the same Store surface, which the engine consumes
// through its narrower engine.Store view.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"watchpost/engine"
	"watchpost/model"
)

// ErrNotFound is returned for lookups and targeted updates that match
// no row.
var ErrNotFound = errors.New("not found")

type Store interface {
	engine.Store

	// Heartbeat receiver path: public clients write the timestamp the
	// heartbeat executor reads.
	SetHeartbeat(ctx context.Context, checkID string, at time.Time) error

	ListResults(ctx context.Context, checkID string, limit int) ([]model.CheckResult, error)
	ListAlerts(ctx context.Context, resourceID string, limit int) ([]model.Alert, error)

	// Seed bootstrap.
	CountChecks(ctx context.Context) (int, error)
	InsertCheck(ctx context.Context, c *model.CheckDefinition) error
	InsertResource(ctx context.Context, r *model.Resource) error
	InsertRule(ctx context.Context, r *model.AlertRule) error
	InsertChannel(ctx context.Context, c *model.NotificationChannel) error
	InsertMaintenanceWindow(ctx context.Context, w *model.MaintenanceWindow) error

	Healthy(ctx context.Context) error
	Close()
}

// Open connects to the backend selected by the URL scheme and runs
// migrations: postgres://... or postgresql://... for Postgres,
// sqlite://path for sqlite.
func Open(databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return ConnectPostgres(databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return ConnectSQLite(strings.TrimPrefix(databaseURL, "sqlite://"))
	}
	return nil, fmt.Errorf("unsupported database URL %q", databaseURL)
}

// Quiet-hours day lists are stored as a comma-joined string so both
// backends share one representation.
func splitDays(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

