package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"watchpost/engine"
	"watchpost/model"
)

// SQLite backs single-node and dev installs. Writes are serialized by
// the driver; the engine's per-check update model needs nothing more.
type SQLite struct {
	DB *sql.DB
}

func ConnectSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY under concurrent check workers.
	db.SetMaxOpenConns(1)

	s := &SQLite{DB: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() {
	s.DB.Close()
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS resources (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			type            TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'unknown',
			last_checked_at TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS checks (
			id                        TEXT PRIMARY KEY,
			resource_id               TEXT NOT NULL,
			name                      TEXT NOT NULL DEFAULT '',
			type                      TEXT NOT NULL,
			enabled                   BOOLEAN NOT NULL DEFAULT 1,
			url                       TEXT NOT NULL DEFAULT '',
			http_method               TEXT NOT NULL DEFAULT '',
			expected_status_code      INTEGER NOT NULL DEFAULT 0,
			auth_type                 TEXT NOT NULL DEFAULT '',
			auth_username             TEXT NOT NULL DEFAULT '',
			auth_password             TEXT NOT NULL DEFAULT '',
			auth_token                TEXT NOT NULL DEFAULT '',
			custom_headers            TEXT NOT NULL DEFAULT '{}',
			keyword_value             TEXT NOT NULL DEFAULT '',
			match_mode                TEXT NOT NULL DEFAULT '',
			ip_address                TEXT NOT NULL DEFAULT '',
			port                      INTEGER NOT NULL DEFAULT 0,
			expected_interval_seconds INTEGER NOT NULL DEFAULT 0,
			last_heartbeat_at         TIMESTAMP,
			azure_resource_id         TEXT NOT NULL DEFAULT '',
			metric_name               TEXT NOT NULL DEFAULT '',
			metric_namespace          TEXT NOT NULL DEFAULT '',
			timeframe_minutes         INTEGER NOT NULL DEFAULT 0,
			aggregation               TEXT NOT NULL DEFAULT '',
			comparison_operator       TEXT NOT NULL DEFAULT '',
			threshold_value           REAL NOT NULL DEFAULT 0,
			timeout_seconds           INTEGER NOT NULL DEFAULT 0,
			max_retries               INTEGER,
			retry_delay_ms            INTEGER,
			confirmation_delay_ms     INTEGER,
			failure_threshold         INTEGER NOT NULL DEFAULT 1,
			current_failure_count     INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_checks_resource ON checks(resource_id);

		CREATE TABLE IF NOT EXISTS check_results (
			id                 TEXT PRIMARY KEY,
			check_id           TEXT NOT NULL,
			status             TEXT NOT NULL,
			response_time_ms   REAL,
			status_code        INTEGER,
			ssl_expiry_date    TIMESTAMP,
			ssl_days_remaining INTEGER,
			error_message      TEXT NOT NULL DEFAULT '',
			checked_at         TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_check ON check_results(check_id, checked_at DESC);

		CREATE TABLE IF NOT EXISTS alert_rules (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			resource_id    TEXT NOT NULL DEFAULT '',
			resource_type  TEXT NOT NULL DEFAULT '',
			is_template    BOOLEAN NOT NULL DEFAULT 0,
			rule_type      TEXT NOT NULL,
			operator       TEXT NOT NULL DEFAULT 'gte',
			threshold      REAL NOT NULL DEFAULT 0,
			enabled        BOOLEAN NOT NULL DEFAULT 1,
			quiet_enabled  BOOLEAN NOT NULL DEFAULT 0,
			quiet_start    TEXT NOT NULL DEFAULT '',
			quiet_end      TEXT NOT NULL DEFAULT '',
			quiet_days     TEXT NOT NULL DEFAULT '',
			quiet_timezone TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS alert_rule_exclusions (
			rule_id     TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			PRIMARY KEY (rule_id, resource_id)
		);

		CREATE TABLE IF NOT EXISTS alert_rule_channels (
			rule_id    TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			PRIMARY KEY (rule_id, channel_id)
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id                 TEXT PRIMARY KEY,
			resource_id        TEXT NOT NULL,
			check_id           TEXT NOT NULL DEFAULT '',
			rule_id            TEXT NOT NULL DEFAULT '',
			severity           TEXT NOT NULL,
			message            TEXT NOT NULL,
			suppressed         BOOLEAN NOT NULL DEFAULT 0,
			suppression_reason TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_resource ON alerts(resource_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS maintenance_windows (
			id          TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			starts_at   TIMESTAMP NOT NULL,
			ends_at     TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notification_channels (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT 'webhook',
			webhook_url TEXT NOT NULL DEFAULT '',
			enabled     BOOLEAN NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS azure_resources (
			id                 TEXT PRIMARY KEY,
			resource_id        TEXT NOT NULL DEFAULT '',
			name               TEXT NOT NULL DEFAULT '',
			last_synced_at     TIMESTAMP,
			optimization_score REAL
		);

		CREATE TABLE IF NOT EXISTS azure_metric_samples (
			azure_resource_id TEXT NOT NULL,
			metric_name       TEXT NOT NULL,
			namespace         TEXT NOT NULL DEFAULT '',
			value             REAL NOT NULL,
			sampled_at        TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples ON azure_metric_samples(azure_resource_id, metric_name, sampled_at DESC);
	`)
	return err
}

func (s *SQLite) EnabledChecks(ctx context.Context, f engine.Filter) ([]model.CheckDefinition, error) {
	query := `SELECT ` + checkColumns + ` FROM checks WHERE enabled`
	args := []any{}
	switch {
	case f.CheckID != "":
		query += ` AND id = ?`
		args = append(args, f.CheckID)
	case f.ResourceID != "":
		query += ` AND resource_id = ?`
		args = append(args, f.ResourceID)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []model.CheckDefinition
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}

func (s *SQLite) Resource(ctx context.Context, id string) (*model.Resource, error) {
	var r model.Resource
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, name, type, status, last_checked_at FROM resources WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Type, &r.Status, &r.LastCheckedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLite) InMaintenance(ctx context.Context, resourceID string, at time.Time) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM maintenance_windows
		 WHERE resource_id = ? AND starts_at <= ? AND ends_at > ?`,
		resourceID, at, at,
	).Scan(&n)
	return n > 0, err
}

func (s *SQLite) RulesForResource(ctx context.Context, resourceID, resourceType string) ([]model.AlertRule, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, name, resource_id, resource_type, is_template, rule_type,
		        operator, threshold, enabled, quiet_enabled, quiet_start,
		        quiet_end, quiet_days, quiet_timezone
		 FROM alert_rules
		 WHERE enabled AND (
		       resource_id = ?
		       OR (is_template AND resource_type = ?
		           AND NOT EXISTS (
		               SELECT 1 FROM alert_rule_exclusions e
		               WHERE e.rule_id = alert_rules.id AND e.resource_id = ?)))`,
		resourceID, resourceType, resourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AlertRule
	for rows.Next() {
		var (
			r    model.AlertRule
			days string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.ResourceID, &r.ResourceType, &r.IsTemplate,
			&r.Type, &r.Operator, &r.Threshold, &r.Enabled, &r.Quiet.Enabled,
			&r.Quiet.Start, &r.Quiet.End, &days, &r.Quiet.Timezone); err != nil {
			return nil, err
		}
		r.Quiet.Days = splitDays(days)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rules {
		ids, err := s.ruleChannelIDs(ctx, rules[i].ID)
		if err != nil {
			return nil, err
		}
		rules[i].ChannelIDs = ids
	}
	return rules, nil
}

func (s *SQLite) ruleChannelIDs(ctx context.Context, ruleID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT channel_id FROM alert_rule_channels WHERE rule_id = ?`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) SetFailureCount(ctx context.Context, checkID string, count int) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE checks SET current_failure_count = ? WHERE id = ?`, count, checkID)
	return err
}

func (s *SQLite) InsertResult(ctx context.Context, r *model.CheckResult) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO check_results (id, check_id, status, response_time_ms, status_code,
		        ssl_expiry_date, ssl_days_remaining, error_message, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CheckID, r.Status, r.ResponseTimeMs, r.StatusCode,
		r.SSLExpiryDate, r.SSLDaysRemaining, r.ErrorMessage, r.CheckedAt,
	)
	return err
}

func (s *SQLite) UpdateResourceStatus(ctx context.Context, resourceID string, status model.ResourceStatus, at time.Time) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE resources SET status = ?, last_checked_at = ? WHERE id = ?`,
		status, at, resourceID)
	return err
}

func (s *SQLite) InsertAlert(ctx context.Context, a *model.Alert) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO alerts (id, resource_id, check_id, rule_id, severity, message,
		        suppressed, suppression_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ResourceID, a.CheckID, a.RuleID, a.Severity, a.Message,
		a.Suppressed, a.SuppressionReason, a.CreatedAt,
	)
	return err
}

func (s *SQLite) ChannelsForRule(ctx context.Context, ruleID string) ([]model.NotificationChannel, error) {
	return s.queryChannels(ctx,
		`SELECT c.id, c.name, c.kind, c.webhook_url, c.enabled
		 FROM notification_channels c
		 JOIN alert_rule_channels rc ON rc.channel_id = c.id
		 WHERE rc.rule_id = ? AND c.enabled`, ruleID)
}

func (s *SQLite) EnabledChannels(ctx context.Context) ([]model.NotificationChannel, error) {
	return s.queryChannels(ctx,
		`SELECT id, name, kind, webhook_url, enabled
		 FROM notification_channels WHERE enabled`)
}

func (s *SQLite) queryChannels(ctx context.Context, query string, args ...any) ([]model.NotificationChannel, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []model.NotificationChannel
	for rows.Next() {
		var c model.NotificationChannel
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.WebhookURL, &c.Enabled); err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	return channels, rows.Err()
}

func (s *SQLite) AzureResource(ctx context.Context, id string) (*model.AzureResource, error) {
	var a model.AzureResource
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, resource_id, name, last_synced_at, optimization_score
		 FROM azure_resources WHERE id = ?`, id,
	).Scan(&a.ID, &a.ResourceID, &a.Name, &a.LastSyncedAt, &a.OptimizationScore)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLite) MetricSamples(ctx context.Context, azureResourceID, metric, namespace string, since time.Time) ([]model.MetricSample, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT azure_resource_id, metric_name, namespace, value, sampled_at
		 FROM azure_metric_samples
		 WHERE azure_resource_id = ? AND metric_name = ?
		   AND (? = '' OR namespace = ?) AND sampled_at >= ?
		 ORDER BY sampled_at DESC`,
		azureResourceID, metric, namespace, namespace, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.MetricSample
	for rows.Next() {
		var sm model.MetricSample
		if err := rows.Scan(&sm.AzureResourceID, &sm.MetricName, &sm.Namespace, &sm.Value, &sm.SampledAt); err != nil {
			return nil, err
		}
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

func (s *SQLite) SetHeartbeat(ctx context.Context, checkID string, at time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE checks SET last_heartbeat_at = ? WHERE id = ? AND type = 'heartbeat'`,
		at, checkID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) ListResults(ctx context.Context, checkID string, limit int) ([]model.CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, check_id, status, response_time_ms, status_code,
	                 ssl_expiry_date, ssl_days_remaining, error_message, checked_at
	          FROM check_results`
	args := []any{}
	if checkID != "" {
		query += ` WHERE check_id = ? ORDER BY checked_at DESC LIMIT ?`
		args = append(args, checkID, limit)
	} else {
		query += ` ORDER BY checked_at DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.CheckResult
	for rows.Next() {
		var r model.CheckResult
		if err := rows.Scan(&r.ID, &r.CheckID, &r.Status, &r.ResponseTimeMs, &r.StatusCode,
			&r.SSLExpiryDate, &r.SSLDaysRemaining, &r.ErrorMessage, &r.CheckedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLite) ListAlerts(ctx context.Context, resourceID string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, resource_id, check_id, rule_id, severity, message,
	                 suppressed, suppression_reason, created_at
	          FROM alerts`
	args := []any{}
	if resourceID != "" {
		query += ` WHERE resource_id = ? ORDER BY created_at DESC LIMIT ?`
		args = append(args, resourceID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.ResourceID, &a.CheckID, &a.RuleID, &a.Severity,
			&a.Message, &a.Suppressed, &a.SuppressionReason, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLite) CountChecks(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM checks`).Scan(&n)
	return n, err
}

func (s *SQLite) InsertCheck(ctx context.Context, c *model.CheckDefinition) error {
	headers, err := json.Marshal(orEmpty(c.CustomHeaders))
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO checks (`+checkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		         ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ResourceID, c.Name, c.Type, c.Enabled, c.URL, c.HTTPMethod,
		c.ExpectedStatusCode, c.AuthType, c.AuthUsername, c.AuthPassword, c.AuthToken,
		string(headers), c.KeywordValue, c.MatchMode, c.IPAddress, c.Port,
		c.ExpectedIntervalSeconds, c.LastHeartbeatAt, c.AzureResourceID,
		c.MetricName, c.MetricNamespace, c.TimeframeMinutes, c.Aggregation,
		c.ComparisonOperator, c.ThresholdValue, c.TimeoutSeconds, c.Retry.MaxRetries,
		c.Retry.RetryDelayMs, c.Retry.ConfirmationDelayMs, c.FailureThreshold, c.CurrentFailureCount,
	)
	return err
}

func (s *SQLite) InsertResource(ctx context.Context, r *model.Resource) error {
	status := r.Status
	if status == "" {
		status = model.ResourceUnknown
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO resources (id, name, type, status, last_checked_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Type, status, r.LastCheckedAt)
	return err
}

func (s *SQLite) InsertRule(ctx context.Context, r *model.AlertRule) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO alert_rules (id, name, resource_id, resource_type, is_template,
		        rule_type, operator, threshold, enabled, quiet_enabled, quiet_start,
		        quiet_end, quiet_days, quiet_timezone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.ResourceID, r.ResourceType, r.IsTemplate,
		r.Type, r.Operator, r.Threshold, r.Enabled, r.Quiet.Enabled, r.Quiet.Start,
		r.Quiet.End, strings.Join(r.Quiet.Days, ","), r.Quiet.Timezone,
	)
	if err != nil {
		return err
	}
	for _, resID := range r.Exclusions {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT OR IGNORE INTO alert_rule_exclusions (rule_id, resource_id) VALUES (?, ?)`,
			r.ID, resID); err != nil {
			return err
		}
	}
	for _, chID := range r.ChannelIDs {
		if _, err := s.DB.ExecContext(ctx,
			`INSERT OR IGNORE INTO alert_rule_channels (rule_id, channel_id) VALUES (?, ?)`,
			r.ID, chID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) InsertChannel(ctx context.Context, c *model.NotificationChannel) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO notification_channels (id, name, kind, webhook_url, enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Kind, c.WebhookURL, c.Enabled)
	return err
}

func (s *SQLite) InsertMaintenanceWindow(ctx context.Context, w *model.MaintenanceWindow) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO maintenance_windows (id, resource_id, starts_at, ends_at)
		 VALUES (?, ?, ?, ?)`,
		w.ID, w.ResourceID, w.StartsAt, w.EndsAt)
	return err
}

func (s *SQLite) Healthy(ctx context.Context) error {
	var n int
	return s.DB.QueryRowContext(ctx, "SELECT 1").Scan(&n)
}
