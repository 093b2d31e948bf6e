package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"watchpost/engine"
	"watchpost/model"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func ConnectPostgres(databaseURL string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	db := &Postgres{Pool: pool}
	if err := db.migrate(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *Postgres) Close() {
	db.Pool.Close()
}

func (db *Postgres) migrate(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS resources (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			type            TEXT NOT NULL DEFAULT '',
			status          TEXT NOT NULL DEFAULT 'unknown',
			last_checked_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS checks (
			id                        TEXT PRIMARY KEY,
			resource_id               TEXT NOT NULL,
			name                      TEXT NOT NULL DEFAULT '',
			type                      TEXT NOT NULL,
			enabled                   BOOLEAN NOT NULL DEFAULT true,
			url                       TEXT NOT NULL DEFAULT '',
			http_method               TEXT NOT NULL DEFAULT '',
			expected_status_code      INT NOT NULL DEFAULT 0,
			auth_type                 TEXT NOT NULL DEFAULT '',
			auth_username             TEXT NOT NULL DEFAULT '',
			auth_password             TEXT NOT NULL DEFAULT '',
			auth_token                TEXT NOT NULL DEFAULT '',
			custom_headers            JSONB NOT NULL DEFAULT '{}',
			keyword_value             TEXT NOT NULL DEFAULT '',
			match_mode                TEXT NOT NULL DEFAULT '',
			ip_address                TEXT NOT NULL DEFAULT '',
			port                      INT NOT NULL DEFAULT 0,
			expected_interval_seconds INT NOT NULL DEFAULT 0,
			last_heartbeat_at         TIMESTAMPTZ,
			azure_resource_id         TEXT NOT NULL DEFAULT '',
			metric_name               TEXT NOT NULL DEFAULT '',
			metric_namespace          TEXT NOT NULL DEFAULT '',
			timeframe_minutes         INT NOT NULL DEFAULT 0,
			aggregation               TEXT NOT NULL DEFAULT '',
			comparison_operator       TEXT NOT NULL DEFAULT '',
			threshold_value           DOUBLE PRECISION NOT NULL DEFAULT 0,
			timeout_seconds           INT NOT NULL DEFAULT 0,
			max_retries               INT,
			retry_delay_ms            INT,
			confirmation_delay_ms     INT,
			failure_threshold         INT NOT NULL DEFAULT 1,
			current_failure_count     INT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_checks_resource ON checks(resource_id);

		CREATE TABLE IF NOT EXISTS check_results (
			id                 TEXT PRIMARY KEY,
			check_id           TEXT NOT NULL,
			status             TEXT NOT NULL,
			response_time_ms   DOUBLE PRECISION,
			status_code        INT,
			ssl_expiry_date    TIMESTAMPTZ,
			ssl_days_remaining INT,
			error_message      TEXT NOT NULL DEFAULT '',
			checked_at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_results_check ON check_results(check_id, checked_at DESC);

		CREATE TABLE IF NOT EXISTS alert_rules (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL DEFAULT '',
			resource_id    TEXT NOT NULL DEFAULT '',
			resource_type  TEXT NOT NULL DEFAULT '',
			is_template    BOOLEAN NOT NULL DEFAULT false,
			rule_type      TEXT NOT NULL,
			operator       TEXT NOT NULL DEFAULT 'gte',
			threshold      DOUBLE PRECISION NOT NULL DEFAULT 0,
			enabled        BOOLEAN NOT NULL DEFAULT true,
			quiet_enabled  BOOLEAN NOT NULL DEFAULT false,
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
			suppressed         BOOLEAN NOT NULL DEFAULT false,
			suppression_reason TEXT NOT NULL DEFAULT '',
			created_at         TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_resource ON alerts(resource_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS maintenance_windows (
			id          TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			starts_at   TIMESTAMPTZ NOT NULL,
			ends_at     TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notification_channels (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			kind        TEXT NOT NULL DEFAULT 'webhook',
			webhook_url TEXT NOT NULL DEFAULT '',
			enabled     BOOLEAN NOT NULL DEFAULT true
		);

		CREATE TABLE IF NOT EXISTS azure_resources (
			id                 TEXT PRIMARY KEY,
			resource_id        TEXT NOT NULL DEFAULT '',
			name               TEXT NOT NULL DEFAULT '',
			last_synced_at     TIMESTAMPTZ,
			optimization_score DOUBLE PRECISION
		);

		CREATE TABLE IF NOT EXISTS azure_metric_samples (
			azure_resource_id TEXT NOT NULL,
			metric_name       TEXT NOT NULL,
			namespace         TEXT NOT NULL DEFAULT '',
			value             DOUBLE PRECISION NOT NULL,
			sampled_at        TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_samples ON azure_metric_samples(azure_resource_id, metric_name, sampled_at DESC);
	`)
	return err
}

const checkColumns = `id, resource_id, name, type, enabled, url, http_method,
	expected_status_code, auth_type, auth_username, auth_password, auth_token,
	custom_headers, keyword_value, match_mode, ip_address, port,
	expected_interval_seconds, last_heartbeat_at, azure_resource_id,
	metric_name, metric_namespace, timeframe_minutes, aggregation,
	comparison_operator, threshold_value, timeout_seconds, max_retries,
	retry_delay_ms, confirmation_delay_ms, failure_threshold, current_failure_count`

func scanCheck(row interface{ Scan(...any) error }) (model.CheckDefinition, error) {
	var (
		c       model.CheckDefinition
		headers []byte
	)
	err := row.Scan(
		&c.ID, &c.ResourceID, &c.Name, &c.Type, &c.Enabled, &c.URL, &c.HTTPMethod,
		&c.ExpectedStatusCode, &c.AuthType, &c.AuthUsername, &c.AuthPassword, &c.AuthToken,
		&headers, &c.KeywordValue, &c.MatchMode, &c.IPAddress, &c.Port,
		&c.ExpectedIntervalSeconds, &c.LastHeartbeatAt, &c.AzureResourceID,
		&c.MetricName, &c.MetricNamespace, &c.TimeframeMinutes, &c.Aggregation,
		&c.ComparisonOperator, &c.ThresholdValue, &c.TimeoutSeconds, &c.Retry.MaxRetries,
		&c.Retry.RetryDelayMs, &c.Retry.ConfirmationDelayMs, &c.FailureThreshold, &c.CurrentFailureCount,
	)
	if err != nil {
		return c, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &c.CustomHeaders); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (db *Postgres) EnabledChecks(ctx context.Context, f engine.Filter) ([]model.CheckDefinition, error) {
	query := `SELECT ` + checkColumns + ` FROM checks WHERE enabled`
	args := []any{}
	switch {
	case f.CheckID != "":
		query += ` AND id = $1`
		args = append(args, f.CheckID)
	case f.ResourceID != "":
		query += ` AND resource_id = $1`
		args = append(args, f.ResourceID)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
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

func (db *Postgres) Resource(ctx context.Context, id string) (*model.Resource, error) {
	var r model.Resource
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, type, status, last_checked_at FROM resources WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.Type, &r.Status, &r.LastCheckedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *Postgres) InMaintenance(ctx context.Context, resourceID string, at time.Time) (bool, error) {
	var n int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM maintenance_windows
		 WHERE resource_id = $1 AND starts_at <= $2 AND ends_at > $2`,
		resourceID, at,
	).Scan(&n)
	return n > 0, err
}

func (db *Postgres) RulesForResource(ctx context.Context, resourceID, resourceType string) ([]model.AlertRule, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, resource_id, resource_type, is_template, rule_type,
		        operator, threshold, enabled, quiet_enabled, quiet_start,
		        quiet_end, quiet_days, quiet_timezone
		 FROM alert_rules
		 WHERE enabled AND (
		       resource_id = $1
		       OR (is_template AND resource_type = $2
		           AND NOT EXISTS (
		               SELECT 1 FROM alert_rule_exclusions e
		               WHERE e.rule_id = alert_rules.id AND e.resource_id = $1)))`,
		resourceID, resourceType,
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
		ids, err := db.ruleChannelIDs(ctx, rules[i].ID)
		if err != nil {
			return nil, err
		}
		rules[i].ChannelIDs = ids
	}
	return rules, nil
}

func (db *Postgres) ruleChannelIDs(ctx context.Context, ruleID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT channel_id FROM alert_rule_channels WHERE rule_id = $1`, ruleID)
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

func (db *Postgres) SetFailureCount(ctx context.Context, checkID string, count int) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE checks SET current_failure_count = $1 WHERE id = $2`, count, checkID)
	return err
}

func (db *Postgres) InsertResult(ctx context.Context, r *model.CheckResult) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO check_results (id, check_id, status, response_time_ms, status_code,
		        ssl_expiry_date, ssl_days_remaining, error_message, checked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.CheckID, r.Status, r.ResponseTimeMs, r.StatusCode,
		r.SSLExpiryDate, r.SSLDaysRemaining, r.ErrorMessage, r.CheckedAt,
	)
	return err
}

func (db *Postgres) UpdateResourceStatus(ctx context.Context, resourceID string, status model.ResourceStatus, at time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE resources SET status = $1, last_checked_at = $2 WHERE id = $3`,
		status, at, resourceID)
	return err
}

func (db *Postgres) InsertAlert(ctx context.Context, a *model.Alert) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO alerts (id, resource_id, check_id, rule_id, severity, message,
		        suppressed, suppression_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ResourceID, a.CheckID, a.RuleID, a.Severity, a.Message,
		a.Suppressed, a.SuppressionReason, a.CreatedAt,
	)
	return err
}

func (db *Postgres) ChannelsForRule(ctx context.Context, ruleID string) ([]model.NotificationChannel, error) {
	return db.queryChannels(ctx,
		`SELECT c.id, c.name, c.kind, c.webhook_url, c.enabled
		 FROM notification_channels c
		 JOIN alert_rule_channels rc ON rc.channel_id = c.id
		 WHERE rc.rule_id = $1 AND c.enabled`, ruleID)
}

func (db *Postgres) EnabledChannels(ctx context.Context) ([]model.NotificationChannel, error) {
	return db.queryChannels(ctx,
		`SELECT id, name, kind, webhook_url, enabled
		 FROM notification_channels WHERE enabled`)
}

func (db *Postgres) queryChannels(ctx context.Context, query string, args ...any) ([]model.NotificationChannel, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
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

func (db *Postgres) AzureResource(ctx context.Context, id string) (*model.AzureResource, error) {
	var a model.AzureResource
	err := db.Pool.QueryRow(ctx,
		`SELECT id, resource_id, name, last_synced_at, optimization_score
		 FROM azure_resources WHERE id = $1`, id,
	).Scan(&a.ID, &a.ResourceID, &a.Name, &a.LastSyncedAt, &a.OptimizationScore)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *Postgres) MetricSamples(ctx context.Context, azureResourceID, metric, namespace string, since time.Time) ([]model.MetricSample, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT azure_resource_id, metric_name, namespace, value, sampled_at
		 FROM azure_metric_samples
		 WHERE azure_resource_id = $1 AND metric_name = $2
		   AND ($3 = '' OR namespace = $3) AND sampled_at >= $4
		 ORDER BY sampled_at DESC`,
		azureResourceID, metric, namespace, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []model.MetricSample
	for rows.Next() {
		var s model.MetricSample
		if err := rows.Scan(&s.AzureResourceID, &s.MetricName, &s.Namespace, &s.Value, &s.SampledAt); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (db *Postgres) SetHeartbeat(ctx context.Context, checkID string, at time.Time) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE checks SET last_heartbeat_at = $1 WHERE id = $2 AND type = 'heartbeat'`,
		at, checkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *Postgres) ListResults(ctx context.Context, checkID string, limit int) ([]model.CheckResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, check_id, status, response_time_ms, status_code,
	                 ssl_expiry_date, ssl_days_remaining, error_message, checked_at
	          FROM check_results`
	args := []any{}
	if checkID != "" {
		query += ` WHERE check_id = $1 ORDER BY checked_at DESC LIMIT $2`
		args = append(args, checkID, limit)
	} else {
		query += ` ORDER BY checked_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
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

func (db *Postgres) ListAlerts(ctx context.Context, resourceID string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, resource_id, check_id, rule_id, severity, message,
	                 suppressed, suppression_reason, created_at
	          FROM alerts`
	args := []any{}
	if resourceID != "" {
		query += ` WHERE resource_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, resourceID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
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

func (db *Postgres) CountChecks(ctx context.Context) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM checks`).Scan(&n)
	return n, err
}

func (db *Postgres) InsertCheck(ctx context.Context, c *model.CheckDefinition) error {
	headers, err := json.Marshal(orEmpty(c.CustomHeaders))
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO checks (`+checkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		         $29, $30, $31, $32)`,
		c.ID, c.ResourceID, c.Name, c.Type, c.Enabled, c.URL, c.HTTPMethod,
		c.ExpectedStatusCode, c.AuthType, c.AuthUsername, c.AuthPassword, c.AuthToken,
		headers, c.KeywordValue, c.MatchMode, c.IPAddress, c.Port,
		c.ExpectedIntervalSeconds, c.LastHeartbeatAt, c.AzureResourceID,
		c.MetricName, c.MetricNamespace, c.TimeframeMinutes, c.Aggregation,
		c.ComparisonOperator, c.ThresholdValue, c.TimeoutSeconds, c.Retry.MaxRetries,
		c.Retry.RetryDelayMs, c.Retry.ConfirmationDelayMs, c.FailureThreshold, c.CurrentFailureCount,
	)
	return err
}

func (db *Postgres) InsertResource(ctx context.Context, r *model.Resource) error {
	status := r.Status
	if status == "" {
		status = model.ResourceUnknown
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO resources (id, name, type, status, last_checked_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		r.ID, r.Name, r.Type, status, r.LastCheckedAt)
	return err
}

func (db *Postgres) InsertRule(ctx context.Context, r *model.AlertRule) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO alert_rules (id, name, resource_id, resource_type, is_template,
		        rule_type, operator, threshold, enabled, quiet_enabled, quiet_start,
		        quiet_end, quiet_days, quiet_timezone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.Name, r.ResourceID, r.ResourceType, r.IsTemplate,
		r.Type, r.Operator, r.Threshold, r.Enabled, r.Quiet.Enabled, r.Quiet.Start,
		r.Quiet.End, strings.Join(r.Quiet.Days, ","), r.Quiet.Timezone,
	)
	if err != nil {
		return err
	}
	for _, resID := range r.Exclusions {
		if _, err := db.Pool.Exec(ctx,
			`INSERT INTO alert_rule_exclusions (rule_id, resource_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, r.ID, resID); err != nil {
			return err
		}
	}
	for _, chID := range r.ChannelIDs {
		if _, err := db.Pool.Exec(ctx,
			`INSERT INTO alert_rule_channels (rule_id, channel_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, r.ID, chID); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) InsertChannel(ctx context.Context, c *model.NotificationChannel) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO notification_channels (id, name, kind, webhook_url, enabled)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Kind, c.WebhookURL, c.Enabled)
	return err
}

func (db *Postgres) InsertMaintenanceWindow(ctx context.Context, w *model.MaintenanceWindow) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO maintenance_windows (id, resource_id, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4)`,
		w.ID, w.ResourceID, w.StartsAt, w.EndsAt)
	return err
}

func (db *Postgres) Healthy(ctx context.Context) error {
	var n int
	return db.Pool.QueryRow(ctx, "SELECT 1").Scan(&n)
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
