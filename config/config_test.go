package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that would override defaults
	os.Unsetenv("WATCHPOST_PORT")
	os.Unsetenv("WATCHPOST_DATABASE_URL")
	os.Unsetenv("WATCHPOST_MAX_RETRIES")
	os.Unsetenv("WATCHPOST_RETRY_DELAY_MS")
	os.Unsetenv("WATCHPOST_CONFIRMATION_DELAY_MS")
	os.Unsetenv("WATCHPOST_SCHEDULE")

	cfg := Load()

	if cfg.Port != "8710" {
		t.Errorf("Port = %q, want 8710", cfg.Port)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.RetryDelayMs != 2000 {
		t.Errorf("RetryDelayMs = %d, want 2000", cfg.RetryDelayMs)
	}
	if cfg.ConfirmationDelayMs != 5000 {
		t.Errorf("ConfirmationDelayMs = %d, want 5000", cfg.ConfirmationDelayMs)
	}
	if cfg.Parallelism != 8 {
		t.Errorf("Parallelism = %d, want 8", cfg.Parallelism)
	}
	if cfg.Schedule != "@every 1m" {
		t.Errorf("Schedule = %q, want @every 1m", cfg.Schedule)
	}
	if cfg.CycleTimeoutSeconds != 0 {
		t.Errorf("CycleTimeoutSeconds = %d, want 0", cfg.CycleTimeoutSeconds)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WATCHPOST_PORT", "9999")
	t.Setenv("WATCHPOST_DATABASE_URL", "sqlite:///tmp/watchpost.db")
	t.Setenv("WATCHPOST_MAX_RETRIES", "1")
	t.Setenv("WATCHPOST_RETRY_DELAY_MS", "100")
	t.Setenv("WATCHPOST_SCHEDULE", "@every 30s")
	t.Setenv("WATCHPOST_API_TOKEN", "secret")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.DatabaseURL != "sqlite:///tmp/watchpost.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want 1", cfg.MaxRetries)
	}
	if cfg.RetryDelayMs != 100 {
		t.Errorf("RetryDelayMs = %d, want 100", cfg.RetryDelayMs)
	}
	if cfg.Schedule != "@every 30s" {
		t.Errorf("Schedule = %q", cfg.Schedule)
	}
	if cfg.APIToken != "secret" {
		t.Errorf("APIToken = %q", cfg.APIToken)
	}
}

func TestEnvIntBadValue(t *testing.T) {
	t.Setenv("WATCHPOST_MAX_RETRIES", "lots")
	cfg := Load()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want fallback 3 on unparseable value", cfg.MaxRetries)
	}
}
