package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PEPITO_BOT_TOKEN", "PEPITO_AUTHORIZED_USERS", "PEPITO_AUTHORIZED_GROUPS",
		"PEPITO_GROUP_ADMINS", "PEPITO_DEVS", "PEPITO_SSE_URL", "PEPITO_DB_PATH",
		"PEPITO_IMAGES_DIR", "PEPITO_SHOW_BTC_CHARTS", "PEPITO_SHOW_NEGATIVE_PRICE_CHARTS",
		"PEPITO_MAX_RETRIES", "PEPITO_BACKOFF_FACTOR", "PEPITO_STREAM_TIMEOUT",
		"PEPITO_POLLING_TIMEOUT", "PEPITO_DIGEST_ENABLED", "PEPITO_DIGEST_SCHEDULE",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("loadConfigFrom error: %v", err)
	}

	if cfg.Stream.URL != DefaultSSEURL {
		t.Errorf("Stream.URL = %q, want %q", cfg.Stream.URL, DefaultSSEURL)
	}
	if cfg.Storage.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.Storage.QueueSize, DefaultQueueSize)
	}
	if cfg.Retry.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.Retry.MaxRetries, DefaultMaxRetries)
	}
	if !reflect.DeepEqual(cfg.Retry.RetryStatuses, DefaultRetryStatuses) {
		t.Errorf("RetryStatuses = %v, want %v", cfg.Retry.RetryStatuses, DefaultRetryStatuses)
	}
	if !cfg.Charts.ShowBTCCharts {
		t.Error("ShowBTCCharts should default to true")
	}
	if cfg.Digest.Enabled {
		t.Error("digest should be disabled by default")
	}
	if cfg.Digest.Schedule != DefaultDigestSpec {
		t.Errorf("Digest.Schedule = %q, want %q", cfg.Digest.Schedule, DefaultDigestSpec)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"telegram": {"token": "abc123", "authorizedUsers": [1, 2], "authorizedGroups": [-100]},
		"stream": {"url": "https://example.com/sse"},
		"charts": {"showBtcCharts": false}
	}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfigFrom(path)
	if err != nil {
		t.Fatalf("loadConfigFrom error: %v", err)
	}

	if cfg.Telegram.Token != "abc123" {
		t.Errorf("Token = %q, want abc123", cfg.Telegram.Token)
	}
	if cfg.Stream.URL != "https://example.com/sse" {
		t.Errorf("Stream.URL = %q", cfg.Stream.URL)
	}
	if cfg.Charts.ShowBTCCharts {
		t.Error("ShowBTCCharts should be false from file")
	}
	// Unset fields still get defaults.
	if cfg.Stream.Timeout != DefaultStreamTimeout {
		t.Errorf("Stream.Timeout = %d, want default %d", cfg.Stream.Timeout, DefaultStreamTimeout)
	}
}

func TestLoadConfigRejectsBadJSON(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfigFrom(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEPITO_BOT_TOKEN", "env-token")
	t.Setenv("PEPITO_AUTHORIZED_USERS", "10, 20,30")
	t.Setenv("PEPITO_SSE_URL", "https://env.example.com/sse")
	t.Setenv("PEPITO_SHOW_BTC_CHARTS", "false")
	t.Setenv("PEPITO_MAX_RETRIES", "9")
	t.Setenv("PEPITO_DIGEST_ENABLED", "true")

	cfg, err := loadConfigFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("loadConfigFrom error: %v", err)
	}

	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Telegram.Token)
	}
	if want := []int64{10, 20, 30}; !reflect.DeepEqual(cfg.Telegram.AuthorizedUsers, want) {
		t.Errorf("AuthorizedUsers = %v, want %v", cfg.Telegram.AuthorizedUsers, want)
	}
	if cfg.Stream.URL != "https://env.example.com/sse" {
		t.Errorf("Stream.URL = %q", cfg.Stream.URL)
	}
	if cfg.Charts.ShowBTCCharts {
		t.Error("ShowBTCCharts should be overridden to false")
	}
	if cfg.Retry.MaxRetries != 9 {
		t.Errorf("MaxRetries = %d, want 9", cfg.Retry.MaxRetries)
	}
	if !cfg.Digest.Enabled {
		t.Error("digest should be enabled via env")
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		in   string
		want []int64
	}{
		{"1,2,3", []int64{1, 2, 3}},
		{" 1 , -100 ", []int64{1, -100}},
		{"1,,2", []int64{1, 2}},
		{"1,abc,2", []int64{1, 2}},
		{"", []int64{}},
	}
	for _, tt := range tests {
		if got := parseIDList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseIDList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecipients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.AuthorizedUsers = []int64{1, 2}
	cfg.Telegram.AuthorizedGroups = []int64{-100, -200}

	want := []int64{1, 2, -100, -200}
	if got := cfg.Recipients(); !reflect.DeepEqual(got, want) {
		t.Errorf("Recipients() = %v, want %v", got, want)
	}
}
