package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultSSEURL         = "https://api.thecatdoor.com/sse/v1/events"
	DefaultDBFile         = "pepito.db"
	DefaultImagesDir      = "images"
	DefaultMaxRetries     = 5
	DefaultBackoffFactor  = 0.2
	DefaultStreamTimeout  = 30
	DefaultPollingTimeout = 20
	DefaultQueueSize      = 256
	DefaultDigestSpec     = "0 0 8 * * *"
)

// DefaultRetryStatuses are the HTTP responses the fetch client retries.
var DefaultRetryStatuses = []int{500, 502, 503, 504}

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Stream   StreamConfig   `json:"stream"`
	Storage  StorageConfig  `json:"storage"`
	Charts   ChartsConfig   `json:"charts"`
	Digest   DigestConfig   `json:"digest"`
	Retry    RetryConfig    `json:"retry"`
}

type TelegramConfig struct {
	Token            string  `json:"token"`
	AuthorizedUsers  []int64 `json:"authorizedUsers"`
	AuthorizedGroups []int64 `json:"authorizedGroups"`
	GroupAdmins      []int64 `json:"groupAdmins"`
	Devs             []int64 `json:"devs"`
	PollingTimeout   int     `json:"pollingTimeout"`
}

type StreamConfig struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
}

type StorageConfig struct {
	DBPath    string `json:"dbPath"`
	ImagesDir string `json:"imagesDir"`
	QueueSize int    `json:"queueSize"`
}

type ChartsConfig struct {
	ShowBTCCharts           bool `json:"showBtcCharts"`
	ShowNegativePriceCharts bool `json:"showNegativePriceCharts"`
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

type RetryConfig struct {
	MaxRetries    int     `json:"maxRetries"`
	BackoffFactor float64 `json:"backoffFactor"`
	RetryStatuses []int   `json:"retryStatuses"`
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			PollingTimeout: DefaultPollingTimeout,
		},
		Stream: StreamConfig{
			URL:     DefaultSSEURL,
			Timeout: DefaultStreamTimeout,
		},
		Storage: StorageConfig{
			DBPath:    filepath.Join(ConfigDir(), DefaultDBFile),
			ImagesDir: filepath.Join(ConfigDir(), DefaultImagesDir),
			QueueSize: DefaultQueueSize,
		},
		Charts: ChartsConfig{
			ShowBTCCharts:           true,
			ShowNegativePriceCharts: true,
		},
		Digest: DigestConfig{
			Enabled:  false,
			Schedule: DefaultDigestSpec,
		},
		Retry: RetryConfig{
			MaxRetries:    DefaultMaxRetries,
			BackoffFactor: DefaultBackoffFactor,
			RetryStatuses: DefaultRetryStatuses,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".pepitobot")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return loadConfigFrom(ConfigPath())
}

func loadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Stream.URL == "" {
		cfg.Stream.URL = DefaultSSEURL
	}
	if cfg.Stream.Timeout <= 0 {
		cfg.Stream.Timeout = DefaultStreamTimeout
	}
	if cfg.Telegram.PollingTimeout <= 0 {
		cfg.Telegram.PollingTimeout = DefaultPollingTimeout
	}
	if cfg.Storage.QueueSize <= 0 {
		cfg.Storage.QueueSize = DefaultQueueSize
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = DefaultMaxRetries
	}
	if cfg.Retry.BackoffFactor <= 0 {
		cfg.Retry.BackoffFactor = DefaultBackoffFactor
	}
	if len(cfg.Retry.RetryStatuses) == 0 {
		cfg.Retry.RetryStatuses = DefaultRetryStatuses
	}
	if cfg.Digest.Schedule == "" {
		cfg.Digest.Schedule = DefaultDigestSpec
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("PEPITO_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if ids := os.Getenv("PEPITO_AUTHORIZED_USERS"); ids != "" {
		cfg.Telegram.AuthorizedUsers = parseIDList(ids)
	}
	if ids := os.Getenv("PEPITO_AUTHORIZED_GROUPS"); ids != "" {
		cfg.Telegram.AuthorizedGroups = parseIDList(ids)
	}
	if ids := os.Getenv("PEPITO_GROUP_ADMINS"); ids != "" {
		cfg.Telegram.GroupAdmins = parseIDList(ids)
	}
	if ids := os.Getenv("PEPITO_DEVS"); ids != "" {
		cfg.Telegram.Devs = parseIDList(ids)
	}
	if url := os.Getenv("PEPITO_SSE_URL"); url != "" {
		cfg.Stream.URL = url
	}
	if path := os.Getenv("PEPITO_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
	if dir := os.Getenv("PEPITO_IMAGES_DIR"); dir != "" {
		cfg.Storage.ImagesDir = dir
	}
	if v := os.Getenv("PEPITO_SHOW_BTC_CHARTS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Charts.ShowBTCCharts = parsed
		}
	}
	if v := os.Getenv("PEPITO_SHOW_NEGATIVE_PRICE_CHARTS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Charts.ShowNegativePriceCharts = parsed
		}
	}
	if v := os.Getenv("PEPITO_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxRetries = parsed
		}
	}
	if v := os.Getenv("PEPITO_BACKOFF_FACTOR"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Retry.BackoffFactor = parsed
		}
	}
	if v := os.Getenv("PEPITO_STREAM_TIMEOUT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Stream.Timeout = parsed
		}
	}
	if v := os.Getenv("PEPITO_POLLING_TIMEOUT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.PollingTimeout = parsed
		}
	}
	if v := os.Getenv("PEPITO_DIGEST_ENABLED"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Digest.Enabled = parsed
		}
	}
	if spec := os.Getenv("PEPITO_DIGEST_SCHEDULE"); spec != "" {
		cfg.Digest.Schedule = spec
	}
}

func parseIDList(s string) []int64 {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Recipients returns the combined notification audience: every authorized
// user chat plus every authorized group chat.
func (c *Config) Recipients() []int64 {
	out := make([]int64, 0, len(c.Telegram.AuthorizedUsers)+len(c.Telegram.AuthorizedGroups))
	out = append(out, c.Telegram.AuthorizedUsers...)
	out = append(out, c.Telegram.AuthorizedGroups...)
	return out
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
