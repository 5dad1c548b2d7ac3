package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings is the Command Center's resolved process configuration,
// assembled from environment variables (optionally preceded by a .env
// file) and, if CONFIG_FILE is set, a YAML/JSON override file layered
// underneath the environment.
type Settings struct {
	EventDBPath       string
	AlertWebhooks     []string
	RetentionInterval time.Duration
	RetentionDays     int
	DedupWindow       time.Duration
	HTTPAddr          string
	LogLevel          string
}

const (
	envDBPath       = "EVENT_DB_PATH"
	envWebhooks     = "ALERT_WEBHOOKS"
	envRetentionSec = "EVENT_RETENTION_CRON_SECONDS"
	envRetentionDay = "EVENT_RETENTION_DAYS"
	envDedupWindow  = "ALERT_DEDUP_WINDOW_SECONDS"
	envHTTPAddr     = "COMMANDCENTER_HTTP_ADDR"
	envLogLevel     = "COMMANDCENTER_LOG_LEVEL"
	envConfigFile   = "CONFIG_FILE"
)

// Load resolves Settings from the process environment, after loading
// .env (if present) and layering an optional CONFIG_FILE underneath it.
// EVENT_DB_PATH is the only required variable; every other variable has
// a spec-defined default.
func Load() (Settings, error) {
	if err := LoadDotEnv(""); err != nil {
		return Settings{}, fmt.Errorf("config: load .env: %w", err)
	}

	var file Config
	if path := os.Getenv(envConfigFile); path != "" {
		loaded, err := FromFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("config: load %s: %w", envConfigFile, err)
		}
		file = loaded
	} else {
		file = New(nil)
	}

	dbPath := firstNonEmpty(os.Getenv(envDBPath), file.String("event_db_path", ""))
	if dbPath == "" {
		return Settings{}, fmt.Errorf("config: %s is required", envDBPath)
	}

	webhooks := splitCSV(os.Getenv(envWebhooks))
	if len(webhooks) == 0 {
		webhooks = file.StringSlice("alert_webhooks", nil)
	}

	retentionSeconds := envInt(envRetentionSec, file.Int("event_retention_cron_seconds", 3600))
	retentionDays := envInt(envRetentionDay, file.Int("event_retention_days", 7))
	dedupSeconds := envInt(envDedupWindow, file.Int("alert_dedup_window_seconds", 300))

	return Settings{
		EventDBPath:       dbPath,
		AlertWebhooks:     webhooks,
		RetentionInterval: time.Duration(retentionSeconds) * time.Second,
		RetentionDays:     retentionDays,
		DedupWindow:       time.Duration(dedupSeconds) * time.Second,
		HTTPAddr:          firstNonEmpty(os.Getenv(envHTTPAddr), file.String("http_addr", ":8080")),
		LogLevel:          firstNonEmpty(os.Getenv(envLogLevel), file.String("log_level", "info")),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, defaultVal int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultVal
	}
	return n
}
