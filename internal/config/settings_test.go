package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envDBPath, envWebhooks, envRetentionSec, envRetentionDay, envDedupWindow, envHTTPAddr, envLogLevel, envConfigFile} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresEventDBPath(t *testing.T) {
	clearSettingsEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAppliesSpecDefaults(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv(envDBPath, "/data/events.db")

	settings, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/data/events.db", settings.EventDBPath)
	require.Equal(t, time.Hour, settings.RetentionInterval)
	require.Equal(t, 7, settings.RetentionDays)
	require.Equal(t, 300*time.Second, settings.DedupWindow)
	require.Equal(t, ":8080", settings.HTTPAddr)
	require.Equal(t, "info", settings.LogLevel)
	require.Empty(t, settings.AlertWebhooks)
}

func TestLoadParsesWebhooksAndOverrides(t *testing.T) {
	clearSettingsEnv(t)
	t.Setenv(envDBPath, "/data/events.db")
	t.Setenv(envWebhooks, "https://a.test, https://b.test")
	t.Setenv(envRetentionSec, "60")
	t.Setenv(envDedupWindow, "15")
	t.Setenv(envHTTPAddr, ":9090")
	t.Setenv(envLogLevel, "debug")

	settings, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, settings.AlertWebhooks)
	require.Equal(t, 60*time.Second, settings.RetentionInterval)
	require.Equal(t, 15*time.Second, settings.DedupWindow)
	require.Equal(t, ":9090", settings.HTTPAddr)
	require.Equal(t, "debug", settings.LogLevel)
}
