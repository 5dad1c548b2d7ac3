package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigAccessorsFallBackToDefaults(t *testing.T) {
	c := New(map[string]any{
		"name":     "acme",
		"timeout":  "30s",
		"retries":  3,
		"webhooks": []any{"https://a.test", "https://b.test"},
	})

	require.Equal(t, "acme", c.String("name", "fallback"))
	require.Equal(t, "fallback", c.String("missing", "fallback"))

	require.Equal(t, 30*time.Second, c.Duration("timeout", time.Minute))
	require.Equal(t, time.Minute, c.Duration("missing", time.Minute))

	require.Equal(t, 3, c.Int("retries", 0))
	require.Equal(t, 9, c.Int("missing", 9))

	require.Equal(t, []string{"https://a.test", "https://b.test"}, c.StringSlice("webhooks", nil))
	require.True(t, c.Has("name"))
	require.False(t, c.Has("nope"))
}

func TestFromYAMLParsesNestedTypes(t *testing.T) {
	c, err := FromYAML([]byte("event_db_path: /data/events.db\nalert_webhooks:\n  - https://hook.test\n"))
	require.NoError(t, err)
	require.Equal(t, "/data/events.db", c.String("event_db_path", ""))
	require.Equal(t, []string{"https://hook.test"}, c.StringSlice("alert_webhooks", nil))
}

func TestFromJSONParsesValues(t *testing.T) {
	c, err := FromJSON([]byte(`{"event_retention_days": 14}`))
	require.NoError(t, err)
	require.Equal(t, 14, c.Int("event_retention_days", 7))
}

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, LoadDotEnv("/nonexistent/path/.env"))
}
