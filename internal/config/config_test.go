package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CHANNELPOST_TELEGRAM_TOKEN", "123456789:abcdef")
	t.Setenv("CHANNELPOST_TELEGRAM_CHANNEL_ID", "-1001234567890")
	t.Setenv("CHANNELPOST_LSKY_BASE_URL", "https://img.example.com")
	t.Setenv("CHANNELPOST_LSKY_TOKEN", "lsky-token")
	t.Setenv("CHANNELPOST_BLOG_ENDPOINT", "https://blog.example.com/api")
	t.Setenv("CHANNELPOST_BLOG_SECRET", "secret")
	t.Setenv("CHANNELPOST_BLOG_CID", "7")
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "123456789:abcdef", cfg.Telegram.Token)
	assert.Equal(t, int64(-1001234567890), cfg.Telegram.ChannelID)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Telegram.GroupSettle)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 64, cfg.Dedupe.Capacity)
	assert.Equal(t, "原文", cfg.Blog.BacklinkLabel)
	assert.True(t, cfg.Journal.SkipPublished)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RunTimeout)

	require.Contains(t, cfg.Scheduler.Tasks, "temp_sweep")
	assert.True(t, cfg.Scheduler.Tasks["temp_sweep"].Enabled)
	assert.NotEmpty(t, cfg.Scheduler.Tasks["journal_prune"].Schedule)
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
log:
  level: debug
  json: true
retry:
  max_attempts: 5
  initial_interval: 2s
proxy:
  url: socks5://127.0.0.1:1080
scheduler:
  tasks:
    temp_sweep:
      enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CHANNELPOST_RETRY_MAX_ATTEMPTS", "4")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.True(t, cfg.Logger.JSON)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts, "environment overrides the file")
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialInterval)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.Proxy.URL)
	assert.False(t, cfg.Scheduler.Tasks["temp_sweep"].Enabled)
	assert.True(t, cfg.Scheduler.Tasks["sql_maintenance"].Enabled)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"CHANNELPOST_TELEGRAM_TOKEN": ""}},
		{name: "bad log level", env: map[string]string{"CHANNELPOST_LOG_LEVEL": "verbose"}},
		{name: "bad lsky url", env: map[string]string{"CHANNELPOST_LSKY_BASE_URL": "not a url"}},
		{name: "zero attempts", env: map[string]string{"CHANNELPOST_RETRY_MAX_ATTEMPTS": "0"}},
		{name: "zero capacity", env: map[string]string{"CHANNELPOST_DEDUPE_CAPACITY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfiguration))
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}
