package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/tlmon/internal/config"
	"codeberg.org/mutker/tlmon/internal/errors"
	"codeberg.org/mutker/tlmon/internal/metrics"
	"codeberg.org/mutker/tlmon/internal/notify"
	"codeberg.org/mutker/tlmon/internal/timeseries"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setWebhookEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GAS_WEBHOOK", "https://script.example.com/exec")
	t.Setenv("SLACK_USER_ID", "U123")
}

func TestLoadDefaults(t *testing.T) {
	setWebhookEnv(t)
	t.Setenv("HOST_LABEL", "camera-pi")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 80.0, cfg.Thresholds.Disk)
	assert.Equal(t, 65.0, cfg.Thresholds.Temp)
	assert.Equal(t, 2.0, cfg.Thresholds.Load)
	assert.Equal(t, 80.0, cfg.Thresholds.Mem)
	assert.Equal(t, 30*time.Minute, cfg.Cooldown)

	assert.Equal(t, []metrics.Dir{
		{Label: "images", Path: "/home/pi/timelapse-system/images"},
		{Label: "archived", Path: "/home/pi/timelapse-system/archived"},
	}, cfg.Metrics.Dirs)
	assert.Equal(t, "/home/pi", cfg.Metrics.PartitionRoot)
	assert.Equal(t, time.Hour, cfg.Metrics.NewImageWindow)
	assert.Equal(t, 20*time.Second, cfg.Metrics.Timeout)

	assert.Equal(t, timeseries.BackendCSV, cfg.Store.Backend)
	assert.Equal(t, filepath.Join("log", "system_log.csv"), cfg.Store.Path)
	assert.Equal(t, []string{"images", "archived"}, cfg.Store.Labels)
	assert.Equal(t, filepath.Join("log", "last_alert"), cfg.Suppress.Path)
	assert.Equal(t, 30*time.Minute, cfg.Suppress.Cooldown)

	assert.Equal(t, notify.KindWebhook, cfg.Notify.Kind)
	assert.Equal(t, 10*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, 1, cfg.Notify.Retries)
	assert.Equal(t, "camera-pi", cfg.Host)

	assert.Equal(t, notify.KindSlack, cfg.MediaNotify.Kind)
	assert.Equal(t, cfg.Notify.Timeout, cfg.MediaNotify.Timeout)
	assert.Equal(t, cfg.Notify.CacheDir, cfg.MediaNotify.CacheDir)

	assert.Equal(t, 0.07, cfg.Brightness.Dark)
	assert.Equal(t, 0.60, cfg.Brightness.Bright)
	assert.Equal(t, filepath.Join("log", "last_alert_time"), cfg.BrightnessGate.Path)

	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, filepath.Join("log", "monitor.log"), cfg.LogFile)
	assert.Equal(t, os.TempDir(), cfg.PidDir)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setWebhookEnv(t)
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("DISK_THRESHOLD", "90.5")
	t.Setenv("TEMP_THRESHOLD", "70")
	t.Setenv("SUPPRESS_MIN", "5")
	t.Setenv("DISK_PATHS", "/srv/archive")
	t.Setenv("IMAGE_DIR_LABEL", "archive")
	t.Setenv("NEW_IMAGE_WINDOW", "30m")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("NOTIFY_RETRIES", "3")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 90.5, cfg.Thresholds.Disk)
	assert.Equal(t, 70.0, cfg.Thresholds.Temp)
	assert.Equal(t, 5*time.Minute, cfg.Cooldown)
	assert.Equal(t, []metrics.Dir{{Label: "archive", Path: "/srv/archive"}}, cfg.Metrics.Dirs)
	assert.Equal(t, 30*time.Minute, cfg.Metrics.NewImageWindow)
	assert.Equal(t, timeseries.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, filepath.Join(dataDir, "system_log.db"), cfg.Store.DBPath)
	assert.Equal(t, filepath.Join(dataDir, "last_alert"), cfg.Suppress.Path)
	assert.Equal(t, 3, cfg.Notify.Retries)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tlmon.env")
	content := []byte(`
NOTIFIER=slack
SLACK_BOT_TOKEN=xoxb-file
SLACK_DM_EMAIL=operator@example.com
LOAD_THRESHOLD=3.5
LOG_LEVEL=warning
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	// Environment wins over the file.
	t.Setenv("LOAD_THRESHOLD", "4.0")

	cfg, err := config.Load(config.WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, notify.KindSlack, cfg.Notify.Kind)
	assert.Equal(t, "xoxb-file", cfg.Notify.BotToken)
	assert.Equal(t, "operator@example.com", cfg.Notify.DMEmail)
	assert.Equal(t, 4.0, cfg.Thresholds.Load)
	assert.Equal(t, config.LogLevelWarning, cfg.LogLevel)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.Load(config.WithConfigFile(filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, errors.ErrReadConfig, errors.CodeOf(err))
}

func TestLoadFlags(t *testing.T) {
	setWebhookEnv(t)
	t.Setenv("LOG_LEVEL", "error")

	fs := pflag.NewFlagSet("tlmon", pflag.ContinueOnError)
	fs.String("log-level", "info", "")
	fs.Bool("debug", false, "")

	require.NoError(t, fs.Parse(nil))
	cfg, err := config.Load(config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelError, cfg.LogLevel, "unset flag must not override env")

	require.NoError(t, fs.Parse([]string{"--log-level", "warning"}))
	cfg, err = config.Load(config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelWarning, cfg.LogLevel)

	require.NoError(t, fs.Parse([]string{"--debug"}))
	cfg, err = config.Load(config.WithFlags(fs))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
}

func TestLoadEnvPrefix(t *testing.T) {
	t.Setenv("TLMON_GAS_WEBHOOK", "https://relay")
	t.Setenv("TLMON_SLACK_USER_ID", "U1")
	t.Setenv("TLMON_MEM_THRESHOLD", "60")

	cfg, err := config.Load(config.WithEnvPrefix("TLMON"))
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.Thresholds.Mem)
	assert.Equal(t, "https://relay", cfg.Notify.WebhookURL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		code errors.ErrorCode
	}{
		{
			name: "webhook credentials missing",
			env:  map[string]string{"GAS_WEBHOOK": ""},
			code: errors.ErrMissingConfig,
		},
		{
			name: "slack destination missing",
			env:  map[string]string{"NOTIFIER": "slack", "SLACK_BOT_TOKEN": "xoxb"},
			code: errors.ErrMissingConfig,
		},
		{
			name: "too many directories",
			env: map[string]string{
				"GAS_WEBHOOK": "https://relay", "SLACK_USER_ID": "U1",
				"DISK_PATHS": "a=/a,b=/b,c=/c",
			},
			code: errors.ErrInvalidConfig,
		},
		{
			name: "unknown backend",
			env: map[string]string{
				"GAS_WEBHOOK": "https://relay", "SLACK_USER_ID": "U1",
				"STORE_BACKEND": "parquet",
			},
			code: timeseries.ErrInvalidBackend,
		},
		{
			name: "bad log level",
			env: map[string]string{
				"GAS_WEBHOOK": "https://relay", "SLACK_USER_ID": "U1",
				"LOG_LEVEL": "chatty",
			},
			code: errors.ErrInvalidLogLevel,
		},
		{
			name: "brightness notifier cannot carry files",
			env: map[string]string{
				"GAS_WEBHOOK": "https://relay", "SLACK_USER_ID": "U1",
				"BRIGHTNESS_NOTIFIER": "webhook",
			},
			code: notify.ErrFilesUnsupported,
		},
		{
			name: "negative cooldown",
			env: map[string]string{
				"GAS_WEBHOOK": "https://relay", "SLACK_USER_ID": "U1",
				"SUPPRESS_MIN": "-1",
			},
			code: errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestParseDirs(t *testing.T) {
	dirs, err := config.ParseDirs(" images=/a , /srv/archived ,")
	require.NoError(t, err)
	assert.Equal(t, []metrics.Dir{
		{Label: "images", Path: "/a"},
		{Label: "archived", Path: "/srv/archived"},
	}, dirs)

	_, err = config.ParseDirs("=/a")
	assert.Error(t, err)
}
