package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"telegram": {"control_bot_token": "12345:secret"},
		"database": {"path": "vktg.db"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, constants.TelegramAPIBaseURL, cfg.Telegram.APIBaseURL)
	assert.Equal(t, constants.VKAPIBaseURL, cfg.VK.APIBaseURL)
	assert.Equal(t, constants.VKAPIVersion, cfg.VK.APIVersion)
	assert.Equal(t, constants.DefaultFetchWindow, cfg.VK.FetchWindow)
	assert.Equal(t, constants.DefaultSyncIntervalSec, cfg.Sync.IntervalSec)
	assert.Equal(t, constants.DefaultSyncInitialDelaySec, cfg.Sync.InitialDelaySec)
	assert.Equal(t, constants.DefaultPostDelaySec, cfg.Sync.PostDelaySec)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "vk-tg-repost-bot", cfg.Tracing.ServiceName)
}

func TestLoadConfigExplicitValuesWin(t *testing.T) {
	path := writeConfigFile(t, `{
		"telegram": {"control_bot_token": "12345:secret"},
		"database": {"path": "vktg.db"},
		"vk": {"fetchWindow": 25, "api_version": "5.199"},
		"sync": {"intervalSec": 60}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.VK.FetchWindow)
	assert.Equal(t, "5.199", cfg.VK.APIVersion)
	assert.Equal(t, 60, cfg.Sync.IntervalSec)
}

func TestLoadConfigMissingBotToken(t *testing.T) {
	path := writeConfigFile(t, `{"database": {"path": "vktg.db"}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingBotToken)
}

func TestLoadConfigMissingDatabasePath(t *testing.T) {
	path := writeConfigFile(t, `{"telegram": {"control_bot_token": "12345:secret"}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("VKTG_BOT_TOKEN", "99999:env-secret")
	t.Setenv("VKTG_TELEGRAM_API_URL", "http://tg.local")
	t.Setenv("VKTG_VK_API_URL", "http://vk.local")
	t.Setenv("VKTG_DB_PATH", "/tmp/override.db")

	path := writeConfigFile(t, `{
		"telegram": {"control_bot_token": "12345:secret"},
		"database": {"path": "vktg.db"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "99999:env-secret", cfg.Telegram.ControlBotToken)
	assert.Equal(t, "http://tg.local", cfg.Telegram.APIBaseURL)
	assert.Equal(t, "http://vk.local", cfg.VK.APIBaseURL)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
}

func TestLoadConfigEnvTokenSatisfiesValidation(t *testing.T) {
	t.Setenv("VKTG_BOT_TOKEN", "99999:env-secret")

	path := writeConfigFile(t, `{"database": {"path": "vktg.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "99999:env-secret", cfg.Telegram.ControlBotToken)
}

func TestLoadConfigRejectsDebugLoggingInProduction(t *testing.T) {
	t.Setenv("VKTG_ENV", "production")

	path := writeConfigFile(t, `{
		"telegram": {"control_bot_token": "12345:secret"},
		"database": {"path": "vktg.db"},
		"log_level": "debug"
	}`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debug logging")
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsTraversalPath(t *testing.T) {
	_, err := LoadConfig("../../etc/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config path")
}
