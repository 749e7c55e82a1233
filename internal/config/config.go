package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/internal/security"
)

var (
	ErrMissingBotToken = models.ConfigError{Message: "missing control bot token"}
	ErrMissingDBPath   = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Telegram.ControlBotToken == "" {
		return ErrMissingBotToken
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = constants.TelegramAPIBaseURL
	}
	if c.Telegram.HTTPTimeoutSec <= 0 {
		c.Telegram.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Telegram.MenuPollTimeoutSec <= 0 {
		c.Telegram.MenuPollTimeoutSec = constants.DefaultMenuPollTimeoutSec
	}

	if c.VK.APIBaseURL == "" {
		c.VK.APIBaseURL = constants.VKAPIBaseURL
	}
	if c.VK.APIVersion == "" {
		c.VK.APIVersion = constants.VKAPIVersion
	}
	if c.VK.FetchWindow <= 0 {
		c.VK.FetchWindow = constants.DefaultFetchWindow
	}
	if c.VK.HTTPTimeoutSec <= 0 {
		c.VK.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}

	if c.Sync.IntervalSec <= 0 {
		c.Sync.IntervalSec = constants.DefaultSyncIntervalSec
	}
	if c.Sync.InitialDelaySec <= 0 {
		c.Sync.InitialDelaySec = constants.DefaultSyncInitialDelaySec
	}
	if c.Sync.PostDelaySec <= 0 {
		c.Sync.PostDelaySec = constants.DefaultPostDelaySec
	}
	if c.Sync.PassTimeoutSec <= 0 {
		c.Sync.PassTimeoutSec = constants.DefaultSyncPassTimeoutSec
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "vk-tg-repost-bot"
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	// SECURITY: the control bot token should come from the environment
	if token := os.Getenv("VKTG_BOT_TOKEN"); token != "" {
		c.Telegram.ControlBotToken = token
	}
	if url := os.Getenv("VKTG_TELEGRAM_API_URL"); url != "" {
		c.Telegram.APIBaseURL = url
	}
	if url := os.Getenv("VKTG_VK_API_URL"); url != "" {
		c.VK.APIBaseURL = url
	}
	if path := os.Getenv("VKTG_DB_PATH"); path != "" {
		c.Database.Path = path
	}
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	isProduction := os.Getenv("VKTG_ENV") == "production"

	if isProduction {
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
		if os.Getenv("VKTG_ENABLE_ENCRYPTION") != "true" {
			fmt.Fprintf(os.Stderr, "WARNING: credential encryption is disabled. Set VKTG_ENABLE_ENCRYPTION=true and VKTG_ENCRYPTION_SECRET in production.\n")
		}
	}

	return nil
}
