package models

// Config holds the application configuration
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	VK       VKConfig       `json:"vk"`
	Sync     SyncConfig     `json:"sync"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	Retry    RetryConfig    `json:"retry"`
	LogLevel string         `json:"log_level"`
}

// TelegramConfig holds settings for the Telegram Bot API
type TelegramConfig struct {
	APIBaseURL         string `json:"api_base_url"`
	ControlBotToken    string `json:"control_bot_token"`
	HTTPTimeoutSec     int    `json:"httpTimeoutSec"`
	MenuPollTimeoutSec int    `json:"menuPollTimeoutSec"`
}

// VKConfig holds settings for the VK wall API
type VKConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	APIVersion     string `json:"api_version"`
	FetchWindow    int    `json:"fetchWindow"`
	HTTPTimeoutSec int    `json:"httpTimeoutSec"`
}

// SyncConfig holds settings for the periodic sync sweep
type SyncConfig struct {
	IntervalSec     int `json:"intervalSec"`
	InitialDelaySec int `json:"initialDelaySec"`
	PostDelaySec    int `json:"postDelaySec"`
	PassTimeoutSec  int `json:"passTimeoutSec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig holds settings for the ops HTTP server
type ServerConfig struct {
	Port            int  `json:"port"`
	Enabled         bool `json:"enabled"`
	ReadTimeoutSec  int  `json:"readTimeoutSec"`
	WriteTimeoutSec int  `json:"writeTimeoutSec"`
	IdleTimeoutSec  int  `json:"idleTimeoutSec"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
