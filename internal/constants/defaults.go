package constants

// Default polling configuration values
const (
	DefaultSyncIntervalSec     = 33
	DefaultSyncInitialDelaySec = 10
	DefaultPostDelaySec        = 1
	DefaultSyncPassTimeoutSec  = 300
	DefaultSyncConcurrency     = 4
	DefaultMenuPollTimeoutSec  = 30
	DefaultRetryBackoffMs      = 1000
	DefaultMaxBackoffMs        = 60000
	DefaultMaxAttempts         = 5
	DefaultServerPort          = 8082
)

// Circuit breaker settings for per-slot wall fetches
const (
	DefaultBreakerMaxFailures = 3
	DefaultBreakerCooldownSec = 300
)

// VK wall fetch configuration
const (
	VKAPIVersion       = "5.131"
	VKAPIBaseURL       = "https://api.vk.com/method"
	DefaultFetchWindow = 10
)

// Telegram delivery limits
const (
	TelegramAPIBaseURL = "https://api.telegram.org"
	MaxMessageLength   = 4096
	MaxCaptionLength   = 1024
	MaxMediaGroupSize  = 10
	TruncationMarker   = "..."
)

// Tenant configuration
const (
	MaxBotsPerUser = 3
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec        = 30
	DefaultDatabaseRetryAttempts = 3
	DefaultGracefulShutdownSec   = 30
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
)

// Encryption salts for at-rest credential encryption
const (
	EncryptionSalt       = "vktg-repost-salt-v1"
	EncryptionLookupSalt = "vktg-repost-lookup-v1"
)

// Privacy settings
const (
	DefaultTokenMaskLength = 4
)

// Channel and buffer size constants
const (
	ServerErrorChannelSize = 1
)
