package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec     = 30
	DefaultLongPollTimeoutSec = 60
)

// VK client defaults
const (
	DefaultFetchWindow = 10
)
