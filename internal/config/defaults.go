package config

import "net/http"

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and match the Studio API's documented
// behavior, so a config file is only needed to deviate from it.
const (
	defaultRedirectURI     = "http://localhost:8421/callback"
	defaultRegion          = "US"
	defaultTimeout         = "60s"
	defaultMaxRetries      = 3
	defaultBackoffBase     = "800ms"
	defaultContentType     = "application/pdf"
	defaultTransferTimeout = "2m"
	defaultMaxFileSize     = "0"
	defaultConcurrency     = 4
	defaultPollInterval    = "3s"
	defaultMaxPolls        = 200
	defaultDownloadTimeout = "2m"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
	defaultDebounce        = "2s"
	defaultRescanInterval  = "0"
)

// defaultScopes returns the scopes requested when the config leaves them
// unset. offline_access is required for refresh tokens.
func defaultScopes() []string {
	return []string{"full_user", "offline_access"}
}

// defaultRetryableStatuses returns the HTTP status codes retried by default.
func defaultRetryableStatuses() []int {
	return []int{
		http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
}

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Auth:     defaultAuthConfig(),
		Network:  defaultNetworkConfig(),
		Retry:    defaultRetryConfig(),
		Upload:   defaultUploadConfig(),
		Snapshot: defaultSnapshotConfig(),
		Logging:  defaultLoggingConfig(),
		Watch:    defaultWatchConfig(),
	}
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		RedirectURI: defaultRedirectURI,
		Scopes:      defaultScopes(),
		Region:      defaultRegion,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Timeout: defaultTimeout,
	}
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        defaultMaxRetries,
		BackoffBase:       defaultBackoffBase,
		RetryableStatuses: defaultRetryableStatuses(),
	}
}

func defaultUploadConfig() UploadConfig {
	return UploadConfig{
		ContentType:      defaultContentType,
		TransferTimeout:  defaultTransferTimeout,
		EncryptionHeader: true,
		MaxFileSize:      defaultMaxFileSize,
		Concurrency:      defaultConcurrency,
	}
}

func defaultSnapshotConfig() SnapshotConfig {
	return SnapshotConfig{
		PollInterval:    defaultPollInterval,
		MaxPolls:        defaultMaxPolls,
		DownloadTimeout: defaultDownloadTimeout,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultWatchConfig() WatchConfig {
	return WatchConfig{
		Debounce:       defaultDebounce,
		IgnoreDotfiles: true,
		RescanInterval: defaultRescanInterval,
	}
}
