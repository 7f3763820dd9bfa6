// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for studio-go. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// Unknown keys in the config file are fatal errors with "did you mean?"
// suggestions.
package config

// Config is the top-level configuration structure parsed from a TOML file.
// Each section maps to one concern of the Studio client: credentials and
// region, HTTP behavior, retry policy, upload and snapshot tuning, logging,
// and the watch command.
type Config struct {
	Auth     AuthConfig     `toml:"auth"`
	Network  NetworkConfig  `toml:"network"`
	Retry    RetryConfig    `toml:"retry"`
	Upload   UploadConfig   `toml:"upload"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Logging  LoggingConfig  `toml:"logging"`
	Watch    WatchConfig    `toml:"watch"`
}

// AuthConfig holds OAuth2 application credentials and the Studio region.
// ClientSecret is a secret: it is never logged and "config show" redacts it.
// TokenFile overrides where the saved login token lives (default: the
// platform data directory).
type AuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
	Region       string   `toml:"region"`
	TokenFile    string   `toml:"token_file"`
}

// NetworkConfig controls HTTP client behavior. force_http_11 is useful
// behind corporate proxies that don't support HTTP/2.
type NetworkConfig struct {
	Timeout     string `toml:"timeout"`
	UserAgent   string `toml:"user_agent"`
	ForceHTTP11 bool   `toml:"force_http_11"`
}

// RetryConfig controls the request retry policy: attempt count, exponential
// backoff base, and which HTTP status codes are worth retrying.
type RetryConfig struct {
	MaxRetries        int    `toml:"max_retries"`
	BackoffBase       string `toml:"backoff_base"`
	RetryableStatuses []int  `toml:"retryable_statuses"`
}

// UploadConfig controls session file uploads. MaxFileSize of "0" disables
// the local size check. allow_any_extension bypasses the .pdf gate for
// servers configured to accept other document types.
type UploadConfig struct {
	ContentType       string `toml:"content_type"`
	TransferTimeout   string `toml:"transfer_timeout"`
	EncryptionHeader  bool   `toml:"encryption_header"`
	AllowAnyExtension bool   `toml:"allow_any_extension"`
	MaxFileSize       string `toml:"max_file_size"`
	Concurrency       int    `toml:"concurrency"`
}

// SnapshotConfig controls snapshot polling and download behavior.
type SnapshotConfig struct {
	PollInterval    string `toml:"poll_interval"`
	MaxPolls        int    `toml:"max_polls"`
	DownloadTimeout string `toml:"download_timeout"`
}

// LoggingConfig controls log output behavior: level and format.
// Format "auto" picks text on a terminal and JSON otherwise.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
	LogFormat string `toml:"log_format"`
}

// WatchConfig controls the watch command: how long to wait after the last
// write event before uploading, and where the upload journal database lives
// (default: the platform data directory). rescan_interval of "0" disables
// the periodic full scan that catches events fsnotify missed.
type WatchConfig struct {
	Debounce       string `toml:"debounce"`
	JournalFile    string `toml:"journal_file"`
	UploadExisting bool   `toml:"upload_existing"`
	IgnoreDotfiles bool   `toml:"ignore_dotfiles"`
	RescanInterval string `toml:"rescan_interval"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty string means "not specified", so none of these
// need pointer fields.
type CLIOverrides struct {
	ConfigPath string // --config flag
	Region     string // --region flag
	LogLevel   string // --log-level flag
	TokenFile  string // --token-file flag
}
