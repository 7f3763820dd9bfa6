package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configFilePermissions restricts config files to owner read/write because
// [auth] may contain a client secret.
const configFilePermissions = 0o600

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the starter config file written by "config init".
// All settings are present as commented-out defaults so users can discover
// every option without reading docs. The template is written once and never
// regenerated, preserving user edits.
const configTemplate = `# studio-go configuration

[auth]
# OAuth2 application credentials from your Studio Prime portal.
# These may also come from STUDIO_GO_CLIENT_ID / STUDIO_GO_CLIENT_SECRET.
client_id = ""
client_secret = ""

# Redirect URI registered with the application.
# redirect_uri = "http://localhost:8421/callback"

# Studio region: US, DE, AU, UK, or SE.
# region = "US"

# Where the saved login token lives (default: platform data directory).
# token_file = ""

# [network]
# timeout = "60s"
# user_agent = ""
# force_http_11 = false

# [retry]
# max_retries = 3
# backoff_base = "800ms"
# retryable_statuses = [408, 429, 500, 502, 503, 504]

# [upload]
# content_type = "application/pdf"
# transfer_timeout = "2m"
# encryption_header = true
# allow_any_extension = false
# max_file_size = "0"
# concurrency = 4

# [snapshot]
# poll_interval = "3s"
# max_polls = 200
# download_timeout = "2m"

# [logging]
# log_level = "info"
# log_format = "auto"

# [watch]
# debounce = "2s"
# upload_existing = false
# ignore_dotfiles = true
# rescan_interval = "0"
`

// WriteStarter creates a new config file from the default template. Used by
// "config init". Refuses to overwrite an existing file, because a
// regenerated template would destroy the user's edits.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash. Parent directories are created
// as needed. Files are created with configFilePermissions (0600).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
