package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// redactedValue replaces secrets in "config show" output. The presence of a
// secret is still visible so users can tell "unset" from "hidden".
const redactedValue = "(redacted)"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(cfg *Config, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration\n\n")

	renderAuthSection(ew, &cfg.Auth)
	renderNetworkSection(ew, &cfg.Network)
	renderRetrySection(ew, &cfg.Retry)
	renderUploadSection(ew, &cfg.Upload)
	renderSnapshotSection(ew, &cfg.Snapshot)
	renderLoggingSection(ew, &cfg.Logging)
	renderWatchSection(ew, &cfg.Watch)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderAuthSection(ew *errWriter, a *AuthConfig) {
	ew.printf("[auth]\n")
	ew.printf("  client_id     = %q\n", a.ClientID)

	secret := ""
	if a.ClientSecret != "" {
		secret = redactedValue
	}

	ew.printf("  client_secret = %q\n", secret)
	ew.printf("  redirect_uri  = %q\n", a.RedirectURI)
	ew.printf("  scopes        = [%s]\n", joinQuoted(a.Scopes))
	ew.printf("  region        = %q\n", a.Region)
	ew.printf("  token_file    = %q\n", a.TokenFile)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("[network]\n")
	ew.printf("  timeout       = %q\n", n.Timeout)

	if n.UserAgent != "" {
		ew.printf("  user_agent    = %q\n", n.UserAgent)
	}

	ew.printf("  force_http_11 = %t\n", n.ForceHTTP11)
	ew.printf("\n")
}

func renderRetrySection(ew *errWriter, r *RetryConfig) {
	ew.printf("[retry]\n")
	ew.printf("  max_retries        = %d\n", r.MaxRetries)
	ew.printf("  backoff_base       = %q\n", r.BackoffBase)
	ew.printf("  retryable_statuses = [%s]\n", joinInts(r.RetryableStatuses))
	ew.printf("\n")
}

func renderUploadSection(ew *errWriter, u *UploadConfig) {
	ew.printf("[upload]\n")
	ew.printf("  content_type        = %q\n", u.ContentType)
	ew.printf("  transfer_timeout    = %q\n", u.TransferTimeout)
	ew.printf("  encryption_header   = %t\n", u.EncryptionHeader)
	ew.printf("  allow_any_extension = %t\n", u.AllowAnyExtension)
	ew.printf("  max_file_size       = %q\n", u.MaxFileSize)
	ew.printf("  concurrency         = %d\n", u.Concurrency)
	ew.printf("\n")
}

func renderSnapshotSection(ew *errWriter, s *SnapshotConfig) {
	ew.printf("[snapshot]\n")
	ew.printf("  poll_interval    = %q\n", s.PollInterval)
	ew.printf("  max_polls        = %d\n", s.MaxPolls)
	ew.printf("  download_timeout = %q\n", s.DownloadTimeout)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)

	if l.LogFile != "" {
		ew.printf("  log_file   = %q\n", l.LogFile)
	}

	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderWatchSection(ew *errWriter, w *WatchConfig) {
	ew.printf("[watch]\n")
	ew.printf("  debounce        = %q\n", w.Debounce)
	ew.printf("  journal_file    = %q\n", w.JournalFile)
	ew.printf("  upload_existing = %t\n", w.UploadExisting)
	ew.printf("  ignore_dotfiles = %t\n", w.IgnoreDotfiles)
	ew.printf("  rescan_interval = %q\n", w.RescanInterval)
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}

// joinInts formats an int slice as comma-separated values.
func joinInts(items []int) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = strconv.Itoa(item)
	}

	return strings.Join(parts, ", ")
}
