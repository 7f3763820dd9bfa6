package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validation range constants.
const (
	maxRetriesLimit    = 10
	minStatusCode      = 100
	maxStatusCode      = 599
	minConcurrency     = 1
	maxConcurrency     = 16
	minSnapshotPolls   = 1
	minNetworkTimeout  = 1 * time.Second
	minTransferTimeout = 1 * time.Second
	minDownloadTimeout = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateUpload(&cfg.Upload)...)
	errs = append(errs, validateSnapshot(&cfg.Snapshot)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.Region == "" {
		errs = append(errs, errors.New("auth.region: must not be empty"))
	}

	// Whether the region actually exists is checked against the region
	// table when the client is built, so the error can list valid regions.

	if a.RedirectURI != "" {
		u, err := url.Parse(a.RedirectURI)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("auth.redirect_uri: must be an absolute URL, got %q", a.RedirectURI))
		}
	}

	for _, s := range a.Scopes {
		if s == "" {
			errs = append(errs, errors.New("auth.scopes: must not contain empty entries"))

			break
		}
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	return validateDurationMin("network.timeout", n.Timeout, minNetworkTimeout)
}

func validateRetry(r *RetryConfig) []error {
	var errs []error

	if r.MaxRetries < 0 || r.MaxRetries > maxRetriesLimit {
		errs = append(errs, fmt.Errorf("retry.max_retries: must be between 0 and %d, got %d",
			maxRetriesLimit, r.MaxRetries))
	}

	errs = append(errs, validateDurationPositive("retry.backoff_base", r.BackoffBase)...)

	for _, code := range r.RetryableStatuses {
		if code < minStatusCode || code > maxStatusCode {
			errs = append(errs, fmt.Errorf("retry.retryable_statuses: %d is not an HTTP status code", code))
		}
	}

	return errs
}

func validateUpload(u *UploadConfig) []error {
	var errs []error

	if u.ContentType == "" {
		errs = append(errs, errors.New("upload.content_type: must not be empty"))
	}

	errs = append(errs, validateDurationMin("upload.transfer_timeout", u.TransferTimeout, minTransferTimeout)...)

	if u.Concurrency < minConcurrency || u.Concurrency > maxConcurrency {
		errs = append(errs, fmt.Errorf("upload.concurrency: must be between %d and %d, got %d",
			minConcurrency, maxConcurrency, u.Concurrency))
	}

	if u.MaxFileSize != "" && u.MaxFileSize != "0" {
		if _, err := ParseSize(u.MaxFileSize); err != nil {
			errs = append(errs, fmt.Errorf("upload.max_file_size: %w", err))
		}
	}

	return errs
}

func validateSnapshot(s *SnapshotConfig) []error {
	var errs []error

	errs = append(errs, validateDurationPositive("snapshot.poll_interval", s.PollInterval)...)

	if s.MaxPolls < minSnapshotPolls {
		errs = append(errs, fmt.Errorf("snapshot.max_polls: must be >= %d, got %d",
			minSnapshotPolls, s.MaxPolls))
	}

	errs = append(errs, validateDurationMin("snapshot.download_timeout", s.DownloadTimeout, minDownloadTimeout)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateWatch(w *WatchConfig) []error {
	var errs []error

	errs = append(errs, validateDurationNonNeg("watch.debounce", w.Debounce)...)
	errs = append(errs, validateDurationNonNeg("watch.rescan_interval", w.RescanInterval)...)

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateDurationPositive(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d <= 0 {
		return []error{fmt.Errorf("%s: must be positive, got %s", field, d)}
	}

	return nil
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}
