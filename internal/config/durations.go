package config

import "time"

// Typed accessors for duration and size fields. Config stores them as
// strings so the TOML stays human-editable ("2m", "800ms", "50MB");
// consumers want parsed values. Validation runs before any of these are
// called, so the fallbacks only matter for a Config built by hand.

// TimeoutDuration returns the parsed HTTP client timeout.
func (n *NetworkConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(n.Timeout, 60*time.Second)
}

// BackoffBaseDuration returns the parsed retry backoff base.
func (r *RetryConfig) BackoffBaseDuration() time.Duration {
	return parseDurationOr(r.BackoffBase, 800*time.Millisecond)
}

// TransferTimeoutDuration returns the parsed upload transfer timeout.
func (u *UploadConfig) TransferTimeoutDuration() time.Duration {
	return parseDurationOr(u.TransferTimeout, 2*time.Minute)
}

// MaxFileSizeBytes returns the parsed upload size limit in bytes.
// Zero means no limit.
func (u *UploadConfig) MaxFileSizeBytes() int64 {
	n, err := ParseSize(u.MaxFileSize)
	if err != nil {
		return 0
	}

	return n
}

// PollIntervalDuration returns the parsed snapshot poll interval.
func (s *SnapshotConfig) PollIntervalDuration() time.Duration {
	return parseDurationOr(s.PollInterval, 3*time.Second)
}

// DownloadTimeoutDuration returns the parsed snapshot download timeout.
func (s *SnapshotConfig) DownloadTimeoutDuration() time.Duration {
	return parseDurationOr(s.DownloadTimeout, 2*time.Minute)
}

// DebounceDuration returns the parsed watch debounce window.
func (w *WatchConfig) DebounceDuration() time.Duration {
	return parseDurationOr(w.Debounce, 2*time.Second)
}

// RescanIntervalDuration returns the parsed watch rescan interval.
// Zero means periodic rescans are disabled.
func (w *WatchConfig) RescanIntervalDuration() time.Duration {
	return parseDurationOr(w.RescanInterval, 0)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}
