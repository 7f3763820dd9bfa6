package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Snapshot polling defaults: up to 10 minutes of waiting.
const (
	DefaultPollInterval = 3 * time.Second
	DefaultMaxPolls     = 200
)

// snapshotResponse mirrors the snapshot endpoint JSON.
type snapshotResponse struct {
	Status      string `json:"Status"`
	DownloadURL string `json:"DownloadUrl"`
}

func (s *snapshotResponse) toSnapshot() Snapshot {
	return Snapshot{
		Status:      s.Status,
		DownloadURL: s.DownloadURL,
	}
}

// RequestSnapshot asks the server to start generating a snapshot of the
// file plus its markups. Generation is asynchronous; poll SnapshotStatus or
// use DownloadSnapshot for the whole protocol.
func (c *Client) RequestSnapshot(ctx context.Context, sessionID string, fileID int64) (*Snapshot, error) {
	resp, err := c.Do(ctx, http.MethodPost, fileEndpoint(sessionID, fileID)+"/snapshot", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding snapshot response: %w", err)
	}

	snap := out.toSnapshot()

	return &snap, nil
}

// SnapshotStatus fetches the current snapshot job state for a file.
func (c *Client) SnapshotStatus(ctx context.Context, sessionID string, fileID int64) (*Snapshot, error) {
	resp, err := c.Do(ctx, http.MethodGet, fileEndpoint(sessionID, fileID)+"/snapshot", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("studio: decoding snapshot response: %w", err)
	}

	snap := out.toSnapshot()

	return &snap, nil
}

// DownloadSnapshotOptions tune DownloadSnapshot. Zero values mean the
// defaults: poll every 3 seconds, give up after 200 polls, bound the byte
// download to two minutes.
type DownloadSnapshotOptions struct {
	PollInterval    time.Duration
	MaxPolls        int
	TransferTimeout time.Duration
}

// DownloadSnapshot runs the full snapshot protocol: request generation,
// poll until the job reports complete with a download URL, then stream the
// merged PDF to destPath (parent directories are created). Each status call
// goes through the normal request pipeline with its own retry budget; the
// poll loop itself is bounded only by MaxPolls.
//
// When the polling window closes without a download URL the error wraps
// ErrSnapshotTimeout: the job was not ready, which is distinct from a
// transport failure.
func (c *Client) DownloadSnapshot(ctx context.Context, sessionID string, fileID int64, destPath string, opts DownloadSnapshotOptions) (string, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}

	c.logger.Info("downloading snapshot",
		slog.String("session_id", sessionID),
		slog.Int64("file_id", fileID),
		slog.String("dest", destPath),
	)

	if _, err := c.RequestSnapshot(ctx, sessionID, fileID); err != nil {
		return "", err
	}

	var downloadURL string

	for attempt := 1; attempt <= maxPolls; attempt++ {
		snap, err := c.SnapshotStatus(ctx, sessionID, fileID)
		if err != nil {
			return "", err
		}

		if snap.Ready() {
			downloadURL = snap.DownloadURL
			break
		}

		c.logger.Debug("snapshot not ready",
			slog.Int("poll", attempt),
			slog.Int("max_polls", maxPolls),
			slog.String("status", snap.Status),
		)

		if attempt == maxPolls {
			break
		}

		if err := c.sleep(ctx, interval); err != nil {
			return "", fmt.Errorf("studio: snapshot wait interrupted: %w", err)
		}
	}

	if downloadURL == "" {
		return "", fmt.Errorf("studio: snapshot for file %d not ready after %d polls: %w", fileID, maxPolls, ErrSnapshotTimeout)
	}

	timeout := opts.TransferTimeout
	if timeout <= 0 {
		timeout = defaultTransferTimeout
	}

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.saveFromURL(dctx, downloadURL, destPath); err != nil {
		return "", err
	}

	return destPath, nil
}

// saveFromURL streams content from a presigned URL to destPath. The URL is
// pre-authenticated by the storage backend, so no Authorization header is
// attached; the URL itself is never logged because it embeds credentials.
func (c *Client) saveFromURL(ctx context.Context, downloadURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("studio: creating download request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("studio: downloading snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(resp.Body)
		return newAPIError(resp, errBody)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("studio: creating destination directory: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("studio: creating %s: %w", destPath, err)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		os.Remove(destPath) //nolint:errcheck // best-effort cleanup of the partial file

		return fmt.Errorf("studio: streaming snapshot content: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("studio: closing %s: %w", destPath, err)
	}

	c.logger.Debug("snapshot downloaded",
		slog.String("dest", destPath),
		slog.Int64("bytes_written", n),
	)

	return nil
}
