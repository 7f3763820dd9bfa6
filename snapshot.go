package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/studio"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <session-id> <file-id> [dest]",
		Short: "Download a snapshot of a session document",
		Long: `Request a snapshot of a session document, wait for the server to finish
generating it, and download the resulting PDF.

A snapshot is the document with all session markups burned in. Generation
is asynchronous: the command polls until the snapshot is ready, bounded by
the [snapshot] poll_interval and max_polls settings.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runSnapshot,
	}

	cmd.Flags().Bool("status-only", false, "print the snapshot job status without downloading")

	return cmd
}

// snapshotStatusJSON is the JSON output schema for --status-only.
type snapshotStatusJSON struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// snapshotDownloadJSON is the JSON output schema for a completed download.
type snapshotDownloadJSON struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	fileID, err := parseFileID(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	statusOnly, err := cmd.Flags().GetBool("status-only")
	if err != nil {
		return err
	}

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	if statusOnly {
		return printSnapshotStatus(ctx, client, sessionID, fileID)
	}

	dest := snapshotDestPath(args, sessionID, fileID)

	logger.Debug("downloading snapshot", "session_id", sessionID, "file_id", fileID, "dest", dest)

	opts := studio.DownloadSnapshotOptions{
		PollInterval:    resolvedCfg.Snapshot.PollIntervalDuration(),
		MaxPolls:        resolvedCfg.Snapshot.MaxPolls,
		TransferTimeout: resolvedCfg.Snapshot.DownloadTimeoutDuration(),
	}

	statusf(flagQuiet, "Requesting snapshot of file %d (generation can take a while)...\n", fileID)

	path, err := client.DownloadSnapshot(ctx, sessionID, fileID, dest, opts)
	if err != nil {
		if errors.Is(err, studio.ErrSnapshotTimeout) {
			return fmt.Errorf("snapshot of file %d was not ready after %d polls, try again later: %w",
				fileID, opts.MaxPolls, err)
		}

		return err
	}

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat after download: %w", err)
	}

	if flagJSON {
		return encodeJSON(snapshotDownloadJSON{Path: path, Size: fi.Size()})
	}

	statusf(flagQuiet, "Snapshot saved to %s (%s)\n", path, formatSize(fi.Size()))

	return nil
}

// snapshotDestPath picks the output path: the explicit third argument, or
// "<session-id>-<file-id>-snapshot.pdf" in the current directory.
func snapshotDestPath(args []string, sessionID string, fileID int64) string {
	if len(args) > 2 {
		return args[2]
	}

	return fmt.Sprintf("%s-%d-snapshot.pdf", sessionID, fileID)
}

func printSnapshotStatus(ctx context.Context, client *studio.Client, sessionID string, fileID int64) error {
	snap, err := client.SnapshotStatus(ctx, sessionID, fileID)
	if err != nil {
		return fmt.Errorf("fetching snapshot status: %w", err)
	}

	if flagJSON {
		return encodeJSON(snapshotStatusJSON{Status: snap.Status, Ready: snap.Ready()})
	}

	fmt.Printf("Status: %s\n", snap.Status)

	if snap.Ready() {
		fmt.Printf("The snapshot is ready to download.\n")
	}

	return nil
}
