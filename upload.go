package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bluebeam-community/studio-go/internal/journal"
	"github.com/bluebeam-community/studio-go/internal/studio"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <session-id> <file>...",
		Short: "Upload documents to a session",
		Long: `Upload one or more local PDF documents to a Studio Session.

Multiple files upload in parallel, bounded by the [upload] concurrency
setting. Completed uploads are recorded in the journal; re-running the same
command skips files whose content has not changed since the last upload
(use --force to re-upload regardless).`,
		Args: cobra.MinimumNArgs(2),
		RunE: runUpload,
	}

	cmd.Flags().String("source", "", "source label stored with the uploaded documents")
	cmd.Flags().Bool("force", false, "upload even when the journal says the file is unchanged")

	return cmd
}

// uploadTally counts outcomes across the upload workers.
type uploadTally struct {
	mu       sync.Mutex
	uploaded int
	skipped  int
	failed   []string
}

func (t *uploadTally) addUploaded() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.uploaded++
}

func (t *uploadTally) addSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped++
}

func (t *uploadTally) addFailed(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = append(t.failed, path)
}

func runUpload(cmd *cobra.Command, args []string) error {
	sessionID := args[0]
	paths := args[1:]
	ctx := cmd.Context()

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	source, err := cmd.Flags().GetString("source")
	if err != nil {
		return err
	}

	client, logger, err := apiClient()
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(resolvedCfg.Watch.JournalFile, logger)
	if err != nil {
		return fmt.Errorf("opening upload journal: %w", err)
	}
	defer jrnl.Close()

	opts := uploadOptionsFromConfig(resolvedCfg)
	opts.Source = source

	tally := &uploadTally{}

	var g errgroup.Group
	g.SetLimit(resolvedCfg.Upload.Concurrency)

	for _, path := range paths {
		g.Go(func() error {
			// Workers never return errors; failures are tallied so one bad
			// file does not stop the batch.
			uploadPath(ctx, client, jrnl, logger, sessionID, path, opts, force, tally)

			return nil
		})
	}

	_ = g.Wait()

	if tally.skipped > 0 {
		statusf(flagQuiet, "Uploaded %d, skipped %d unchanged.\n", tally.uploaded, tally.skipped)
	}

	if len(tally.failed) > 0 {
		return fmt.Errorf("failed to upload %s", strings.Join(tally.failed, ", "))
	}

	return nil
}

// uploadPath uploads one file, consulting the journal first. Journal rows
// for direct uploads are keyed by absolute path, so the same file uploaded
// from different working directories still matches.
func uploadPath(
	ctx context.Context, client *studio.Client, jrnl *journal.Store,
	logger *slog.Logger, sessionID, path string,
	opts studio.UploadOptions, force bool, tally *uploadTally,
) {
	abs, err := filepath.Abs(path)
	if err != nil {
		logger.Warn("cannot resolve path", "path", path, "error", err)
		tally.addFailed(path)

		return
	}

	info, err := os.Stat(abs)
	if err != nil {
		logger.Warn("cannot stat file", "path", path, "error", err)
		tally.addFailed(path)

		return
	}

	if info.IsDir() {
		logger.Warn("skipping directory", "path", path)
		tally.addFailed(path)

		return
	}

	if limit := resolvedCfg.Upload.MaxFileSizeBytes(); limit > 0 && info.Size() > limit {
		logger.Warn("file exceeds max_file_size",
			"path", path,
			"size", info.Size(),
			"limit", limit,
		)
		tally.addFailed(path)

		return
	}

	hash, err := hashFileDisk(abs)
	if err != nil {
		logger.Warn("hashing failed", "path", path, "error", err)
		tally.addFailed(path)

		return
	}

	if !force && journaledUnchanged(ctx, jrnl, logger, sessionID, abs, info, hash) {
		logger.Debug("journal says unchanged, skipping", "path", path)
		statusf(flagQuiet, "Skipped %s (unchanged since last upload)\n", path)
		tally.addSkipped()

		return
	}

	up, err := client.Upload(ctx, sessionID, abs, opts)
	if err != nil {
		logger.Warn("upload failed", "path", path, "error", err)
		tally.addFailed(path)

		return
	}

	recordUpload(ctx, jrnl, logger, sessionID, abs, info, hash, up)
	statusf(flagQuiet, "Uploaded %s (%s) as file %d\n", path, formatSize(info.Size()), up.FileID)
	tally.addUploaded()
}

// journaledUnchanged reports whether the journal says this exact content is
// already in the session. Size and mtime equality short-circuits; a touched
// file with identical bytes still skips via the hash comparison. A broken
// journal degrades to re-uploading, not to silence.
func journaledUnchanged(
	ctx context.Context, jrnl *journal.Store, logger *slog.Logger,
	sessionID, absPath string, info os.FileInfo, hash string,
) bool {
	rec, err := jrnl.Get(ctx, sessionID, absPath)
	if err != nil {
		logger.Warn("journal lookup failed", "path", absPath, "error", err)

		return false
	}

	if rec == nil {
		return false
	}

	if rec.Size == info.Size() && rec.ModTime == info.ModTime().UnixNano() {
		return true
	}

	return rec.SHA256 != "" && rec.SHA256 == hash
}

// recordUpload writes the journal row for a completed upload. The upload
// already succeeded; a missed journal write only costs a re-upload later.
func recordUpload(
	ctx context.Context, jrnl *journal.Store, logger *slog.Logger,
	sessionID, absPath string, info os.FileInfo, hash string, up *studio.FileUpload,
) {
	rec := &journal.Record{
		SessionID:  sessionID,
		Path:       absPath,
		Size:       info.Size(),
		ModTime:    info.ModTime().UnixNano(),
		SHA256:     hash,
		FileID:     up.FileID,
		UploadedAt: journal.NowNano(),
	}

	if err := jrnl.Upsert(ctx, rec); err != nil {
		logger.Warn("recording upload in journal failed", "path", absPath, "error", err)
	}
}

// hashFileDisk computes the hex-encoded SHA-256 digest of a file on disk.
func hashFileDisk(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
