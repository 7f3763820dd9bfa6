package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/bluebeam-community/studio-go/internal/journal"
)

// batchStats counts outcomes within one debounced batch for the summary log.
type batchStats struct {
	mu       gosync.Mutex
	uploaded int
	skipped  int
	failed   int
}

func (s *batchStats) addUploaded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploaded++
}

func (s *batchStats) addSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.skipped++
}

func (s *batchStats) addFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed++
}

// uploadBatch runs one debounced batch through a bounded worker pool. A
// failed upload never aborts the rest of the batch or the watcher; it is
// logged and retried on the next event or rescan.
func (w *Watcher) uploadBatch(ctx context.Context, paths []string) {
	if ctx.Err() != nil || len(paths) == 0 {
		return
	}

	w.logger.Debug("processing upload batch",
		"files", len(paths), "workers", w.opts.Concurrency)

	stats := &batchStats{}

	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)

	for _, path := range paths {
		g.Go(func() error {
			w.uploadOne(ctx, path, stats)
			return nil
		})
	}

	// Workers never return errors; failures are counted and logged.
	_ = g.Wait()

	if stats.uploaded > 0 || stats.failed > 0 {
		w.logger.Info("upload batch complete",
			"uploaded", stats.uploaded,
			"skipped", stats.skipped,
			"failed", stats.failed,
		)
	}
}

// uploadOne uploads a single file unless the journal shows the same content
// is already in the session. The cheap check is size plus mtime; when mtime
// differs the content hash decides, so a touch without a content change
// refreshes the journal instead of re-uploading.
func (w *Watcher) uploadOne(ctx context.Context, path string, stats *batchStats) {
	if ctx.Err() != nil {
		return
	}

	key, err := w.relKey(path)
	if err != nil {
		w.logger.Warn("skipping file outside watch root", "path", path, "error", err)
		stats.addFailed()

		return
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Deleted between the event and the flush.
			w.logger.Debug("file gone before upload", "path", key)
			stats.addSkipped()

			return
		}

		w.logger.Warn("stat failed", "path", key, "error", err)
		stats.addFailed()

		return
	}

	if info.IsDir() {
		return
	}

	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		w.logger.Warn("skipping file over size limit",
			"path", key, "size", info.Size(), "limit", w.opts.MaxFileSize)
		stats.addSkipped()

		return
	}

	mtime := info.ModTime().UnixNano()

	rec, err := w.journal.Get(ctx, w.opts.SessionID, key)
	if err != nil {
		// A broken journal degrades to re-uploading, not to silence.
		w.logger.Warn("journal lookup failed", "path", key, "error", err)
		rec = nil
	}

	if rec != nil && rec.Size == info.Size() && rec.ModTime == mtime {
		w.logger.Debug("unchanged since last upload", "path", key)
		stats.addSkipped()

		return
	}

	hash, err := hashFile(path)
	if err != nil {
		// Likely mid-write; the next event or rescan retries.
		w.logger.Warn("hashing failed", "path", key, "error", err)
		stats.addFailed()

		return
	}

	if rec != nil && rec.SHA256 == hash {
		// Same bytes, new mtime. Refresh the record so the cheap check
		// hits next time.
		rec.Size = info.Size()
		rec.ModTime = mtime

		if err := w.journal.Upsert(ctx, rec); err != nil {
			w.logger.Warn("journal refresh failed", "path", key, "error", err)
		}

		w.logger.Debug("content unchanged, journal refreshed", "path", key)
		stats.addSkipped()

		return
	}

	up, err := w.uploader.Upload(ctx, w.opts.SessionID, path, w.opts.Transfer)
	if err != nil {
		if ctx.Err() != nil {
			w.logger.Debug("upload canceled", "path", key)
		} else {
			w.logger.Warn("upload failed", "path", key, "error", err)
			stats.addFailed()
		}

		return
	}

	record := &journal.Record{
		SessionID:  w.opts.SessionID,
		Path:       key,
		Size:       info.Size(),
		ModTime:    mtime,
		SHA256:     hash,
		FileID:     up.FileID,
		UploadedAt: journal.NowNano(),
	}

	if err := w.journal.Upsert(ctx, record); err != nil {
		// The upload succeeded; a missed journal write only costs a hash
		// comparison later.
		w.logger.Warn("journal write failed", "path", key, "error", err)
	}

	w.logger.Info("uploaded file", "path", key, "file_id", up.FileID)
	stats.addUploaded()
}

// hashFile computes the hex SHA-256 of a file using streaming I/O.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("watch: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("watch: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
