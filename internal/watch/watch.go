// Package watch monitors a local directory and uploads new or changed
// documents to a Studio session. Filesystem events are debounced, checked
// against the upload journal, and sent through the client's upload protocol
// with bounded concurrency. A periodic full rescan catches events the
// kernel watcher missed.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/unicode/norm"

	"github.com/bluebeam-community/studio-go/internal/journal"
	"github.com/bluebeam-community/studio-go/internal/studio"
)

const (
	defaultDebounce    = 2 * time.Second
	defaultConcurrency = 4

	watchErrInitBackoff = 100 * time.Millisecond
	watchErrBackoffMult = 2
	watchErrMaxBackoff  = 10 * time.Second
)

// alwaysExcludedSuffixes lists file endings that are never uploaded: partial
// downloads and editor temporaries that will be renamed or deleted moments
// later.
var alwaysExcludedSuffixes = []string{".partial", ".tmp", ".swp", ".crdownload", ".part"}

// Uploader is the part of the Studio client the watcher uses.
type Uploader interface {
	Upload(ctx context.Context, sessionID, path string, opts studio.UploadOptions) (*studio.FileUpload, error)
}

// Journal records completed uploads so unchanged files are skipped.
type Journal interface {
	Get(ctx context.Context, sessionID, path string) (*journal.Record, error)
	Upsert(ctx context.Context, r *journal.Record) error
}

// FsWatcher abstracts fsnotify.Watcher so tests can inject events.
type FsWatcher interface {
	Add(path string) error
	Remove(path string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

// fsnotifyWatcher adapts *fsnotify.Watcher to the FsWatcher interface
// (fsnotify exposes its channels as struct fields, not methods).
type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (FsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(path string) error         { return f.w.Add(path) }
func (f *fsnotifyWatcher) Remove(path string) error      { return f.w.Remove(path) }
func (f *fsnotifyWatcher) Close() error                  { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error          { return f.w.Errors }

// Options configure a Watcher.
type Options struct {
	// SessionID is the Studio session files are uploaded into.
	SessionID string

	// Dir is the local directory to watch, including subdirectories.
	Dir string

	// Debounce is the quiet period after the last filesystem event before a
	// batch is uploaded. Zero means two seconds.
	Debounce time.Duration

	// RescanInterval triggers a periodic full walk of Dir as a safety net
	// for missed events. Zero disables it.
	RescanInterval time.Duration

	// Concurrency bounds parallel uploads within a batch. Zero means four.
	Concurrency int

	// UploadExisting uploads eligible files already present when the
	// watcher starts.
	UploadExisting bool

	// IgnoreDotfiles skips files and directories whose name starts with a
	// dot.
	IgnoreDotfiles bool

	// MaxFileSize skips files larger than this many bytes. Zero means no
	// limit.
	MaxFileSize int64

	// Transfer is handed to the client unchanged on every upload.
	Transfer studio.UploadOptions
}

// Watcher watches one directory for one session.
type Watcher struct {
	uploader Uploader
	journal  Journal
	logger   *slog.Logger
	opts     Options

	buffer *buffer

	// newFsWatcher is swappable in tests.
	newFsWatcher func() (FsWatcher, error)
}

// New creates a Watcher. The directory must exist.
func New(uploader Uploader, jrnl Journal, logger *slog.Logger, opts Options) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.SessionID == "" {
		return nil, errors.New("watch: session ID is required")
	}

	if opts.Dir == "" {
		return nil, errors.New("watch: directory is required")
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", opts.Dir)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	return &Watcher{
		uploader:     uploader,
		journal:      jrnl,
		logger:       logger,
		opts:         opts,
		buffer:       newBuffer(logger),
		newFsWatcher: newFsnotifyWatcher,
	}, nil
}

// Run watches until the context is canceled. A canceled context is a normal
// shutdown, not an error.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := w.newFsWatcher()
	if err != nil {
		return fmt.Errorf("watch: creating filesystem watcher: %w", err)
	}
	defer fsw.Close()

	w.logger.Info("watching directory",
		"dir", w.opts.Dir,
		"session_id", w.opts.SessionID,
		"debounce", w.opts.Debounce,
	)

	batches := w.buffer.flushDebounced(ctx, w.opts.Debounce)

	done := make(chan struct{})

	go func() {
		defer close(done)

		for batch := range batches {
			w.uploadBatch(ctx, batch)
		}
	}()

	// Register watches for the whole tree and optionally enqueue what is
	// already there.
	w.scanTree(ctx, fsw, w.opts.UploadExisting)

	err = w.watchLoop(ctx, fsw)

	// The debounce goroutine closes batches after the final drain; wait so
	// in-flight journal writes finish before the journal is closed.
	<-done

	return err
}

// watchLoop is the main select loop: filesystem events, watcher errors with
// exponential backoff, and the periodic rescan tick.
func (w *Watcher) watchLoop(ctx context.Context, fsw FsWatcher) error {
	var rescanC <-chan time.Time

	if w.opts.RescanInterval > 0 {
		ticker := time.NewTicker(w.opts.RescanInterval)
		defer ticker.Stop()

		rescanC = ticker.C
	}

	errBackoff := watchErrInitBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events():
			if !ok {
				return nil
			}

			w.handleFsEvent(ctx, ev, fsw)

			errBackoff = watchErrInitBackoff

		case watchErr, ok := <-fsw.Errors():
			if !ok {
				return nil
			}

			w.logger.Warn("filesystem watcher error",
				"error", watchErr, "backoff", errBackoff)

			// Backoff prevents a tight loop under sustained errors, e.g.
			// kernel event buffer overflow.
			if sleepErr := sleepCtx(ctx, errBackoff); sleepErr != nil {
				return nil
			}

			errBackoff *= watchErrBackoffMult
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}

		case <-rescanC:
			w.logger.Debug("running periodic rescan")
			w.scanTree(ctx, fsw, true)
		}
	}
}

// handleFsEvent classifies a single filesystem event. New directories get a
// watch plus a scan for contents that appeared before the watch was
// registered; new and modified files are buffered for upload.
func (w *Watcher) handleFsEvent(ctx context.Context, ev fsnotify.Event, fsw FsWatcher) {
	// Mode changes alone are not uploads.
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	// Removes and renames have nothing to upload. The journal entry stays:
	// the file is still in the session, and if the same bytes come back the
	// entry saves a re-upload.
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Base(ev.Name)

	if w.skipName(name) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		// Gone already. Temp files from editors often live for milliseconds.
		w.logger.Debug("stat failed for event path", "path", ev.Name, "error", err)
		return
	}

	if info.IsDir() {
		if !ev.Has(fsnotify.Create) {
			return
		}

		if err := fsw.Add(ev.Name); err != nil {
			w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
		}

		// Files created inside before the watch registered would otherwise
		// be missed.
		w.scanDir(ctx, fsw, ev.Name)

		return
	}

	if !w.eligibleFile(name) {
		return
	}

	w.buffer.add(ev.Name)
}

// skipName filters names that are never watched or uploaded: dotfiles when
// configured, editor backups, and partial-file suffixes.
func (w *Watcher) skipName(name string) bool {
	if name == "" {
		return true
	}

	if w.opts.IgnoreDotfiles && strings.HasPrefix(name, ".") {
		return true
	}

	if strings.HasPrefix(name, "~") {
		return true
	}

	lower := strings.ToLower(name)
	for _, suffix := range alwaysExcludedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return false
}

// eligibleFile applies the extension filter on top of skipName.
func (w *Watcher) eligibleFile(name string) bool {
	if w.opts.Transfer.DisableExtensionCheck {
		return true
	}

	ext := w.opts.Transfer.RequiredExtension
	if ext == "" {
		ext = ".pdf"
	}

	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext))
}

// scanTree walks the whole directory, registering a watch on every
// directory and, when enqueue is set, buffering every eligible file.
func (w *Watcher) scanTree(ctx context.Context, fsw FsWatcher, enqueue bool) {
	err := filepath.WalkDir(w.opts.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.logger.Warn("walk error", "path", path, "error", walkErr)

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if path != w.opts.Dir && w.skipName(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			// Re-adding an already watched directory is a no-op.
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", err)
			}

			return nil
		}

		if enqueue && w.eligibleFile(d.Name()) {
			w.buffer.add(path)
		}

		return nil
	})
	if err != nil && ctx.Err() == nil {
		w.logger.Warn("directory scan failed", "dir", w.opts.Dir, "error", err)
	}
}

// scanDir registers watches and buffers eligible files for one new
// directory, recursing into subdirectories.
func (w *Watcher) scanDir(ctx context.Context, fsw FsWatcher, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("scan of new directory failed", "dir", dir, "error", err)
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		if w.skipName(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("failed to watch nested directory", "path", path, "error", err)
			}

			w.scanDir(ctx, fsw, path)

			continue
		}

		if w.eligibleFile(entry.Name()) {
			w.buffer.add(path)
		}
	}
}

// relKey converts an absolute path under Dir to the journal key: relative,
// forward slashes, NFC-normalized so macOS and Linux spellings of the same
// name share one record.
func (w *Watcher) relKey(path string) (string, error) {
	rel, err := filepath.Rel(w.opts.Dir, path)
	if err != nil {
		return "", fmt.Errorf("watch: computing relative path for %s: %w", path, err)
	}

	return norm.NFC.String(filepath.ToSlash(rel)), nil
}

// sleepCtx waits for the given duration or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
