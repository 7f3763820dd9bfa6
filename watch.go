package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/config"
	"github.com/bluebeam-community/studio-go/internal/journal"
	"github.com/bluebeam-community/studio-go/internal/watch"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-id> <dir>",
		Short: "Watch a directory and upload changed documents to a session",
		Long: `Watch a local directory tree and automatically upload new or modified PDF
documents to a Studio Session.

Events are debounced so editors that write in bursts trigger one upload.
Completed uploads land in the journal and unchanged files are skipped after
a restart. Edit the config file and run 'studio-go watch --reload' to apply
changes without stopping; stop with Ctrl-C.`,
		Args: cobra.MaximumNArgs(2),
		RunE: runWatch,
	}

	cmd.Flags().Bool("upload-existing", false, "upload files already in the directory on startup")
	cmd.Flags().Bool("reload", false, "signal the running watcher to reload its configuration")

	return cmd
}

// errReloadRequested signals that the watch loop should rebuild the watcher
// with freshly resolved configuration.
var errReloadRequested = errors.New("reload requested")

// watchPIDPath returns the PID file path for the watch daemon, kept in the
// same data directory as the journal.
func watchPIDPath() string {
	dir := config.DefaultDataDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, "watch.pid")
}

func runWatch(cmd *cobra.Command, args []string) error {
	reload, err := cmd.Flags().GetBool("reload")
	if err != nil {
		return err
	}

	if reload {
		return sendSIGHUP(watchPIDPath())
	}

	if len(args) != 2 {
		return fmt.Errorf("watch requires a session ID and a directory (see 'studio-go watch --help')")
	}

	sessionID, dir := args[0], args[1]

	uploadExisting, err := cmd.Flags().GetBool("upload-existing")
	if err != nil {
		return err
	}

	logger := buildLogger()

	cleanup, err := writePIDFile(watchPIDPath())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), logger)
	reloadCh := notifyReload()
	holder := config.NewHolder(resolvedCfg, configPathInUse())

	statusf(flagQuiet, "Watching %s for session %s (Ctrl-C to stop)\n", dir, sessionID)

	for {
		err := runWatchOnce(ctx, holder, logger, sessionID, dir, uploadExisting, reloadCh)
		if !errors.Is(err, errReloadRequested) {
			return err
		}

		newCfg, reloadErr := reloadWatchConfig()
		if reloadErr != nil {
			// Keep watching with the previous config rather than dying on
			// a bad edit.
			logger.Warn("config reload failed, keeping previous config",
				slog.String("error", reloadErr.Error()),
			)

			continue
		}

		holder.Update(newCfg)
		resolvedCfg = newCfg
		logger = buildLogger()
		logger.Info("configuration reloaded", slog.String("path", holder.Path()))
	}
}

// runWatchOnce builds a watcher from the current config and runs it until
// shutdown or SIGHUP. An errReloadRequested return means "rebuild me with
// new config".
func runWatchOnce(
	ctx context.Context, holder *config.Holder, logger *slog.Logger,
	sessionID, dir string, uploadExisting bool, reloadCh <-chan os.Signal,
) error {
	cfg := holder.Config()

	client, err := authedClient(cfg, logger)
	if err != nil {
		return err
	}

	jrnl, err := journal.Open(cfg.Watch.JournalFile, logger)
	if err != nil {
		return fmt.Errorf("opening upload journal: %w", err)
	}
	defer jrnl.Close()

	opts := watchOptionsFromConfig(cfg, sessionID, dir)
	if uploadExisting {
		opts.UploadExisting = true
	}

	watcher, err := watch.New(client, jrnl, logger, opts)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- watcher.Run(runCtx)
	}()

	select {
	case <-reloadCh:
		logger.Info("received SIGHUP, reloading configuration")
		cancel()

		// Wait for in-flight uploads and journal writes to finish before
		// the journal closes.
		<-done

		return errReloadRequested
	case err := <-done:
		return err
	}
}

// watchOptionsFromConfig maps [watch] and [upload] config onto watcher
// options.
func watchOptionsFromConfig(cfg *config.Config, sessionID, dir string) watch.Options {
	return watch.Options{
		SessionID:      sessionID,
		Dir:            dir,
		Debounce:       cfg.Watch.DebounceDuration(),
		RescanInterval: cfg.Watch.RescanIntervalDuration(),
		Concurrency:    cfg.Upload.Concurrency,
		UploadExisting: cfg.Watch.UploadExisting,
		IgnoreDotfiles: cfg.Watch.IgnoreDotfiles,
		MaxFileSize:    cfg.Upload.MaxFileSizeBytes(),
		Transfer:       uploadOptionsFromConfig(cfg),
	}
}

// reloadWatchConfig re-resolves configuration with the same CLI overrides
// the process started with, picking up config file edits.
func reloadWatchConfig() (*config.Config, error) {
	cfg, err := config.Resolve(config.ReadEnvOverrides(), cliOverrides())
	if err != nil {
		return nil, fmt.Errorf("reloading config: %w", err)
	}

	return cfg, nil
}
