package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagRegion     string
	flagLogLevel   string
	flagTokenFile  string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Config

// skipConfigCommands lists commands that skip the four-layer config
// resolution. "config init" must work before a config file exists, and a
// broken config file should not stop it from writing a fresh one.
// Uses CommandPath() for explicit matching, safe against future subcommand
// collisions.
var skipConfigCommands = map[string]bool{
	"studio-go config init": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "studio-go",
		Short:   "Bluebeam Studio CLI client",
		Long:    "A CLI for Bluebeam Studio Sessions: manage sessions, upload documents, watch folders, and pull markup snapshots.",
		Version: version,
		// Silence Cobra's default error/usage printing, we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		// PersistentPreRunE resolves configuration before every command.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagRegion, "region", "", "Studio region (US, DE, AU, UK, SE)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flagTokenFile, "token-file", "", "saved login token path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// cliOverrides collects the persistent flag values into the config
// resolver's CLI layer. Empty string means "not set".
func cliOverrides() config.CLIOverrides {
	return config.CLIOverrides{
		ConfigPath: flagConfigPath,
		Region:     flagRegion,
		LogLevel:   flagLogLevel,
		TokenFile:  flagTokenFile,
	}
}

// configPathInUse reports which config file the resolver reads, mirroring
// its CLI > environment > default precedence.
func configPathInUse() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if env := os.Getenv(config.EnvConfig); env != "" {
		return env
	}

	return config.DefaultConfigPath()
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg for use by
// subcommands.
func loadConfig() error {
	cfg, err := config.Resolve(config.ReadEnvOverrides(), cliOverrides())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	// Config-based log level (lower priority than CLI flags).
	if resolvedCfg != nil {
		switch resolvedCfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	w := logDestination()
	opts := &slog.HandlerOptions{Level: level}

	if jsonLogOutput(w) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// logDestination returns the writer for log output: the configured log
// file (appended, created if missing) or stderr. A log file that cannot be
// opened falls back to stderr rather than failing the command.
func logDestination() io.Writer {
	if resolvedCfg == nil || resolvedCfg.Logging.LogFile == "" {
		return os.Stderr
	}

	f, err := os.OpenFile(resolvedCfg.Logging.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v\n", resolvedCfg.Logging.LogFile, err)

		return os.Stderr
	}

	return f
}

// jsonLogOutput decides between the text and JSON handlers. An explicit
// log_format wins; "auto" uses text only when logs go to a terminal, so
// redirected or file-bound logs stay machine-parseable.
func jsonLogOutput(w io.Writer) bool {
	format := ""
	if resolvedCfg != nil {
		format = resolvedCfg.Logging.LogFormat
	}

	switch format {
	case "json":
		return true
	case "text":
		return false
	}

	f, ok := w.(*os.File)

	return !ok || !isTerminal(f)
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
