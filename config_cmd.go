package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file with all options documented",
		Args:  cobra.NoArgs,
		RunE:  runConfigInit,
	}
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := configPathInUse()

	if err := config.WriteStarter(path); err != nil {
		return err
	}

	statusf(flagQuiet, "Wrote starter config to %s\n", path)
	statusf(flagQuiet, "Add your OAuth2 client credentials there, then run 'studio-go login'.\n")

	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if flagJSON {
		return encodeJSON(redactedForShow(resolvedCfg))
	}

	return config.RenderEffective(resolvedCfg, os.Stdout)
}

// redactedForShow returns a copy of cfg safe for display: the client secret
// is replaced so "config show --json" never prints it. RenderEffective does
// its own redaction for the text path.
func redactedForShow(cfg *config.Config) *config.Config {
	out := *cfg
	if out.Auth.ClientSecret != "" {
		out.Auth.ClientSecret = "(redacted)"
	}

	return &out
}
