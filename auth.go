package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bluebeam-community/studio-go/internal/studio"
	"github.com/bluebeam-community/studio-go/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Bluebeam Studio",
		Long: `Authenticate with Bluebeam Studio using the authorization code flow.

Prints the authorization URL to open in a browser. After approving access,
paste the authorization code (or the full redirect URL) back here. The
resulting token is saved for later commands and refreshed automatically.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved login token",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display login state and token expiry",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	client, err := newStudioClient(resolvedCfg, logger)
	if err != nil {
		return err
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	tokens := client.Tokens()

	// Login prompts must always be visible, not suppressed by --quiet.
	fmt.Fprintf(os.Stderr, "To sign in, open this URL in your browser:\n\n  %s\n\n", tokens.AuthorizationURL(state, nil))
	fmt.Fprintf(os.Stderr, "Paste the authorization code (or the full redirect URL) here: ")

	code, err := readAuthCode(os.Stdin, state)
	if err != nil {
		return err
	}

	tok, err := tokens.ExchangeCode(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	meta := map[string]string{
		tokenfile.MetaRegion: resolvedCfg.Auth.Region,
		tokenfile.MetaScope:  tok.Scope,
	}

	tokenPath := resolvedCfg.Auth.TokenFile
	if err := tokenfile.Save(tokenPath, tok.OAuth2Token(), meta); err != nil {
		return err
	}

	logger.Info("login successful", "region", resolvedCfg.Auth.Region)
	statusf(flagQuiet, "Login successful. Token saved to %s\n", tokenPath)

	return nil
}

// readAuthCode reads the pasted authorization response from r. Users often
// paste the entire redirect URL instead of the bare code, so both are
// accepted; when the URL carries a state parameter it must match the one we
// sent.
func readAuthCode(r io.Reader, state string) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading authorization code: %w", err)
		}

		return "", errors.New("no authorization code entered")
	}

	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return "", errors.New("no authorization code entered")
	}

	if !strings.Contains(input, "://") {
		return input, nil
	}

	// Full redirect URL paste: extract the code and verify state.
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URL: %w", err)
	}

	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("redirect URL carries no code parameter")
	}

	if got := u.Query().Get("state"); got != "" && got != state {
		return "", errors.New("state parameter mismatch in redirect URL (stale login attempt?)")
	}

	return code, nil
}

// randomState returns a hex-encoded random state value for the
// authorization redirect.
func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state parameter: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	tokenPath := resolvedCfg.Auth.TokenFile

	if err := os.Remove(tokenPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			statusf(flagQuiet, "Not logged in.\n")

			return nil
		}

		return fmt.Errorf("removing token file: %w", err)
	}

	logger.Info("logout successful", slog.String("token_file", tokenPath))
	statusf(flagQuiet, "Logged out.\n")

	return nil
}

// statusOutput is the JSON schema for `status --json`. Token values are
// never part of it.
type statusOutput struct {
	LoggedIn   bool   `json:"logged_in"`
	Region     string `json:"region,omitempty"`
	Scope      string `json:"scope,omitempty"`
	TokenFile  string `json:"token_file"`
	Expiry     string `json:"expiry,omitempty"`
	Expired    bool   `json:"expired,omitempty"`
	CanRefresh bool   `json:"can_refresh,omitempty"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	tokenPath := resolvedCfg.Auth.TokenFile

	saved, meta, err := tokenfile.Load(tokenPath)
	if err != nil {
		return err
	}

	out := statusOutput{TokenFile: tokenPath}

	if saved != nil {
		tok := studio.TokenFromOAuth2(saved, meta[tokenfile.MetaScope])
		out.LoggedIn = true
		out.Region = meta[tokenfile.MetaRegion]
		out.Scope = tok.Scope
		out.Expiry = tok.ExpiryTime().Format(time.RFC3339)
		out.Expired = tok.IsExpired()
		out.CanRefresh = tok.RefreshToken != ""
	}

	if flagJSON {
		return encodeJSON(out)
	}

	printStatusText(out)

	return nil
}

func printStatusText(out statusOutput) {
	if !out.LoggedIn {
		fmt.Printf("Not logged in (no token at %s).\n", out.TokenFile)
		fmt.Printf("Run 'studio-go login' to authenticate.\n")

		return
	}

	fmt.Printf("Logged in.\n")

	if out.Region != "" {
		fmt.Printf("Region:     %s\n", out.Region)
	}

	if out.Scope != "" {
		fmt.Printf("Scope:      %s\n", out.Scope)
	}

	fmt.Printf("Token file: %s\n", out.TokenFile)
	fmt.Printf("Expires:    %s%s\n", out.Expiry, expiryNote(out))
}

// expiryNote annotates the expiry line: an expired token is only a problem
// when there is no refresh token to recover with.
func expiryNote(out statusOutput) string {
	if !out.Expired {
		return ""
	}

	if out.CanRefresh {
		return " (expired, will refresh on next use)"
	}

	return " (expired, run 'studio-go login' again)"
}
