package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bluebeam-community/studio-go/internal/config"
	"github.com/bluebeam-community/studio-go/internal/studio"
	"github.com/bluebeam-community/studio-go/internal/tokenfile"
)

// httpClientTimeout is the fallback HTTP timeout used when config is
// unavailable. Prevents hung connections from blocking CLI commands
// indefinitely.
const httpClientTimeout = 60 * time.Second

// defaultHTTPClient returns an HTTP client with a sensible timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// httpClientFromConfig builds the HTTP client from [network] settings.
func httpClientFromConfig(cfg *config.Config) *http.Client {
	client := defaultHTTPClient()
	client.Timeout = cfg.Network.TimeoutDuration()

	if cfg.Network.ForceHTTP11 {
		// A non-nil empty TLSNextProto map is the documented way to turn
		// off HTTP/2 on a transport.
		client.Transport = &http.Transport{
			TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
		}
	}

	return client
}

// credentialsFromConfig builds the OAuth2 application credentials from
// [auth] config. Fails with a hint about where credentials go when they
// are missing.
func credentialsFromConfig(cfg *config.Config) (studio.Credentials, error) {
	if cfg.Auth.ClientID == "" || cfg.Auth.ClientSecret == "" {
		return studio.Credentials{}, fmt.Errorf(
			"missing OAuth2 credentials: set client_id and client_secret in %s, or export %s and %s",
			configPathInUse(), config.EnvClientID, config.EnvClientSecret)
	}

	return studio.Credentials{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURI:  cfg.Auth.RedirectURI,
		Scopes:       cfg.Auth.Scopes,
	}, nil
}

// retryPolicyFromConfig maps [retry] config onto the client retry policy.
func retryPolicyFromConfig(cfg *config.Config) studio.RetryPolicy {
	policy := studio.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BackoffBase = cfg.Retry.BackoffBaseDuration()

	if len(cfg.Retry.RetryableStatuses) > 0 {
		statuses := make(map[int]bool, len(cfg.Retry.RetryableStatuses))
		for _, code := range cfg.Retry.RetryableStatuses {
			statuses[code] = true
		}

		policy.RetryableStatuses = statuses
	}

	return policy
}

// uploadOptionsFromConfig maps [upload] config onto transfer options.
// Per-command flags layer on top of the returned value.
func uploadOptionsFromConfig(cfg *config.Config) studio.UploadOptions {
	return studio.UploadOptions{
		ContentType:             cfg.Upload.ContentType,
		DisableExtensionCheck:   cfg.Upload.AllowAnyExtension,
		DisableEncryptionHeader: !cfg.Upload.EncryptionHeader,
		TransferTimeout:         cfg.Upload.TransferTimeoutDuration(),
	}
}

// newStudioClient assembles an unauthenticated Studio client from config:
// region base URL, HTTP client, retry policy, logger. Used by login, which
// has no saved token yet.
func newStudioClient(cfg *config.Config, logger *slog.Logger) (*studio.Client, error) {
	creds, err := credentialsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	client, err := studio.NewClientForRegion(cfg.Auth.Region, creds, httpClientFromConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	client.SetRetryPolicy(retryPolicyFromConfig(cfg))

	return client, nil
}

// authedClient builds a Studio client and loads the saved login token into
// it. Tokens handed out by a refresh are persisted back to the token file
// so the next run picks them up instead of refreshing again.
func authedClient(cfg *config.Config, logger *slog.Logger) (*studio.Client, error) {
	client, err := newStudioClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokenPath := cfg.Auth.TokenFile

	saved, meta, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if saved == nil {
		return nil, fmt.Errorf("not logged in, run 'studio-go login' first: %w", studio.ErrNotLoggedIn)
	}

	// A token minted in one region is not valid in another.
	if region := meta[tokenfile.MetaRegion]; region != "" && !strings.EqualFold(region, cfg.Auth.Region) {
		return nil, fmt.Errorf("saved token is for region %s but the configured region is %s, re-run 'studio-go login'",
			region, cfg.Auth.Region)
	}

	tokens := client.Tokens()
	tokens.SetToken(studio.TokenFromOAuth2(saved, meta[tokenfile.MetaScope]))

	tokens.OnTokenChange(func(tok *studio.Token) {
		if err := tokenfile.UpdateToken(tokenPath, tok.OAuth2Token()); err != nil {
			logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
		}
	})

	return client, nil
}

// apiClient builds the authenticated API client plus the logger commands
// log through. Most RunE functions start here.
func apiClient() (*studio.Client, *slog.Logger, error) {
	logger := buildLogger()

	client, err := authedClient(resolvedCfg, logger)
	if err != nil {
		return nil, nil, err
	}

	return client, logger, nil
}
