package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const userAgent = "studio-go/0.1"

// Client is an HTTP client for the Studio Prime API. It composes the
// TokenManager, status classifier, and retry executor into a single call
// path: every API request carries a fresh Authorization header, the
// client_id header the API requires alongside the bearer token, and is
// retried per the configured RetryPolicy.
//
// All dependencies are fixed at construction. The zero value is not usable;
// call NewClient or NewClientForRegion.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     *TokenManager
	policy     RetryPolicy
	logger     *slog.Logger

	// sleep is called for retry backoff and snapshot poll waits. Tests
	// override it to avoid real delays.
	sleep sleepFunc
}

// NewClient creates a Studio API client against a region base URL such as
// "https://api.bluebeam.com". httpClient and logger may be nil
// (http.DefaultClient / slog.Default()); the retry policy starts at
// DefaultRetryPolicy and can be replaced with SetRetryPolicy.
func NewClient(baseURL string, tokens *TokenManager, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		policy:     DefaultRetryPolicy(),
		logger:     logger,
		sleep:      sleepContext,
	}
}

// NewClientForRegion resolves a region code ("US", "DE", "AU", "UK", "SE")
// to its base URL and builds the client plus its TokenManager from creds.
func NewClientForRegion(region string, creds Credentials, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	baseURL, err := BaseURLForRegion(region)
	if err != nil {
		return nil, err
	}

	tokens := NewTokenManager(baseURL, creds, httpClient, logger)

	return NewClient(baseURL, tokens, httpClient, logger), nil
}

// SetRetryPolicy replaces the retry policy. Must be called before the
// client is shared between goroutines.
func (c *Client) SetRetryPolicy(policy RetryPolicy) {
	c.policy = policy
}

// Tokens returns the TokenManager this client authenticates with.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// BaseURL returns the region base URL the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes an authenticated API request under the retry policy. path is
// relative to the versioned API root and may embed a query string; a
// non-nil body is JSON-encoded once and replayed on each attempt. On
// success the caller owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	url := c.baseURL + apiRoot + path

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("studio: encoding %s %s body: %w", method, path, err)
		}
	}

	resp, err := doRetry(ctx, c.policy, c.sleep, c.logger, func() (*http.Response, error) {
		return c.doOnce(ctx, method, url, payload)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("request succeeded",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// doOnce performs a single attempt: header injection, send, classification.
// Authorization failures (including a failed inline refresh) surface as
// ErrAuthentication and are not retried.
func (c *Client) doOnce(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("studio: creating request: %w", err)
	}

	header, err := c.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", header)
	req.Header.Set("client_id", c.tokens.oauth.ClientID)
	req.Header.Set("User-Agent", userAgent)

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("studio: %s %s: %w", method, url, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	// Read and close the body so the error carries the server's message and
	// the connection can be reused across retries.
	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return nil, newAPIError(resp, errBody)
}

// drainClose discards any remaining body and closes it, so no-content
// responses free their connection.
func drainClose(resp *http.Response) {
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain
	resp.Body.Close()
}
