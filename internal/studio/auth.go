package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credentials holds the OAuth2 application registration used for the
// Authorization Code + refresh flow. ClientSecret is a secret and must
// never be logged.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string // DefaultScopes when empty
}

// TokenManager owns the current Token for a Studio client. It builds the
// authorization redirect URL, exchanges authorization codes and refresh
// tokens at the token endpoint, and produces Authorization header values,
// refreshing inline when the stored token has expired.
//
// The stored token is guarded by a mutex, and the expiry check plus refresh
// happen under a single hold, so concurrent callers never trigger duplicate
// refreshes or read a half-replaced token. Token endpoint POSTs go straight
// to the HTTP client, skipping the retry pipeline: a failed exchange or
// refresh is an authentication problem retries would only mask.
type TokenManager struct {
	oauth      oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger

	mu    sync.Mutex
	token *Token

	// onChange is invoked with each newly stored token, outside the mutex.
	// The CLI uses it to persist tokens across runs.
	onChange func(*Token)
}

// NewTokenManager creates a TokenManager for the given region base URL.
// httpClient and logger may be nil (http.DefaultClient / slog.Default()).
func NewTokenManager(baseURL string, creds Credentials, httpClient *http.Client, logger *slog.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &TokenManager{
		oauth: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + authorizePath,
				TokenURL: baseURL + tokenPath,
			},
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// OnTokenChange registers a hook invoked with each newly stored token
// (after exchange, refresh, or SetToken). Must be set before the manager
// is shared between goroutines.
func (m *TokenManager) OnTokenChange(fn func(*Token)) {
	m.onChange = fn
}

// AuthorizationURL builds the provider's authorize endpoint URL:
// response_type=code, client_id, redirect_uri, space-joined scopes, state
// (only when non-empty), and any extra parameters applied last so caller
// values win on key collision. No network call.
func (m *TokenManager) AuthorizationURL(state string, extra map[string]string) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(extra))
	for k, v := range extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	return m.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode swaps an authorization code for a Token at the token endpoint
// and stores it as the current token.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	m.logger.Info("exchanging authorization code for token")

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {m.oauth.RedirectURL},
		"client_id":     {m.oauth.ClientID},
		"client_secret": {m.oauth.ClientSecret},
	}

	tok, err := m.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	m.logger.Info("token exchange successful",
		slog.Time("expiry", tok.ExpiryTime()),
		slog.Bool("has_refresh_token", tok.RefreshToken != ""),
	)

	m.notify(tok)

	return tok, nil
}

// Refresh exchanges the stored refresh token for a new Token and stores it.
// Fails with ErrAuthentication when no token is stored or the stored token
// carries no refresh token.
func (m *TokenManager) Refresh(ctx context.Context) (*Token, error) {
	m.mu.Lock()

	tok, err := m.refreshLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	m.token = tok
	m.mu.Unlock()

	m.notify(tok)

	return tok, nil
}

// AuthorizationHeader returns the value for the Authorization header,
// refreshing first (exactly once, inline) when the stored token is expired.
// Fails with ErrAuthentication when no token is stored.
func (m *TokenManager) AuthorizationHeader(ctx context.Context) (string, error) {
	m.mu.Lock()

	if m.token == nil {
		m.mu.Unlock()
		return "", fmt.Errorf("studio: no token set, complete the authorization code flow first: %w", ErrAuthentication)
	}

	if !m.token.IsExpired() {
		header := "Bearer " + m.token.AccessToken
		m.mu.Unlock()

		return header, nil
	}

	tok, err := m.refreshLocked(ctx)
	if err != nil {
		m.mu.Unlock()
		return "", err
	}

	m.token = tok
	m.mu.Unlock()

	m.notify(tok)

	return "Bearer " + tok.AccessToken, nil
}

// SetToken stores a token obtained elsewhere (a persisted token file, or a
// pre-issued access token) as the current token.
func (m *TokenManager) SetToken(tok *Token) {
	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	if tok != nil {
		m.notify(tok)
	}
}

// Token returns the current token, or nil when none is stored.
func (m *TokenManager) Token() *Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token
}

// refreshLocked performs the refresh POST and carry-over defaulting.
// Caller must hold m.mu; the network call happens under the lock on purpose
// so concurrent expired callers wait for one refresh instead of racing.
func (m *TokenManager) refreshLocked(ctx context.Context) (*Token, error) {
	if m.token == nil {
		return nil, fmt.Errorf("studio: no token to refresh: %w", ErrAuthentication)
	}

	if m.token.RefreshToken == "" {
		return nil, fmt.Errorf("studio: stored token has no refresh token: %w", ErrAuthentication)
	}

	m.logger.Info("refreshing expired token")

	prev := m.token

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {prev.RefreshToken},
		"client_id":     {m.oauth.ClientID},
		"client_secret": {m.oauth.ClientSecret},
	}

	tok, err := m.requestToken(ctx, form)
	if err != nil {
		m.logger.Warn("token refresh failed", slog.String("error", err.Error()))
		return nil, err
	}

	// Servers may omit refresh_token and scope on refresh responses; carry
	// the previous values forward so the session can keep refreshing.
	if tok.RefreshToken == "" {
		tok.RefreshToken = prev.RefreshToken
	}

	if tok.Scope == "" {
		tok.Scope = prev.Scope
	}

	m.logger.Info("token refreshed", slog.Time("expiry", tok.ExpiryTime()))

	return tok, nil
}

// tokenResponse mirrors the token endpoint JSON. expires_in is a pointer so
// an absent field (default 3600) is distinguishable from an explicit zero.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    *int64 `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// requestToken POSTs a form to the token endpoint and parses the response
// into a Token. Any non-200 response is an ErrAuthentication carrying the
// status and body.
func (m *TokenManager) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.oauth.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("studio: creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("studio: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("studio: reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Err:        ErrAuthentication,
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("studio: decoding token response: %w", err)
	}

	if tr.AccessToken == "" {
		return nil, fmt.Errorf("studio: token response missing access_token: %w", ErrAuthentication)
	}

	tok := &Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    defaultExpiresIn,
		RefreshToken: tr.RefreshToken,
		Scope:        tr.Scope,
		ObtainedAt:   time.Now(),
	}

	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}

	if tr.ExpiresIn != nil {
		tok.ExpiresIn = *tr.ExpiresIn
	}

	return tok, nil
}

func (m *TokenManager) notify(tok *Token) {
	if m.onChange != nil {
		m.onChange(tok)
	}
}
