package studio

import (
	"time"

	"golang.org/x/oauth2"
)

// expirySkew is subtracted from a token's lifetime so refresh happens a bit
// early, preventing in-flight requests from riding an about-to-expire token.
const expirySkew = 60 * time.Second

// defaultExpiresIn is assumed when the token endpoint omits expires_in.
const defaultExpiresIn = 3600

// Token is an OAuth2 access token with its expiry bookkeeping. Immutable
// after construction: refresh produces a new Token, it never mutates the old
// one. AccessToken and RefreshToken are secrets and must never be logged.
type Token struct {
	AccessToken  string
	TokenType    string // "Bearer" unless the server says otherwise
	ExpiresIn    int64  // lifetime in seconds at ObtainedAt
	RefreshToken string // empty when the server issued none
	Scope        string
	ObtainedAt   time.Time
}

// IsExpired reports whether the token should be refreshed before use.
func (t *Token) IsExpired() bool {
	return t.isExpiredAt(time.Now())
}

// isExpiredAt is the testable core of IsExpired: the token counts as expired
// once now >= ObtainedAt + max(0, ExpiresIn-60s).
func (t *Token) isExpiredAt(now time.Time) bool {
	lifetime := time.Duration(t.ExpiresIn)*time.Second - expirySkew
	if lifetime < 0 {
		lifetime = 0
	}

	return !now.Before(t.ObtainedAt.Add(lifetime))
}

// ExpiryTime returns the wall-clock instant the token expires (without the
// refresh skew).
func (t *Token) ExpiryTime() time.Time {
	return t.ObtainedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// OAuth2Token converts to the x/oauth2 representation used as the on-disk
// token file format. Scope is not part of oauth2.Token and travels in the
// token file's metadata instead.
func (t *Token) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiryTime(),
		ExpiresIn:    t.ExpiresIn,
	}
}

// TokenFromOAuth2 reconstructs a Token from its on-disk oauth2 form.
// scope comes from the token file's metadata (see tokenfile).
func TokenFromOAuth2(tok *oauth2.Token, scope string) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		ExpiresIn:    tok.ExpiresIn,
	}

	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}

	switch {
	case t.ExpiresIn > 0:
		t.ObtainedAt = tok.Expiry.Add(-time.Duration(t.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		// Older files without expires_in: anchor at now and keep the
		// remaining lifetime, clamped at zero (already-expired stays expired).
		remaining := int64(time.Until(tok.Expiry).Seconds())
		if remaining < 0 {
			remaining = 0
		}

		t.ExpiresIn = remaining
		t.ObtainedAt = time.Now()
	default:
		t.ObtainedAt = time.Now()
	}

	return t
}
