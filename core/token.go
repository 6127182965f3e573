package core

import (
	"context"
	"errors"
	"time"
)

// ErrTokenStoreUnavailable marks a token store failure. It is never reported as a missing token.
var ErrTokenStoreUnavailable = errors.New("token store unavailable")

// Token is a server-side session record. Identity is ID, not Username.
// Tokens are values and are never mutated after creation.
type Token struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewToken mints a token with a fresh random id. A zero ttl leaves ExpiresAt unset.
func NewToken(username string, now time.Time, ttl time.Duration) Token {
	t := Token{
		ID:       newTokenID(),
		Username: username,
		IssuedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		t.ExpiresAt = &exp
	}
	return t
}

// ExpiredAt reports whether the token has expired at now.
func (t Token) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// TTL returns the remaining lifetime at now, or 0 when the token has no expiry.
func (t Token) TTL(now time.Time) time.Duration {
	if t.ExpiresAt == nil {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// TokenManager stores, resolves, enumerates and revokes session tokens.
// Implementations must be safe for concurrent use.
type TokenManager interface {
	// Add registers t; the last write wins for a reused id.
	Add(ctx context.Context, t Token) error
	// Lookup returns the token when present and unexpired. An expired token is absent.
	Lookup(ctx context.Context, id string) (Token, bool, error)
	// Remove deletes id. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error
	// Tokens returns a snapshot; concurrent mutations may or may not be reflected.
	Tokens(ctx context.Context) ([]Token, error)
}

var nowFunc = time.Now
