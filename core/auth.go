package core

import (
	"context"
	"errors"
)

// Credential is a username/secret pair submitted during a login attempt.
// It is never persisted.
type Credential struct {
	Username string
	Secret   []byte
}

// AuthErrorKind tags why verification failed.
type AuthErrorKind int

const (
	UnknownUser AuthErrorKind = iota + 1
	InvalidCredential
)

func (k AuthErrorKind) String() string {
	switch k {
	case UnknownUser:
		return "UNKNOWN_USER"
	case InvalidCredential:
		return "INVALID_CREDENTIAL"
	default:
		return "AUTH_ERROR"
	}
}

// AuthError is the failure taxonomy of an Authenticator. Reason is surfaced
// verbatim to the login client.
type AuthError struct {
	Kind   AuthErrorKind
	Reason string
}

func (e *AuthError) Error() string { return e.Reason }

// Is matches any AuthError of the same kind, so callers can compare against
// ErrUnknownUser or ErrInvalidPassword regardless of the reason text.
func (e *AuthError) Is(target error) bool {
	var t *AuthError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	// ErrUnknownUser is returned when the username is not known to the authenticator.
	ErrUnknownUser = &AuthError{Kind: UnknownUser, Reason: "Unknown user specified"}
	// ErrInvalidPassword is returned when the username exists but the secret does not match.
	ErrInvalidPassword = &AuthError{Kind: InvalidCredential, Reason: "Invalid password"}
)

// Authenticator verifies a credential. It returns nil on success, an *AuthError
// when the credential is rejected, or any other error when verification could
// not be performed.
type Authenticator interface {
	Verify(ctx context.Context, cred Credential) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, cred Credential) error

func (f AuthenticatorFunc) Verify(ctx context.Context, cred Credential) error { return f(ctx, cred) }

type principalContextKey struct{}

// principalKey is the gin context key holding the authenticated username.
const principalKey = "principal"

// WithPrincipal returns a copy of ctx carrying the authenticated username.
func WithPrincipal(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, principalContextKey{}, username)
}

// PrincipalFromContext returns the username attached by the auth filter.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(principalContextKey{}).(string)
	return username, ok && username != ""
}
