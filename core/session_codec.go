package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

var (
	// ErrNoSession means the request carries no session cookie.
	ErrNoSession = errors.New("no session cookie")
	// ErrInvalidSession means a session cookie is present but cannot be decoded.
	ErrInvalidSession = errors.New("invalid session cookie")
)

// SessionCodec maps between the session cookie and a token id.
type SessionCodec interface {
	// Decode extracts the token id carried by r.
	Decode(r *http.Request) (string, error)
	// Encode sets a cookie carrying tokenID. maxAge 0 yields a browser-session cookie.
	Encode(w http.ResponseWriter, r *http.Request, tokenID string, maxAge int) error
	// Clear expires the cookie on the client.
	Clear(w http.ResponseWriter, r *http.Request) error
}

// NewSessionCodec picks the codec named by cfg.SessionCodec.
func NewSessionCodec(cfg Config) (SessionCodec, error) {
	switch cfg.SessionCodec {
	case CodecCookie, "":
		return NewCookieSessionCodec(cfg), nil
	case CodecJWT:
		return NewJWTSessionCodec(cfg)
	default:
		return nil, fmt.Errorf("unknown session codec %q", cfg.SessionCodec)
	}
}

const tokenIDValue = "tid"

// CookieSessionCodec carries the token id inside a gorilla/sessions secure cookie.
type CookieSessionCodec struct {
	cfg   Config
	store *sessions.CookieStore
}

func NewCookieSessionCodec(cfg Config) *CookieSessionCodec {
	key := []byte(cfg.SessionKey)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	store := sessions.NewCookieStore(key)
	// Bounds the signed timestamp accepted by securecookie; the token store decides real expiry.
	store.MaxAge(int(cfg.RememberMeTTL.Seconds()))
	return &CookieSessionCodec{cfg: cfg, store: store}
}

func (c *CookieSessionCodec) Decode(r *http.Request) (string, error) {
	if _, err := r.Cookie(c.cfg.CookieName); err != nil {
		return "", ErrNoSession
	}
	session, err := c.store.Get(r, c.cfg.CookieName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	id, _ := session.Values[tokenIDValue].(string)
	if id == "" {
		return "", ErrInvalidSession
	}
	return id, nil
}

func (c *CookieSessionCodec) Encode(w http.ResponseWriter, r *http.Request, tokenID string, maxAge int) error {
	session := sessions.NewSession(c.store, c.cfg.CookieName)
	session.Values[tokenIDValue] = tokenID
	applySessionOptions(c.cfg, session)
	session.Options.MaxAge = maxAge
	return c.store.Save(r, w, session)
}

func (c *CookieSessionCodec) Clear(w http.ResponseWriter, r *http.Request) error {
	session := sessions.NewSession(c.store, c.cfg.CookieName)
	applySessionOptions(c.cfg, session)
	session.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
	return c.store.Save(r, w, session)
}

// JWTSessionCodec carries the token id as the subject of an HS256-signed JWT.
type JWTSessionCodec struct {
	cfg    Config
	secret []byte
}

func NewJWTSessionCodec(cfg Config) (*JWTSessionCodec, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt session codec requires a secret")
	}
	return &JWTSessionCodec{cfg: cfg, secret: []byte(cfg.JWTSecret)}, nil
}

func (c *JWTSessionCodec) Decode(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoSession
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}

func (c *JWTSessionCodec) Encode(w http.ResponseWriter, _ *http.Request, tokenID string, maxAge int) error {
	now := nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:  tokenID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if maxAge > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(maxAge) * time.Second))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	http.SetCookie(w, c.cookie(signed, maxAge))
	return nil
}

func (c *JWTSessionCodec) Clear(w http.ResponseWriter, _ *http.Request) error {
	cookie := c.cookie("", -1)
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
	return nil
}

func (c *JWTSessionCodec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.CookieName,
		Value:    value,
		Path:     c.cfg.CookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.CookieSecure,
		SameSite: sameSiteFromString(c.cfg.CookieSameSite),
	}
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = cfg.CookiePath()
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
