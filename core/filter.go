package core

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// tokenKey is the gin context key holding the resolved Token.
const tokenKey = "session_token"

// AuthFilter classifies each request as open or protected and, for protected
// requests, resolves the session cookie to a token before letting it through.
type AuthFilter struct {
	open      *OpenPathSet
	tokens    TokenManager
	codec     SessionCodec
	loginPath string
}

// NewAuthFilter builds a filter from cfg.OpenPaths. The login, logout and
// health endpoints are always open.
func NewAuthFilter(cfg Config, tokens TokenManager, codec SessionCodec) *AuthFilter {
	prefixes := append([]string{}, cfg.OpenPaths...)
	prefixes = append(prefixes, cfg.LoginPath(), cfg.LogoutPath(), cfg.ContextPath+"/healthz")
	return &AuthFilter{
		open:      NewOpenPathSet(prefixes...),
		tokens:    tokens,
		codec:     codec,
		loginPath: cfg.LoginPath(),
	}
}

// Handler returns the filter as a gin middleware stage.
func (f *AuthFilter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := RequestPath(c.Request.URL.Path); ok && f.open.IsOpen(p) {
			c.Next()
			return
		}

		tok, ok, err := f.resolve(c.Request)
		if err != nil {
			respondStoreError(c, err)
			return
		}
		if !ok {
			redirectToLogin(c, f.loginPath, originalURL(c.Request))
			return
		}

		c.Set(principalKey, tok.Username)
		c.Set(tokenKey, tok)
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), tok.Username))
		c.Next()
	}
}

// resolve maps the request's cookie to a live token. A missing or undecodable
// cookie and an unknown token all yield ok == false; only store failures return err.
func (f *AuthFilter) resolve(r *http.Request) (Token, bool, error) {
	id, err := f.codec.Decode(r)
	if err != nil {
		outcome := "no_session"
		if errors.Is(err, ErrInvalidSession) {
			outcome = "invalid_session"
		}
		log.Debug().Str("path", r.URL.Path).Str("outcome", outcome).Msg("auth filter")
		return Token{}, false, nil
	}
	tok, ok, err := f.tokens.Lookup(r.Context(), id)
	if err != nil {
		return Token{}, false, err
	}
	if !ok {
		log.Debug().Str("path", r.URL.Path).Str("outcome", "unknown_token").Msg("auth filter")
	}
	return tok, ok, nil
}

// redirectToLogin answers 302 to the login endpoint with next set to target.
func redirectToLogin(c *gin.Context, loginPath, target string) {
	location := baseURL(c.Request) + loginPath + "?next=" + url.QueryEscape(target)
	c.Header("Location", location)
	c.AbortWithStatus(http.StatusFound)
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		if i := strings.IndexByte(proto, ','); i >= 0 {
			proto = proto[:i]
		}
		return strings.ToLower(strings.TrimSpace(proto))
	}
	return "http"
}

// baseURL is scheme://host[:port] of the request, without any path.
func baseURL(r *http.Request) string {
	return requestScheme(r) + "://" + r.Host
}

// originalURL is the absolute URL the client asked for, query included.
func originalURL(r *http.Request) string {
	uri := r.RequestURI
	if uri == "" || uri[0] != '/' {
		uri = r.URL.RequestURI()
	}
	return baseURL(r) + uri
}

// principal returns the username attached by the filter.
func principal(c *gin.Context) (string, bool) {
	username := c.GetString(principalKey)
	return username, username != ""
}
