package core

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// originPolicy decides which browser origins may call the gateway with credentials.
// Requests without Origin or Referer, and same-origin requests, always pass.
type originPolicy struct {
	allowed map[string]struct{}
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return p
}

// requestOrigin prefers the Origin header and falls back to the Referer's scheme and host.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Host != "" {
			return u.Scheme + "://" + u.Host
		}
	}
	return ""
}

func (p originPolicy) crossOrigin(origin string, r *http.Request) bool {
	return origin != "" && !strings.EqualFold(origin, baseURL(r))
}

func (p originPolicy) permits(origin string) bool {
	_, ok := p.allowed[strings.ToLower(origin)]
	return ok
}

// OriginRefererMiddleware rejects cross-origin requests from unlisted origins and
// answers CORS preflights. It runs ahead of the auth filter so a preflight never
// receives the login redirect.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	policy := newOriginPolicy(cfg.AllowedOrigins)
	return func(c *gin.Context) {
		origin := requestOrigin(c.Request)
		if !policy.crossOrigin(origin, c.Request) {
			c.Next()
			return
		}
		if !policy.permits(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		setCORSHeaders(c, origin)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Add("Vary", "Origin")
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}
