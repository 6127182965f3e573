package core

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AccountHandler serves the login and logout endpoints.
type AccountHandler struct {
	cfg      Config
	auth     Authenticator
	tokens   TokenManager
	codec    SessionCodec
	throttle *LoginThrottle
}

func NewAccountHandler(cfg Config, auth Authenticator, tokens TokenManager, codec SessionCodec) *AccountHandler {
	return &AccountHandler{
		cfg:      cfg,
		auth:     auth,
		tokens:   tokens,
		codec:    codec,
		throttle: NewLoginThrottle(cfg.LoginRate, cfg.LoginBurst),
	}
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Login verifies the posted credential and, on success, issues a token and its cookie.
// It never redirects; the client re-requests the original URL itself.
func (h *AccountHandler) Login(c *gin.Context) {
	if !h.throttle.Allow(c.ClientIP()) {
		respondError(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many login attempts")
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
		return
	}

	ctx := c.Request.Context()
	err := h.auth.Verify(ctx, Credential{Username: req.Username, Secret: []byte(req.Password)})
	var authErr *AuthError
	if errors.As(err, &authErr) {
		log.Info().Str("username", req.Username).Str("outcome", authErr.Kind.String()).Msg("login rejected")
		respondError(c, http.StatusUnauthorized, authErr.Kind.String(), authErr.Reason)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("authenticator failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication unavailable")
		return
	}

	// Rotate: whatever session the request already carried is dropped.
	if oldID, err := h.codec.Decode(c.Request); err == nil {
		if err := h.tokens.Remove(ctx, oldID); err != nil {
			respondStoreError(c, err)
			return
		}
	}
	if h.cfg.SingleSession {
		if err := h.revokeUserTokens(c, req.Username); err != nil {
			respondStoreError(c, err)
			return
		}
	}

	ttl, maxAge := h.sessionPolicy(req.RememberMe)
	tok := NewToken(req.Username, nowFunc(), ttl)
	if err := h.tokens.Add(ctx, tok); err != nil {
		respondStoreError(c, err)
		return
	}
	if err := h.codec.Encode(c.Writer, c.Request, tok.ID, maxAge); err != nil {
		_ = h.tokens.Remove(ctx, tok.ID)
		log.Error().Err(err).Msg("failed to set session cookie")
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
		return
	}

	log.Info().Str("username", req.Username).Bool("remember_me", req.RememberMe).Str("outcome", "authenticated").Msg("login")
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"username": req.Username}})
}

// sessionPolicy returns the server-side ttl and cookie max-age for a new session.
func (h *AccountHandler) sessionPolicy(rememberMe bool) (time.Duration, int) {
	if rememberMe {
		return h.cfg.RememberMeTTL, int(h.cfg.RememberMeTTL.Seconds())
	}
	return h.cfg.SessionTTL, 0
}

func (h *AccountHandler) revokeUserTokens(c *gin.Context, username string) error {
	ctx := c.Request.Context()
	snapshot, err := h.tokens.Tokens(ctx)
	if err != nil {
		return err
	}
	for _, t := range snapshot {
		if t.Username != username {
			continue
		}
		if err := h.tokens.Remove(ctx, t.ID); err != nil {
			return err
		}
	}
	return nil
}

// Logout revokes the request's token, if any, clears the cookie and sends the
// client to the login endpoint with next set to the application base URL.
func (h *AccountHandler) Logout(c *gin.Context) {
	if id, err := h.codec.Decode(c.Request); err == nil {
		if err := h.tokens.Remove(c.Request.Context(), id); err != nil {
			respondStoreError(c, err)
			return
		}
		log.Info().Str("outcome", "logged_out").Msg("logout")
	}
	if err := h.codec.Clear(c.Writer, c.Request); err != nil {
		log.Error().Err(err).Msg("failed to clear session cookie")
	}
	redirectToLogin(c, h.cfg.LoginPath(), baseURL(c.Request))
}
