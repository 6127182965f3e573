package core

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondStoreError reports a token store failure as a 500, never as "not logged in".
func respondStoreError(c *gin.Context, err error) {
	log.Error().Err(err).Str("path", c.Request.URL.Path).Str("outcome", "token_store_unavailable").Msg("token store")
	respondError(c, http.StatusInternalServerError, "TOKEN_STORE_UNAVAILABLE", "session store unavailable")
	c.Abort()
}
