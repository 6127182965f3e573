package core

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter constructs the Gin engine with the auth pipeline and account routes wired.
// Callers register their own application routes on the returned engine; every
// route, and the 404 fallback, sits behind the auth filter.
func NewRouter(cfg Config, auth Authenticator, tokens TokenManager, codec SessionCodec) *gin.Engine {
	startedAt := time.Now()
	r := gin.New()

	// Global middleware: recovery -> request log -> origin/CORS -> auth filter
	r.Use(gin.Recovery(), RequestLogger())
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(NewAuthFilter(cfg, tokens, codec).Handler())

	accounts := NewAccountHandler(cfg, auth, tokens, codec)
	metrics := NewMetricsService(tokens)
	sweepers, _ := tokens.(heartbeatLister)

	root := r.Group(cfg.ContextPath)
	root.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	account := root.Group("/account")
	{
		account.POST("/login", accounts.Login)
		account.GET("/logout", accounts.Logout)

		me := account.Group("")
		me.Use(RequirePrincipal())

		me.GET("/me", func(c *gin.Context) {
			username, _ := principal(c)
			c.JSON(http.StatusOK, gin.H{"username": username})
		})

		me.GET("/sessions", func(c *gin.Context) {
			username, _ := principal(c)
			var currentID string
			if tok, ok := c.Get(tokenKey); ok {
				currentID = tok.(Token).ID
			}
			items, err := metrics.ForUser(c.Request.Context(), username, currentID)
			if err != nil {
				respondStoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"sessions": items, "total": len(items)})
		})

		me.GET("/status", func(c *gin.Context) {
			st, err := CollectSystemStatus(c.Request.Context(), metrics, sweepers, startedAt)
			if err != nil {
				respondStoreError(c, err)
				return
			}
			c.JSON(http.StatusOK, st)
		})
	}

	return r
}
