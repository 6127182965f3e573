package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"authgate/core"
)

func main() {
	configPath := flag.String("config", os.Getenv("AUTHGATE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := core.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}
	defer logCloser.Close()

	gin.SetMode(gin.ReleaseMode)

	backends, err := core.OpenBackends(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backends")
	}
	defer backends.Close()

	authenticator := core.NewRepositoryAuthenticator(backends.Users)
	router := core.NewRouter(cfg, authenticator, backends.Tokens, backends.Codec)

	// Shared stores are swept by cmd/sweeper; the in-memory store only lives here.
	if cfg.TokenStore == core.StoreMemory {
		go core.NewExpirySweeper(backends.Tokens, cfg.SweepInterval).Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("context_path", cfg.ContextPath).
		Str("token_store", cfg.TokenStore).
		Str("user_source", cfg.UserSource).
		Str("session_codec", cfg.SessionCodec).
		Strs("open_paths", cfg.OpenPaths).
		Msg("starting api server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
