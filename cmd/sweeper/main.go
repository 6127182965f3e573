package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"authgate/core"
)

// sweeper removes expired tokens from a store shared by several API processes.
func main() {
	configPath := flag.String("config", os.Getenv("AUTHGATE_CONFIG"), "path to a YAML config file")
	once := flag.Bool("once", false, "sweep a single time and exit")
	flag.Parse()

	cfg, err := core.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "sweeper.log")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logging")
	}
	defer logCloser.Close()

	if cfg.TokenStore == core.StoreMemory {
		log.Fatal().Msg("the memory token store is process-local; nothing to sweep from here")
	}

	backends, err := core.OpenTokenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open token store")
	}
	defer backends.Close()

	sweeper := core.NewExpirySweeper(backends.Tokens, cfg.SweepInterval)
	if *once {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("sweep failed")
		}
		log.Info().Int64("removed", n).Msg("sweep finished")
		return
	}
	if backends.Redis != nil {
		state := core.NewHeartbeatState(sweeper.ID(), cfg.TokenStore, cfg.SweepInterval)
		sweeper.WithHeartbeat(state)
		go state.Start(ctx, backends.Redis)
	}
	log.Info().Str("sweeper", sweeper.ID()).Str("store", cfg.TokenStore).Msg("sweeper starting")
	sweeper.Run(ctx)
}
