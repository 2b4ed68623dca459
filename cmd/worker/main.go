package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"graphreader/internal/pkg/logger"
	"graphreader/internal/platform/config"
	"graphreader/internal/platform/database"
	"graphreader/internal/platform/repositories"
	"graphreader/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Logging)

	if cfg.APIKey.Mode != config.APIKeyModeLocal {
		log.Info().Str("apikey_mode", cfg.APIKey.Mode).Msg("no local key store, nothing to sweep")
		return
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to key store")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate key store")
	}

	log.Info().Dur("interval", cfg.Worker.ExpiryInterval).Msg("starting api key expiry worker")
	sweeper := workers.NewExpirySweeper(repositories.NewAPIKeyRepository(db), time.Now)
	sweeper.Run(ctx, cfg.Worker.ExpiryInterval)
}
