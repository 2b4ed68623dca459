package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"graphreader/internal/api"
	"graphreader/internal/api/handlers"
	"graphreader/internal/api/middleware"
	"graphreader/internal/engine/graph"
	"graphreader/internal/pkg/logger"
	"graphreader/internal/platform/audit"
	"graphreader/internal/platform/auth"
	"graphreader/internal/platform/config"
	"graphreader/internal/platform/database"
	"graphreader/internal/platform/identity"
	"graphreader/internal/platform/metrics"
	"graphreader/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Graph reader
	reader, err := graph.Open(cfg.Graph)
	if err != nil {
		return fmt.Errorf("open graph reader: %w", err)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	identityClient := identity.NewClient(cfg.Identity, cfg.Service.ID)

	// Local key store; also backs the audit log when present.
	var keyDB *sql.DB
	if cfg.APIKey.Mode == config.APIKeyModeLocal {
		keyDB, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("open key store: %w", err)
		}
		defer keyDB.Close()

		if err := database.Migrate(ctx, keyDB); err != nil {
			return fmt.Errorf("migrate key store: %w", err)
		}
	}

	// Services
	tokenValidator, err := auth.NewTokenValidator(cfg.JWT)
	if err != nil {
		return err
	}

	// Keys are validated against the same place they are issued.
	var (
		apiKeyValidator auth.APIKeyValidator
		keyManager      handlers.APIKeyManager
	)
	switch cfg.APIKey.Mode {
	case config.APIKeyModeRemote:
		apiKeyValidator = auth.NewRemoteAPIKeyValidator(identityClient)
		keyManager = identityClient
	default:
		keyRepo := repositories.NewAPIKeyRepository(keyDB)
		userRepo := repositories.NewUserRepository(keyDB)
		apiKeyValidator = auth.NewLocalAPIKeyValidator(keyRepo, userRepo, cfg.Service.ID)
		keyManager = auth.NewLocalKeyManager(keyRepo, userRepo, cfg.Service.ID)
	}
	resolver := auth.NewResolver(apiKeyValidator, tokenValidator)

	m := metrics.New()
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	defer rateLimiter.Close()

	deps := &api.Dependencies{
		EntityHandler:    handlers.NewEntityHandler(reader),
		CommunityHandler: handlers.NewCommunityHandler(reader),
		SearchHandler:    handlers.NewSearchHandler(reader),
		APIKeyHandler:    handlers.NewAPIKeyHandler(keyManager, audit.NewLogger(keyDB), m),
		HealthHandler:    handlers.NewHealthHandler(),
		MetricsHandler:   handlers.NewMetricsHandler(m),
		AuthMiddleware:   middleware.NewAuthMiddleware(resolver, m),
		RateLimiter:      rateLimiter,
		Metrics:          m,
		CORS:             cfg.CORS,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("apikey_mode", cfg.APIKey.Mode).
			Str("indexer", cfg.Graph.IndexerType).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
