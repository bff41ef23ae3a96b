// Command server boots the language-tutoring API: configuration, logging,
// tracing, storage, the AI provider session, and the HTTP transport, then
// serves until interrupted and shuts down gracefully.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-tutor-backend/internal/ai"
	"github.com/tbourn/go-tutor-backend/internal/config"
	httpapi "github.com/tbourn/go-tutor-backend/internal/http"
	"github.com/tbourn/go-tutor-backend/internal/observability"
	"github.com/tbourn/go-tutor-backend/internal/repo"
	"github.com/tbourn/go-tutor-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx := context.Background()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// AI providers
	registry := ai.NewRegistry(cfg.AI.DefaultProvider)
	registry.Register(ai.NewOpenAIProvider(cfg.AI.OpenAIAPIKey))
	registry.Register(ai.NewAnthropicProvider(cfg.AI.AnthropicAPIKey))
	registry.Register(ai.NewOllamaProvider(cfg.AI.OllamaEndpoint))

	temp := cfg.AI.Temperature
	session := ai.NewSession(registry, ai.SessionConfig{
		ProviderID:  cfg.AI.DefaultProvider,
		Model:       cfg.AI.DefaultModel,
		Temperature: &temp,
		MaxTokens:   cfg.AI.MaxTokens,
	})
	if err := session.Initialize(ctx, cfg.AI.DefaultProvider); err != nil {
		// The server still starts; /ai/provider can activate a backend later.
		log.Warn().Err(err).Str("provider", cfg.AI.DefaultProvider).Msg("provider initialization failed")
	} else {
		log.Info().Str("provider", session.ActiveProviderID()).Msg("ai provider ready")
	}

	// HTTP transport
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, registry, session, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
