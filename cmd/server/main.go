// Command server runs the FitClub API: it loads configuration, connects to Postgres,
// applies migrations, wires the optional Redis and Kafka integrations, and serves
// HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
	"github.com/DartinBot/Khyrie-sub002/internal/config"
	"github.com/DartinBot/Khyrie-sub002/internal/database"
	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/handlers"
	"github.com/DartinBot/Khyrie-sub002/internal/logging"
	"github.com/DartinBot/Khyrie-sub002/internal/server"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
	"github.com/DartinBot/Khyrie-sub002/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("JWT_SECRET not set, using the development default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, database.Options{
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
		Production:   cfg.IsProduction(),
	}, logger)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(cfg.MigrationsSource, cfg.DatabaseURL); err != nil {
		return err
	}
	logger.Info("database ready")

	// Logout only revokes tokens when Redis is configured; otherwise tokens live until expiry.
	var revoker auth.Revoker
	if cfg.RedisURL != "" {
		client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		revoker = auth.NewRedisRevoker(client)
		logger.Info("token revocation enabled")
	}

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("publishing events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close event publisher", zap.Error(err))
		}
	}()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	app := server.New(cfg, &handlers.Deps{
		Store:   store.NewPostgres(db),
		Tokens:  auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, nil),
		Revoker: revoker,
		Events:  publisher,
		Hub:     hub,
		Log:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
