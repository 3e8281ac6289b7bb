package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logistics-backend/internal/cache"
	"logistics-backend/internal/config"
	"logistics-backend/internal/database"
	"logistics-backend/internal/events"
	"logistics-backend/internal/logger"
	"logistics-backend/internal/server"
	"logistics-backend/internal/tracing"
)

const serviceName = "logistics-backend"

func main() {
	cfg := config.Load()

	logger.Init(serviceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)
	logger.Logger.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.HTTPPort).
		Msg("starting logistics backend")

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(serviceName, cfg.JaegerEndpoint)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("failed to initialize tracer, continuing without tracing")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(ctx, tp); err != nil {
					logger.Logger.Error().Err(err).Msg("failed to shut down tracer")
				}
			}()
		}
	}

	if err := database.Init(cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("database initialization failed")
	}

	cache.Init(context.Background(), cfg.RedisAddr, cfg.RedisPassword)
	defer cache.Close()

	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("Kafka unavailable, movement events disabled")
		} else {
			events.Default = publisher
			defer publisher.Close()
		}
	}

	app := server.New(cfg)

	go func() {
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			logger.Logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
