package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena"
	"github.com/cardforge/arena/server"
	"github.com/cardforge/arena/statsd"
)

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// A missing .env is fine; production configures the environment directly.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := arena.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.StatsdAddress != "" {
		if err := statsd.Init(cfg.StatsdAddress, []string{"instance:" + cfg.InstanceID}); err != nil {
			log.Warn().Err(err).Msg("statsd unavailable; metrics disabled")
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddress).Msg("redis unreachable")
	}

	orch := arena.New(cfg, log, client)
	if err := orch.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("orchestrator failed to start")
	}

	srv := server.New(orch, log)
	go func() {
		if err := srv.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	orch.Shutdown()
	if err := client.Close(); err != nil {
		log.Error().Err(err).Msg("redis close failed")
	}
}
