package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/cyberhoot/internal/app"
	"github.com/gokatarajesh/cyberhoot/internal/config"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			log.Warn().Err(err).Msg("could not load .env file")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build app")
	}

	if err := instance.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("runtime error")
	}
}
