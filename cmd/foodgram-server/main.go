package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/server"
)

// @title Foodgram API
// @version 1.0
// @description Recipe sharing: publish recipes, follow authors, keep favorites and a shopping cart, and download the aggregated shopping list.

// @contact.name Foodgram Support
// @contact.url https://github.com/mikepea/foodgram

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Bearer {token}" or "Token {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := database.Connect(cfg.Database); err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}
	logging.Info().Msg("database migrations completed")

	if err := auth.EnsureAdmin(database.GetDB(), cfg.Admin); err != nil {
		logging.Fatal().Err(err).Msg("failed to ensure admin user exists")
	}

	if err := os.MkdirAll(cfg.Server.MediaDir, 0o755); err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Server.MediaDir).Msg("failed to create media directory")
	}

	srv := server.New(cfg, database.GetDB())
	if auth.UsingDevSecret() {
		logging.Warn().Msg("auth.jwt_secret is not set; tokens are signed with the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logging.Fatal().Err(err).Msg("server failed")
	}
}
