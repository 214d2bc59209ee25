package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/tourgo/docs"
	"github.com/kirinyoku/tourgo/internal/app"
	"github.com/kirinyoku/tourgo/internal/config"
)

// @title TourGo API
// @version 1.0
// @description Booking lifecycle and group departure capacity for a tour operator.
// @host localhost:8080
// @BasePath /
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
