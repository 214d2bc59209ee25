// Command sweeper cancels bookings whose tour started before they were paid
// in full. With -once it runs a single sweep and exits, for use from cron.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/kirinyoku/tourgo/internal/app"
	"github.com/kirinyoku/tourgo/internal/config"
)

func main() {
	once := flag.Bool("once", false, "run one sweep and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sweeper, err := app.NewSweeper(cfg, logger)
	if err != nil {
		logger.Error("failed to create sweeper", "error", err)
		os.Exit(1)
	}

	if *once {
		res, err := sweeper.Once(context.Background())
		if err != nil {
			logger.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		logger.Info("sweep done", "scanned", res.Scanned, "cancelled", res.Cancelled, "failed", res.Failed)
		return
	}

	if err := sweeper.Run(context.Background()); err != nil {
		logger.Error("sweeper finished with error", "error", err)
		os.Exit(1)
	}
}
