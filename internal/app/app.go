package app

import (
	"log/slog"
	"net/http"

	"departures.metraboard.org/internal/board"
	"departures.metraboard.org/internal/cache"
	"departures.metraboard.org/internal/clock"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/feed"
	"departures.metraboard.org/internal/schedule"
)

// Application holds the wired services behind the HTTP handlers.
type Application struct {
	Config  *config.Config
	Board   *board.Service
	Cache   *cache.Cache
	Logger  *slog.Logger
	Version string
}

// New creates and wires all dependencies for the Application. cfg must
// already be validated.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, version string) *Application {
	return newWithClock(cfg, logger, client, version, clock.RealClock{})
}

func newWithClock(cfg *config.Config, logger *slog.Logger, client *http.Client, version string, clk clock.Clock) *Application {
	c := cache.New(clk)

	var source feed.Source
	switch cfg.Source.Kind {
	case config.SourceBundle:
		source = feed.NewBundleSource(cfg.Source, client, c, config.Seconds(cfg.TTL.Bundle), logger)
	default:
		source = feed.NewAPIClient(cfg.Source, client, logger)
	}

	scheduleClient := schedule.NewClient(source, c, schedule.Options{
		Clock:    clk,
		Location: cfg.Location(),
		Tracking: cfg.TrackingConfig(),
		TTLs:     schedule.TTLsFromConfig(cfg.TTL),
		Logger:   logger,
	})

	return &Application{
		Config:  cfg,
		Board:   board.NewService(scheduleClient, cfg.Realtime, logger),
		Cache:   c,
		Logger:  logger,
		Version: version,
	}
}
