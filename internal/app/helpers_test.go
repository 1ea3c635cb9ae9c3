package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"departures.metraboard.org/internal/board"
	"departures.metraboard.org/internal/cache"
	"departures.metraboard.org/internal/clock"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/feed"
	"departures.metraboard.org/internal/models"
	"departures.metraboard.org/internal/schedule"
)

// Tuesday 10 June 2025, 07:00 UTC.
var tuesdaySeven = time.Date(2025, time.June, 10, 7, 0, 0, 0, time.UTC)

var testTracking = map[string][]string{
	"UP-NW": {"JEFFERSONP"},
	"BNSF":  {},
}

// stubSource returns fixed collections, or err from every fetch when set.
type stubSource struct {
	err error
}

func (s *stubSource) FetchRoutes(ctx context.Context) ([]models.Route, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Route{
		{RouteID: "UP-NW", LongName: "Union Pacific Northwest"},
		{RouteID: "BNSF", LongName: "BNSF Railway"},
	}, nil
}

func (s *stubSource) FetchStops(ctx context.Context) ([]models.Stop, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Stop{
		{StopID: "JEFFERSONP", Name: "Jefferson Park"},
		{StopID: "OTC", Name: "Ogilvie Transportation Center"},
	}, nil
}

func (s *stubSource) FetchCalendars(ctx context.Context) ([]models.Calendar, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Calendar{{
		ServiceID: "S1",
		Monday:    true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		StartDate: models.NewServiceDate(2025, time.January, 1),
		EndDate:   models.NewServiceDate(2025, time.December, 31),
	}}, nil
}

func (s *stubSource) FetchTrips(ctx context.Context) ([]models.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.Trip{
		{TripID: "UNW1", RouteID: "UP-NW", ServiceID: "S1", DirectionID: models.Outbound, Headsign: "Harvard"},
		{TripID: "UNW2", RouteID: "UP-NW", ServiceID: "S1", DirectionID: models.Inbound, Headsign: "Chicago OTC"},
		{TripID: "UNW3", RouteID: "UP-NW", ServiceID: "S1", DirectionID: models.Outbound, Headsign: "Harvard"},
	}, nil
}

func (s *stubSource) FetchStopTimes(ctx context.Context) ([]models.StopTime, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.StopTime{
		{TripID: "UNW1", StopID: "JEFFERSONP", ArrivalTime: "08:10:00", StopSequence: 5},
		{TripID: "UNW2", StopID: "JEFFERSONP", ArrivalTime: "25:05:00", StopSequence: 9},
		{TripID: "UNW3", StopID: "JEFFERSONP", ArrivalTime: "06:30:00", StopSequence: 5},
		{TripID: "UNW1", StopID: "OTC", ArrivalTime: "07:40:00", StopSequence: 1},
	}, nil
}

func (s *stubSource) FetchTripUpdates(ctx context.Context) ([]models.TripUpdate, error) {
	return nil, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(4000, "testing", testTracking)
	cfg.Timezone = "UTC"
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestApplication(t *testing.T, src feed.Source, mc *clock.MockClock) *Application {
	t.Helper()
	cfg := newTestConfig(t)
	logger := discardLogger()
	c := cache.New(mc)
	client := schedule.NewClient(src, c, schedule.Options{
		Clock:    mc,
		Location: cfg.Location(),
		Tracking: cfg.TrackingConfig(),
		Logger:   logger,
	})
	return &Application{
		Config:  cfg,
		Board:   board.NewService(client, cfg.Realtime, logger),
		Cache:   c,
		Logger:  logger,
		Version: "test-version",
	}
}
