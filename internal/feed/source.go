// Package feed fetches schedule and real-time records from a remote transit
// data source and converts them into models values. Nothing in this package
// caches API responses; the schedule client owns that.
package feed

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"departures.metraboard.org/internal/models"
)

// Logical endpoint names, used for errors, logs and metric labels.
const (
	EndpointRoutes      = "routes"
	EndpointStops       = "stops"
	EndpointCalendars   = "calendar"
	EndpointTrips       = "trips"
	EndpointStopTimes   = "stop_times"
	EndpointTripUpdates = "trip_updates"
	EndpointBundle      = "bundle"
)

// Source is a remote provider of schedule entities.
// Every call performs a fetch; implementations do not cache API responses.
type Source interface {
	FetchRoutes(ctx context.Context) ([]models.Route, error)
	FetchStops(ctx context.Context) ([]models.Stop, error)
	FetchCalendars(ctx context.Context) ([]models.Calendar, error)
	FetchTrips(ctx context.Context) ([]models.Trip, error)
	FetchStopTimes(ctx context.Context) ([]models.StopTime, error)
	FetchTripUpdates(ctx context.Context) ([]models.TripUpdate, error)
}

// DataSourceError wraps any failure talking to the remote source:
// transport errors, unexpected status codes and undecodable payloads.
type DataSourceError struct {
	Endpoint string
	Err      error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Endpoint, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

var validate = validator.New(validator.WithRequiredStructEnabled())
