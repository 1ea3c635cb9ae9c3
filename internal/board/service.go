package board

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
	"departures.metraboard.org/internal/schedule"
	"departures.metraboard.org/internal/utils"
)

// ErrTrackingNotSubset is returned when a request tracks routes or stops
// the schedule client filtered out before caching.
var ErrTrackingNotSubset = errors.New("tracking config is not a subset of the schedule client's tracking")

// Service builds departure boards from the schedule client's cached views.
type Service struct {
	schedule *schedule.Client
	realtime bool
	logger   *slog.Logger
}

// NewService returns a Service. With realtime set, boards carry the
// predictions of live trip updates.
func NewService(client *schedule.Client, realtime bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{schedule: client, realtime: realtime, logger: logger}
}

// Tracking returns the widest tracking config a request may use.
func (s *Service) Tracking() models.TrackingConfig {
	return s.schedule.Tracking()
}

// Now returns the current time in the service time zone.
func (s *Service) Now() time.Time {
	return s.schedule.Now()
}

// GetDepartureBoard builds the board for tracking as of now.
func (s *Service) GetDepartureBoard(ctx context.Context, tracking models.TrackingConfig) (models.DepartureBoard, error) {
	return s.GetDepartureBoardAt(ctx, tracking, s.Now())
}

// GetDepartureBoardAt builds the board for tracking and drops the stop
// boards with nothing left to show at now. Each schedule accessor is read
// once, so every join sees the same snapshot. Data source errors are
// returned unchanged.
func (s *Service) GetDepartureBoardAt(ctx context.Context, tracking models.TrackingConfig, now time.Time) (models.DepartureBoard, error) {
	db, err := s.build(ctx, tracking, now)
	if err != nil {
		metrics.BoardsBuilt.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BoardsBuilt.WithLabelValues("ok").Inc()
	return db, nil
}

func (s *Service) build(ctx context.Context, tracking models.TrackingConfig, now time.Time) (models.DepartureBoard, error) {
	if !tracking.SubsetOf(s.schedule.Tracking()) {
		return nil, ErrTrackingNotSubset
	}

	today := s.schedule.ServiceDate(now)
	calendars, err := s.schedule.CalendarsOn(ctx, today)
	if err != nil {
		return nil, err
	}
	serviceIDs := ActiveServiceIDs(calendars, today)

	trips, err := s.schedule.Trips(ctx, serviceIDs)
	if err != nil {
		return nil, err
	}
	tripIDs := utils.Keys(trips)

	stopTimes, err := s.schedule.StopTimes(ctx, tripIDs)
	if err != nil {
		return nil, err
	}
	stops, err := s.schedule.Stops(ctx)
	if err != nil {
		return nil, err
	}
	routes, err := s.schedule.Routes(ctx)
	if err != nil {
		return nil, err
	}

	var updates []models.TripUpdate
	if s.realtime {
		updates, err = s.schedule.TripUpdates(ctx, tripIDs)
		if err != nil {
			return nil, err
		}
	}

	full := Build(Input{
		Routes:      routes,
		Stops:       stops,
		Trips:       trips,
		StopTimes:   stopTimes,
		TripUpdates: updates,
	}, tracking, s.logger)
	db := Upcoming(full, now)

	recordUpcoming(tracking, full, db, now)
	s.logger.Debug("built departure board",
		"service_ids", len(serviceIDs),
		"trips", len(trips),
		"routes", len(db),
		"trip_updates", len(updates))
	return db, nil
}

// recordUpcoming sets the upcoming gauge for every route the request could
// show. Routes without anything left on the board read zero.
func recordUpcoming(tracking models.TrackingConfig, full, db models.DepartureBoard, now time.Time) {
	routeIDs := append(tracking.RouteIDs(), utils.Keys(full)...)
	for _, routeID := range utils.SortedUnique(routeIDs) {
		counts := make(map[models.Direction]int, len(models.Directions))
		for _, sb := range db[routeID] {
			upcoming, _ := sb.Upcoming(now)
			for dir, deps := range upcoming {
				counts[dir] += len(deps)
			}
		}
		for _, dir := range models.Directions {
			metrics.UpcomingDepartures.WithLabelValues(routeID, dir.Label()).Set(float64(counts[dir]))
		}
	}
}
