package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	remoteGtfs "github.com/jamespfennell/gtfs"

	"departures.metraboard.org/internal/cache"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
)

// bundleKey is the cache key of the parsed static bundle.
const bundleKey = "bundle"

// DefaultBundleTTL is how long a downloaded bundle is reused.
const DefaultBundleTTL = 1440 * time.Second

// staticBundle keeps only the parts of a GTFS static feed the board reads.
type staticBundle struct {
	routes    []models.Route
	stops     []models.Stop
	calendars []models.Calendar
	trips     []models.Trip
	stopTimes []models.StopTime
}

// BundleSource serves schedule entities from a static GTFS zip. The parsed
// bundle is shared through the cache so the five schedule accessors cost a
// single download per TTL. A bundle carries no real-time data.
type BundleSource struct {
	url        string
	maxRetries int
	ttl        time.Duration

	client *http.Client
	cache  *cache.Cache
	logger *slog.Logger
}

// NewBundleSource returns a source reading cfg.BundleURL. A zero ttl uses
// DefaultBundleTTL.
func NewBundleSource(cfg config.SourceConfig, client *http.Client, c *cache.Cache, ttl time.Duration, logger *slog.Logger) *BundleSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ttl <= 0 {
		ttl = DefaultBundleTTL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &BundleSource{
		url:        cfg.BundleURL,
		maxRetries: maxRetries,
		ttl:        ttl,
		client:     client,
		cache:      c,
		logger:     logger,
	}
}

func (s *BundleSource) FetchRoutes(ctx context.Context) ([]models.Route, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.routes, nil
}

func (s *BundleSource) FetchStops(ctx context.Context) ([]models.Stop, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.stops, nil
}

func (s *BundleSource) FetchCalendars(ctx context.Context) ([]models.Calendar, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.calendars, nil
}

func (s *BundleSource) FetchTrips(ctx context.Context) ([]models.Trip, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.trips, nil
}

func (s *BundleSource) FetchStopTimes(ctx context.Context) ([]models.StopTime, error) {
	b, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return b.stopTimes, nil
}

// FetchTripUpdates always returns an empty list.
func (s *BundleSource) FetchTripUpdates(ctx context.Context) ([]models.TripUpdate, error) {
	return []models.TripUpdate{}, nil
}

func (s *BundleSource) load(ctx context.Context) (*staticBundle, error) {
	return cache.Memoized(ctx, s.cache, bundleKey, nil, s.ttl, s.download)
}

// download fetches and parses the bundle zip.
func (s *BundleSource) download(ctx context.Context) (*staticBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to create request for %s: %w", s.url, err))
	}

	resp, err := config.DoWithBackoff(ctx, s.client, req, s.maxRetries)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to make GET request to %s: %w", s.url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.fail(fmt.Errorf("unexpected response status %d when downloading GTFS bundle from %s", resp.StatusCode, s.url))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to read GTFS bundle response body from %s: %w", s.url, err))
	}

	static, err := remoteGtfs.ParseStatic(data, remoteGtfs.ParseStaticOptions{})
	if err != nil {
		return nil, s.fail(fmt.Errorf("failed to parse GTFS static data from %s: %w", s.url, err))
	}

	b := s.convert(static)
	s.logger.Info("loaded GTFS bundle",
		"url", s.url,
		"routes", len(b.routes),
		"stops", len(b.stops),
		"trips", len(b.trips),
		"stop_times", len(b.stopTimes),
		"warnings", len(static.Warnings))
	return b, nil
}

func (s *BundleSource) fail(err error) error {
	metrics.RemoteFetchErrors.WithLabelValues(EndpointBundle).Inc()
	s.logger.Error("failed to load GTFS bundle", "url", s.url, "error", err)
	return &DataSourceError{Endpoint: EndpointBundle, Err: err}
}

func (s *BundleSource) convert(static *remoteGtfs.Static) *staticBundle {
	b := &staticBundle{
		routes:    make([]models.Route, 0, len(static.Routes)),
		stops:     make([]models.Stop, 0, len(static.Stops)),
		calendars: make([]models.Calendar, 0, len(static.Services)),
		trips:     make([]models.Trip, 0, len(static.Trips)),
	}

	for _, r := range static.Routes {
		route := models.Route{
			RouteID:   r.Id,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Type:      models.FlexInt(int(r.Type)),
			URL:       r.Url,
			Color:     r.Color,
			TextColor: r.TextColor,
		}
		if r.Agency != nil {
			route.AgencyID = r.Agency.Id
		}
		b.routes = append(b.routes, route)
	}

	for _, st := range static.Stops {
		stop := models.Stop{
			StopID:             st.Id,
			Name:               st.Name,
			Description:        st.Description,
			ZoneID:             st.ZoneId,
			URL:                st.Url,
			WheelchairBoarding: models.FlexInt(int(st.WheelchairBoarding)),
		}
		if st.Latitude != nil {
			stop.Lat = *st.Latitude
		}
		if st.Longitude != nil {
			stop.Lon = *st.Longitude
		}
		b.stops = append(b.stops, stop)
	}

	for _, svc := range static.Services {
		b.calendars = append(b.calendars, models.Calendar{
			ServiceID: svc.Id,
			Monday:    models.DayFlag(svc.Monday),
			Tuesday:   models.DayFlag(svc.Tuesday),
			Wednesday: models.DayFlag(svc.Wednesday),
			Thursday:  models.DayFlag(svc.Thursday),
			Friday:    models.DayFlag(svc.Friday),
			Saturday:  models.DayFlag(svc.Saturday),
			Sunday:    models.DayFlag(svc.Sunday),
			StartDate: models.ServiceDate(svc.StartDate),
			EndDate:   models.ServiceDate(svc.EndDate),
		})
	}

	for i := range static.Trips {
		t := &static.Trips[i]
		trip := models.Trip{
			TripID:      t.ID,
			DirectionID: directionFromBundle(t.DirectionId),
			Headsign:    t.Headsign,
			ShortName:   t.ShortName,
			BlockID:     t.BlockID,
		}
		if t.Route != nil {
			trip.RouteID = t.Route.Id
		}
		if t.Service != nil {
			trip.ServiceID = t.Service.Id
		}
		b.trips = append(b.trips, trip)

		for _, st := range t.StopTimes {
			stopTime := models.StopTime{
				TripID:        t.ID,
				ArrivalTime:   FormatStopTime(st.ArrivalTime),
				DepartureTime: FormatStopTime(st.DepartureTime),
				StopSequence:  models.FlexInt(st.StopSequence),
			}
			if st.Stop != nil {
				stopTime.StopID = st.Stop.Id
			}
			b.stopTimes = append(b.stopTimes, stopTime)
		}
	}

	b.routes = keepValid(s.logger, EndpointRoutes, b.routes)
	b.stops = keepValid(s.logger, EndpointStops, b.stops)
	b.calendars = keepValid(s.logger, EndpointCalendars, b.calendars)
	b.trips = keepValid(s.logger, EndpointTrips, b.trips)
	b.stopTimes = keepValid(s.logger, EndpointStopTimes, b.stopTimes)
	return b
}

// directionFromBundle maps the parser's direction enum, where 1 encodes a
// GTFS direction_id of 1 and anything else a 0 or a missing value.
func directionFromBundle(d remoteGtfs.DirectionID) models.Direction {
	if int(d) == 1 {
		return models.Inbound
	}
	return models.Outbound
}

// FormatStopTime renders an offset from the start of the service day as
// GTFS HH:MM:SS text. Hours are not wrapped, so 25h30m is "25:30:00".
func FormatStopTime(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}
