package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jamespfennell/gtfs"
	"golang.org/x/time/rate"

	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
)

const (
	routesPath              = "/schedule/routes"
	stopsPath               = "/schedule/stops"
	calendarPath            = "/schedule/calendar"
	tripsPath               = "/schedule/trips"
	stopTimesPath           = "/schedule/stop_times"
	tripUpdatesPath         = "/tripUpdates"
	tripUpdatesProtobufPath = "/raw/tripUpdates.dat"

	// defaultMaxRetries bounds retries when the configuration leaves them
	// unset; an unbounded retry would pin a request until its deadline.
	defaultMaxRetries = 3
)

// APIClient reads the Metra GTFS JSON API.
type APIClient struct {
	baseURL        string
	username       string
	password       string
	realtimeFormat string
	maxRetries     int

	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewAPIClient builds a client for the source described by cfg. A zero
// rate limit disables outbound throttling.
func NewAPIClient(cfg config.SourceConfig, client *http.Client, logger *slog.Logger) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limit := rate.Inf
	if cfg.RateLimitPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimitPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &APIClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		username:       cfg.Username,
		password:       cfg.Password,
		realtimeFormat: cfg.RealtimeFormat,
		maxRetries:     maxRetries,
		client:         client,
		limiter:        rate.NewLimiter(limit, burst),
		logger:         logger,
	}
}

func (c *APIClient) FetchRoutes(ctx context.Context) ([]models.Route, error) {
	return fetchRecords[models.Route](ctx, c, EndpointRoutes, routesPath)
}

func (c *APIClient) FetchStops(ctx context.Context) ([]models.Stop, error) {
	return fetchRecords[models.Stop](ctx, c, EndpointStops, stopsPath)
}

func (c *APIClient) FetchCalendars(ctx context.Context) ([]models.Calendar, error) {
	return fetchRecords[models.Calendar](ctx, c, EndpointCalendars, calendarPath)
}

func (c *APIClient) FetchTrips(ctx context.Context) ([]models.Trip, error) {
	return fetchRecords[models.Trip](ctx, c, EndpointTrips, tripsPath)
}

func (c *APIClient) FetchStopTimes(ctx context.Context) ([]models.StopTime, error) {
	return fetchRecords[models.StopTime](ctx, c, EndpointStopTimes, stopTimesPath)
}

// FetchTripUpdates reads the real-time trip updates in the configured
// format, JSON by default or GTFS-realtime protobuf.
func (c *APIClient) FetchTripUpdates(ctx context.Context) ([]models.TripUpdate, error) {
	if c.realtimeFormat == config.RealtimeProtobuf {
		return c.fetchTripUpdatesProtobuf(ctx)
	}

	records, err := fetchRecords[tripUpdateRecord](ctx, c, EndpointTripUpdates, tripUpdatesPath)
	if err != nil {
		return nil, err
	}
	updates := make([]models.TripUpdate, 0, len(records))
	for _, rec := range records {
		updates = append(updates, rec.toModel())
	}
	updates = keepValid(c.logger, EndpointTripUpdates, updates)
	metrics.RemoteRecords.WithLabelValues(EndpointTripUpdates).Set(float64(len(updates)))
	return updates, nil
}

func (c *APIClient) fetchTripUpdatesProtobuf(ctx context.Context) ([]models.TripUpdate, error) {
	body, err := c.get(ctx, EndpointTripUpdates, tripUpdatesProtobufPath, "application/x-protobuf")
	if err != nil {
		return nil, err
	}

	realtime, err := gtfs.ParseRealtime(body, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, c.fail(EndpointTripUpdates, fmt.Errorf("failed to decode GTFS-realtime feed: %w", err))
	}
	updates := keepValid(c.logger, EndpointTripUpdates, tripUpdatesFromRealtime(realtime))
	metrics.RemoteRecords.WithLabelValues(EndpointTripUpdates).Set(float64(len(updates)))
	return updates, nil
}

func fetchRecords[T any](ctx context.Context, c *APIClient, endpoint, path string) ([]T, error) {
	body, err := c.get(ctx, endpoint, path, "application/json")
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords[T](c.logger, endpoint, body)
	if err != nil {
		return nil, c.fail(endpoint, err)
	}
	metrics.RemoteRecords.WithLabelValues(endpoint).Set(float64(len(records)))
	return records, nil
}

// get performs one rate-limited, retried GET against the API and returns
// the response body of a 200 response.
func (c *APIClient) get(ctx context.Context, endpoint, path, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, c.fail(endpoint, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, c.fail(endpoint, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", accept)
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := config.DoWithBackoff(ctx, c.client, req, c.maxRetries)
	if err != nil {
		return nil, c.fail(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(endpoint, fmt.Errorf("unexpected response status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(endpoint, fmt.Errorf("failed to read response body: %w", err))
	}
	return body, nil
}

func (c *APIClient) fail(endpoint string, err error) error {
	var dsErr *DataSourceError
	if !errors.As(err, &dsErr) {
		dsErr = &DataSourceError{Endpoint: endpoint, Err: err}
	}
	metrics.RemoteFetchErrors.WithLabelValues(endpoint).Inc()
	c.logger.Error("failed to fetch from data source", "endpoint", endpoint, "error", err)
	return dsErr
}
