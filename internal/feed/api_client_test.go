package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gtfsrt "github.com/jamespfennell/gtfs/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
)

const routesJSON = `[
	{"route_id":"UP-NW","route_short_name":"UP-NW","route_long_name":"Union Pacific Northwest","route_type":"2","route_color":"FFE600"},
	{"route_id":"","route_long_name":"missing id"},
	{"route_id":"BNSF","route_long_name":"BNSF","route_type":2}
]`

const calendarJSON = `[
	{"service_id":"A1","monday":1,"tuesday":"1","wednesday":true,"thursday":1,"friday":1,"saturday":0,"sunday":"0","start_date":"2025-05-01","end_date":"20251231"}
]`

const tripsJSON = `[
	{"trip_id":"UP-NW_UN601_V1_A","route_id":"UP-NW","service_id":"A1","direction_id":1,"trip_headsign":"Chicago OTC"},
	{"trip_id":"UP-NW_UN600_V1_A","route_id":"UP-NW","service_id":"A1","direction_id":0},
	{"trip_id":"BAD","route_id":"UP-NW","service_id":"A1","direction_id":7}
]`

const stopTimesJSON = `[
	{"trip_id":"UP-NW_UN601_V1_A","stop_id":"JEFFERSONP","arrival_time":"08:15:00","departure_time":"08:15:00","stop_sequence":"12"},
	{"trip_id":"UP-NW_UN601_V1_A","stop_id":"OTC","arrival_time":"25:30:00","stop_sequence":13},
	{"trip_id":"UP-NW_UN601_V1_A","stop_id":"OTC","stop_sequence":14}
]`

const tripUpdatesJSON = `[
	{"id":"1","is_deleted":false,"trip_update":{"trip":{"trip_id":"UP-NW_UN601_V1_A","route_id":"UP-NW"},
		"stop_time_update":[
			{"stop_id":"JEFFERSONP","stop_sequence":12,"arrival":{"delay":120,"time":{"low":"2025-06-10T13:17:00.000Z","high":0,"unsigned":false}}},
			{"stop_id":"OTC","stop_sequence":13,"arrival":{"delay":null,"time":"2025-06-10T13:40:00Z"}}
		]}},
	{"id":"2","is_deleted":true,"trip_update":{"trip":{"trip_id":"UP-NW_UN600_V1_A","route_id":"UP-NW"},"stop_time_update":[]}},
	{"id":"3","is_deleted":false,"trip_update":{"trip":{"trip_id":"","route_id":"UP-NW"},"stop_time_update":[]}}
]`

func TestAPIClientFetchRoutes(t *testing.T) {
	api, srv := setupFakeAPI(t, map[string]string{routesPath: routesJSON})
	client := newTestAPIClient(srv.URL)

	before, _ := metrics.GetMetricValue(metrics.MalformedRecords, map[string]string{"kind": EndpointRoutes})

	routes, err := client.FetchRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 2, "record without route_id is dropped")
	assert.Equal(t, "UP-NW", routes[0].RouteID)
	assert.Equal(t, models.FlexInt(2), routes[0].Type, "numeric strings are accepted")
	assert.Equal(t, "BNSF", routes[1].RouteID)

	after, err := metrics.GetMetricValue(metrics.MalformedRecords, map[string]string{"kind": EndpointRoutes})
	require.NoError(t, err)
	assert.Equal(t, 1.0, after-before)

	records, err := metrics.GetMetricValue(metrics.RemoteRecords, map[string]string{"endpoint": EndpointRoutes})
	require.NoError(t, err)
	assert.Equal(t, 2.0, records)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "application/json", api.requests[0].Header.Get("Accept"))
}

func TestAPIClientFetchSchedule(t *testing.T) {
	_, srv := setupFakeAPI(t, map[string]string{
		calendarPath:  calendarJSON,
		tripsPath:     tripsJSON,
		stopTimesPath: stopTimesJSON,
	})
	client := newTestAPIClient(srv.URL)
	ctx := context.Background()

	t.Run("Calendars", func(t *testing.T) {
		calendars, err := client.FetchCalendars(ctx)
		require.NoError(t, err)
		require.Len(t, calendars, 1)
		cal := calendars[0]
		assert.True(t, bool(cal.Monday))
		assert.True(t, bool(cal.Tuesday))
		assert.True(t, bool(cal.Wednesday))
		assert.False(t, bool(cal.Sunday))
		assert.Equal(t, time.May, cal.StartDate.Time().Month())
		assert.Equal(t, 2025, cal.EndDate.Time().Year())
	})

	t.Run("Trips", func(t *testing.T) {
		trips, err := client.FetchTrips(ctx)
		require.NoError(t, err)
		require.Len(t, trips, 2, "trip with an unknown direction is dropped")
		assert.Equal(t, models.Inbound, trips[0].DirectionID)
		assert.Equal(t, "Chicago OTC", trips[0].Headsign)
		assert.Equal(t, models.Outbound, trips[1].DirectionID)
	})

	t.Run("Stop times", func(t *testing.T) {
		stopTimes, err := client.FetchStopTimes(ctx)
		require.NoError(t, err)
		require.Len(t, stopTimes, 2, "stop time without arrival_time is dropped")
		assert.Equal(t, models.FlexInt(12), stopTimes[0].StopSequence)
		assert.Equal(t, "25:30:00", stopTimes[1].ArrivalTime, "times past midnight are kept verbatim")
	})
}

func TestAPIClientFetchTripUpdatesJSON(t *testing.T) {
	_, srv := setupFakeAPI(t, map[string]string{tripUpdatesPath: tripUpdatesJSON})
	client := newTestAPIClient(srv.URL)

	updates, err := client.FetchTripUpdates(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 2, "update without trip_id is dropped, deleted ones are kept for the caller")

	first := updates[0]
	assert.Equal(t, "UP-NW_UN601_V1_A", first.TripID)
	assert.Equal(t, "UP-NW", first.RouteID)
	require.Len(t, first.StopTimeUpdates, 2)

	arrival := first.StopTimeUpdates[0].Arrival
	require.NotNil(t, arrival)
	assert.Equal(t, 120, arrival.DelaySeconds)
	assert.True(t, arrival.Time.Equal(time.Date(2025, time.June, 10, 13, 17, 0, 0, time.UTC)))

	second := first.StopTimeUpdates[1].Arrival
	require.NotNil(t, second)
	assert.Equal(t, 0, second.DelaySeconds)
	assert.True(t, second.Time.Equal(time.Date(2025, time.June, 10, 13, 40, 0, 0, time.UTC)))

	assert.True(t, updates[1].IsDeleted)
}

func TestAPIClientFetchTripUpdatesProtobuf(t *testing.T) {
	predicted := time.Date(2025, time.June, 10, 13, 17, 0, 0, time.UTC)
	feedMessage := &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(uint64(predicted.Unix())),
		},
		Entity: []*gtfsrt.FeedEntity{
			{
				Id: proto.String("1"),
				TripUpdate: &gtfsrt.TripUpdate{
					Trip: &gtfsrt.TripDescriptor{
						TripId:  proto.String("UP-NW_UN601_V1_A"),
						RouteId: proto.String("UP-NW"),
					},
					StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{
						{
							StopSequence: proto.Uint32(12),
							StopId:       proto.String("JEFFERSONP"),
							Arrival: &gtfsrt.TripUpdate_StopTimeEvent{
								Delay: proto.Int32(120),
								Time:  proto.Int64(predicted.Unix()),
							},
						},
					},
				},
			},
			{
				Id: proto.String("vehicle-only"),
				Vehicle: &gtfsrt.VehiclePosition{
					Trip: &gtfsrt.TripDescriptor{
						TripId:  proto.String("UP-NW_UN603_V1_A"),
						RouteId: proto.String("UP-NW"),
					},
				},
			},
			{
				Id: proto.String("empty"),
			},
		},
	}
	data, err := proto.Marshal(feedMessage)
	require.NoError(t, err)

	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tripUpdatesProtobufPath {
			http.NotFound(w, r)
			return
		}
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	client := newTestAPIClient(srv.URL)
	client.realtimeFormat = config.RealtimeProtobuf

	updates, err := client.FetchTripUpdates(context.Background())
	require.NoError(t, err)
	require.Len(t, updates, 1, "entities without a trip update are skipped")
	assert.Equal(t, "application/x-protobuf", gotAccept)

	tu := updates[0]
	assert.Equal(t, "UP-NW_UN601_V1_A", tu.TripID)
	assert.Equal(t, "UP-NW", tu.RouteID)
	assert.False(t, tu.IsDeleted)
	require.Len(t, tu.StopTimeUpdates, 1)
	stu := tu.StopTimeUpdates[0]
	assert.Equal(t, "JEFFERSONP", stu.StopID)
	assert.Equal(t, 12, stu.StopSequence)
	require.NotNil(t, stu.Arrival)
	assert.Equal(t, 120, stu.Arrival.DelaySeconds)
	assert.True(t, stu.Arrival.Time.Equal(predicted))
	assert.Nil(t, stu.Departure)
}

func TestAPIClientFetchTripUpdatesProtobufMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a feed message"))
	}))
	defer srv.Close()

	client := newTestAPIClient(srv.URL)
	client.realtimeFormat = config.RealtimeProtobuf

	_, err := client.FetchTripUpdates(context.Background())
	require.Error(t, err)
	var dsErr *DataSourceError
	assert.True(t, errors.As(err, &dsErr))
}

func TestAPIClientErrors(t *testing.T) {
	t.Run("Unexpected status is a data source error and is not retried", func(t *testing.T) {
		api, srv := setupFakeAPI(t, nil)
		api.statuses[stopsPath] = http.StatusNotFound
		client := newTestAPIClient(srv.URL)

		before, _ := metrics.GetMetricValue(metrics.RemoteFetchErrors, map[string]string{"endpoint": EndpointStops})

		_, err := client.FetchStops(context.Background())
		require.Error(t, err)

		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.Equal(t, EndpointStops, dsErr.Endpoint)
		assert.Contains(t, err.Error(), "404")
		assert.Equal(t, 1, api.requestCount(stopsPath))

		after, err := metrics.GetMetricValue(metrics.RemoteFetchErrors, map[string]string{"endpoint": EndpointStops})
		require.NoError(t, err)
		assert.Equal(t, 1.0, after-before)
	})

	t.Run("Bad credentials", func(t *testing.T) {
		_, srv := setupFakeAPI(t, map[string]string{routesPath: routesJSON})
		client := newTestAPIClient(srv.URL)
		client.password = "wrong"

		_, err := client.FetchRoutes(context.Background())
		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("Payload that is not an array", func(t *testing.T) {
		_, srv := setupFakeAPI(t, map[string]string{routesPath: `{"error":"maintenance"}`})
		client := newTestAPIClient(srv.URL)

		_, err := client.FetchRoutes(context.Background())
		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.Equal(t, EndpointRoutes, dsErr.Endpoint)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		_, srv := setupFakeAPI(t, map[string]string{routesPath: routesJSON})
		client := newTestAPIClient(srv.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.FetchRoutes(ctx)
		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewAPIClientDefaults(t *testing.T) {
	client := NewAPIClient(config.SourceConfig{BaseURL: "https://example.com/gtfs/"}, nil, nil)
	assert.Equal(t, "https://example.com/gtfs", client.baseURL)
	assert.Equal(t, defaultMaxRetries, client.maxRetries)
	assert.NotNil(t, client.client)
	assert.NotNil(t, client.logger)

	limited := NewAPIClient(config.SourceConfig{RateLimitPerSecond: 2, Burst: 0}, nil, nil)
	assert.Equal(t, 1, limited.limiter.Burst())
	assert.InDelta(t, 2.0, float64(limited.limiter.Limit()), 0.0001)
}
