package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"departures.metraboard.org/internal/cache"
	"departures.metraboard.org/internal/clock"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/models"
)

var bundleFiles = map[string]string{
	"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n" +
		"METRA,Metra,https://metra.com,America/Chicago\n",
	"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type,route_color\n" +
		"UP-NW,METRA,,Union Pacific Northwest,2,FFE600\n" +
		"BNSF,METRA,,BNSF,2,36B138\n",
	"stops.txt": "stop_id,stop_name,stop_lat,stop_lon,zone_id\n" +
		"JEFFERSONP,Jefferson Park,41.9702,-87.7608,B\n" +
		"OTC,Chicago OTC,41.8831,-87.6405,A\n",
	"calendar.txt": "service_id,monday,tuesday,wednesday,thursday,friday,saturday,sunday,start_date,end_date\n" +
		"A1,1,1,1,1,1,0,0,20250501,20251231\n",
	"trips.txt": "route_id,service_id,trip_id,trip_headsign,direction_id\n" +
		"UP-NW,A1,UP-NW_UN601_V1_A,Chicago OTC,1\n" +
		"UP-NW,A1,UP-NW_UN600_V1_A,Harvard,0\n",
	"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
		"UP-NW_UN601_V1_A,08:15:00,08:15:00,JEFFERSONP,19\n" +
		"UP-NW_UN601_V1_A,08:36:00,08:36:00,OTC,22\n" +
		"UP-NW_UN600_V1_A,17:30:00,17:30:00,OTC,1\n" +
		"UP-NW_UN600_V1_A,17:52:00,17:52:00,JEFFERSONP,4\n",
}

func setupBundleServer(t *testing.T, data []byte, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func newTestBundleSource(url string, c *cache.Cache) *BundleSource {
	return NewBundleSource(config.SourceConfig{
		Kind:       config.SourceBundle,
		BundleURL:  url,
		MaxRetries: 1,
	}, &http.Client{Timeout: 5 * time.Second}, c, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBundleSource(t *testing.T) {
	srv, downloads := setupBundleServer(t, buildZip(t, bundleFiles), http.StatusOK)
	mc := clock.NewMockClock(time.Date(2025, time.June, 10, 13, 0, 0, 0, time.UTC))
	source := newTestBundleSource(srv.URL+"/gtfs.zip", cache.New(mc))
	ctx := context.Background()

	routes, err := source.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	byRoute := map[string]models.Route{}
	for _, r := range routes {
		byRoute[r.RouteID] = r
	}
	assert.Equal(t, "Union Pacific Northwest", byRoute["UP-NW"].LongName)
	assert.Equal(t, "METRA", byRoute["UP-NW"].AgencyID)

	stops, err := source.FetchStops(ctx)
	require.NoError(t, err)
	require.Len(t, stops, 2)

	calendars, err := source.FetchCalendars(ctx)
	require.NoError(t, err)
	require.Len(t, calendars, 1)
	tuesday := time.Date(2025, time.June, 10, 8, 0, 0, 0, time.FixedZone("CDT", -5*3600))
	assert.True(t, calendars[0].ActiveOn(tuesday))
	assert.False(t, calendars[0].ActiveOn(tuesday.AddDate(0, 0, 4)), "Saturday is not in service")

	trips, err := source.FetchTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	byTrip := map[string]models.Trip{}
	for _, trip := range trips {
		byTrip[trip.TripID] = trip
	}
	assert.Equal(t, models.Inbound, byTrip["UP-NW_UN601_V1_A"].DirectionID)
	assert.Equal(t, models.Outbound, byTrip["UP-NW_UN600_V1_A"].DirectionID)
	assert.Equal(t, "A1", byTrip["UP-NW_UN601_V1_A"].ServiceID)
	assert.Equal(t, "UP-NW", byTrip["UP-NW_UN601_V1_A"].RouteID)

	stopTimes, err := source.FetchStopTimes(ctx)
	require.NoError(t, err)
	require.Len(t, stopTimes, 4)
	found := false
	for _, st := range stopTimes {
		if st.TripID == "UP-NW_UN601_V1_A" && st.StopID == "JEFFERSONP" {
			found = true
			assert.Equal(t, "08:15:00", st.ArrivalTime)
			assert.EqualValues(t, 19, st.StopSequence)
		}
	}
	assert.True(t, found, "expected the Jefferson Park stop time of UN601")

	updates, err := source.FetchTripUpdates(ctx)
	require.NoError(t, err)
	assert.Empty(t, updates)

	assert.Equal(t, int32(1), downloads.Load(), "accessors share one download")

	mc.Advance(time.Hour)
	_, err = source.FetchRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), downloads.Load(), "bundle is downloaded again after its TTL")
}

func TestBundleSourceErrors(t *testing.T) {
	t.Run("Failed download is not cached", func(t *testing.T) {
		srv, downloads := setupBundleServer(t, nil, http.StatusNotFound)
		source := newTestBundleSource(srv.URL, cache.New(nil))

		_, err := source.FetchRoutes(context.Background())
		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.Equal(t, EndpointBundle, dsErr.Endpoint)

		_, err = source.FetchStops(context.Background())
		require.Error(t, err)
		assert.Equal(t, int32(2), downloads.Load())
	})

	t.Run("Archive that is not a GTFS bundle", func(t *testing.T) {
		srv, _ := setupBundleServer(t, []byte("not a zip"), http.StatusOK)
		source := newTestBundleSource(srv.URL, cache.New(nil))

		_, err := source.FetchTrips(context.Background())
		var dsErr *DataSourceError
		require.True(t, errors.As(err, &dsErr))
		assert.Contains(t, err.Error(), "failed to parse GTFS static data")
	})
}

func TestFormatStopTime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{8*time.Hour + 15*time.Minute, "08:15:00"},
		{25*time.Hour + 30*time.Minute + 5*time.Second, "25:30:05"},
		{-time.Minute, "00:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStopTime(tt.in))
	}
}
