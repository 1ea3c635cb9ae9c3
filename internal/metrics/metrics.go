package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheRequests counts TTL cache lookups by key base and result (hit|miss).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "departures_cache_requests_total",
		Help: "Number of TTL cache lookups partitioned by key base and result",
	}, []string{"key", "result"})

	// CacheComputeErrors counts memoized computations that failed and were not stored.
	CacheComputeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "departures_cache_compute_errors_total",
		Help: "Number of failed cache computations (never stored)",
	}, []string{"key"})

	// CacheEntries is the number of entries held by the TTL cache after the
	// last purge.
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "departures_cache_entries",
		Help: "Number of entries in the TTL cache after the last purge",
	})

	// CachePurged counts expired entries removed by the purge loop.
	CachePurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "departures_cache_purged_total",
		Help: "Number of expired cache entries removed",
	})
)

var (
	// RemoteFetchDuration records the latency of outgoing HTTP requests.
	RemoteFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "departures_remote_fetch_duration_seconds",
		Help:    "Latency of outgoing requests to the schedule data source",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status"})

	// RemoteFetchErrors counts failed fetches per logical endpoint.
	RemoteFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "departures_remote_fetch_errors_total",
		Help: "Number of failed fetches from the schedule data source",
	}, []string{"endpoint"})

	// RemoteRecords tracks how many valid records the last fetch of each endpoint returned.
	RemoteRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "departures_remote_records",
		Help: "Number of valid records returned by the last fetch of each endpoint",
	}, []string{"endpoint"})
)

var (
	// MalformedRecords counts records dropped at the source boundary or
	// skipped while building boards.
	MalformedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "departures_malformed_records_total",
		Help: "Number of records dropped because they failed validation or parsing",
	}, []string{"kind"})

	// BoardsBuilt counts departure board requests by outcome (ok|error).
	BoardsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "departures_boards_built_total",
		Help: "Number of departure boards built partitioned by outcome",
	}, []string{"outcome"})

	// UpcomingDepartures is the number of upcoming departures on the last
	// board built for each route and direction.
	UpcomingDepartures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "departures_upcoming",
		Help: "Number of upcoming departures on the last board built per route and direction",
	}, []string{"route_id", "direction"})
)
