package app

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"departures.metraboard.org/internal/metrics"
)

// latencyTrackingRoundTripper records the latency of every outgoing request
// in metrics.RemoteFetchDuration.
type latencyTrackingRoundTripper struct {
	next http.RoundTripper
}

func (rt *latencyTrackingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	duration := time.Since(start).Seconds()

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	metrics.RemoteFetchDuration.WithLabelValues(
		endpointLabel(req),
		req.Method,
		status,
	).Observe(duration)

	return resp, err
}

// endpointLabel keeps the label set bounded: host plus the last path
// segment, without the query string.
func endpointLabel(req *http.Request) string {
	path := strings.TrimRight(req.URL.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i:]
	}
	return req.URL.Host + path
}

// NewPooledClient returns an HTTP client with connection reuse for the
// schedule API. Calls are short and bursty, so idle connections are kept
// for 90s and the whole request is capped at timeout.
func NewPooledClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	return &http.Client{
		Transport: &latencyTrackingRoundTripper{next: transport},
		Timeout:   timeout,
	}
}
