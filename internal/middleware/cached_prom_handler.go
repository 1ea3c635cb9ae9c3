package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// CachedPromHandler serves a Prometheus exposition that is regathered every
// ttl instead of on each scrape.
type CachedPromHandler struct {
	mu        sync.RWMutex
	body      []byte
	refreshed time.Time
	ttl       time.Duration
	h         http.Handler
}

// NewCachedPromHandler gathers once and then refreshes in the background
// until ctx is cancelled.
func NewCachedPromHandler(ctx context.Context, gatherer prometheus.Gatherer, ttl time.Duration) *CachedPromHandler {
	c := &CachedPromHandler{
		ttl: ttl,
		h:   promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
	c.refresh()
	go c.refreshLoop(ctx)
	return c
}

func (c *CachedPromHandler) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

func (c *CachedPromHandler) refresh() {
	rec := &bufferWriter{header: http.Header{}}
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	c.h.ServeHTTP(rec, req)
	if rec.status != 0 && rec.status != http.StatusOK {
		return
	}

	c.mu.Lock()
	c.body = rec.buf.Bytes()
	c.refreshed = time.Now()
	c.mu.Unlock()
}

// LastRefresh reports when the cached exposition was last gathered.
func (c *CachedPromHandler) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

func (c *CachedPromHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	body := c.body
	c.mu.RUnlock()

	if len(body) == 0 {
		c.h.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	_, _ = w.Write(body)
}

// bufferWriter captures a handler's output in memory.
type bufferWriter struct {
	header http.Header
	buf    bytes.Buffer
	status int
}

func (b *bufferWriter) Header() http.Header         { return b.header }
func (b *bufferWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferWriter) WriteHeader(statusCode int)  { b.status = statusCode }
