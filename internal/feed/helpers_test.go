package feed

import (
	"archive/zip"
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"departures.metraboard.org/internal/config"
)

const (
	testUser = "metra-user"
	testPass = "metra-pass"
)

// fakeAPI serves canned bodies by path and records every request it sees.
type fakeAPI struct {
	mu       sync.Mutex
	bodies   map[string]string
	statuses map[string]int
	requests []*http.Request
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(r.Context()))
	status, hasStatus := f.statuses[r.URL.Path]
	body, hasBody := f.bodies[r.URL.Path]
	f.mu.Unlock()

	if user, pass, ok := r.BasicAuth(); !ok || user != testUser || pass != testPass {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if hasStatus {
		w.WriteHeader(status)
		return
	}
	if !hasBody {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func (f *fakeAPI) requestCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

func setupFakeAPI(t *testing.T, bodies map[string]string) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{bodies: bodies, statuses: map[string]int{}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv
}

func newTestAPIClient(baseURL string) *APIClient {
	return NewAPIClient(config.SourceConfig{
		Kind:           config.SourceAPI,
		BaseURL:        baseURL,
		RealtimeFormat: config.RealtimeJSON,
		MaxRetries:     1,
		Username:       testUser,
		Password:       testPass,
	}, &http.Client{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// buildZip packs files into an in-memory zip archive.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s in zip: %v", name, err)
		}
		if _, err := io.WriteString(w, content); err != nil {
			t.Fatalf("failed to write %s to zip: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}
