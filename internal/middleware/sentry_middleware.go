package middleware

import (
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

// SentryMiddleware attaches a per-request Sentry hub to the request context
// and reports panics before re-raising them. Handlers report through the
// hub with report.ReportErrorFromContext so events carry the request.
func SentryMiddleware(next http.Handler) http.Handler {
	sentryHandler := sentryhttp.New(sentryhttp.Options{
		Repanic:         true,
		WaitForDelivery: true,
		Timeout:         2 * time.Second,
	})

	tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.Scope().SetTag("component", "http_server")
			hub.Scope().SetTag("path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
	return sentryHandler.Handle(tagged)
}
