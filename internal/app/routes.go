package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"departures.metraboard.org/internal/middleware"
)

// Routes registers the endpoints and wraps the router in the middleware
// chain. ctx bounds the metrics cache refresh loop.
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.HandlerFunc(http.MethodGet, "/v1/departures", app.departuresHandler)
	router.HandlerFunc(http.MethodGet, "/v1/routes/:route_id/departures", app.routeDeparturesHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.errorResponse(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = router
	handler = middleware.NewCompression(middleware.DefaultCompressionConfig())(handler)
	handler = middleware.SentryMiddleware(handler)
	handler = middleware.RequestLogging(app.Logger)(handler)
	return middleware.SecurityHeaders(handler)
}
