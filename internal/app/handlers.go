package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/julienschmidt/httprouter"

	"departures.metraboard.org/internal/board"
	"departures.metraboard.org/internal/feed"
	"departures.metraboard.org/internal/models"
	"departures.metraboard.org/internal/report"
	"departures.metraboard.org/internal/utils"
)

// HealthStatus is the body of /v1/healthcheck. The service is ready once
// it has a board service to answer from.
type HealthStatus struct {
	Status        string `json:"status"`
	Environment   string `json:"environment"`
	Version       string `json:"version"`
	TrackedRoutes int    `json:"tracked_routes"`
	Ready         bool   `json:"ready"`
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:      "available",
		Environment: app.Config.Env,
		Version:     app.Version,
		Ready:       app.Board != nil,
	}
	if app.Board != nil {
		status.TrackedRoutes = len(app.Board.Tracking().RouteIDs())
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusInternalServerError
	}
	app.writeJSON(w, code, status)
}

// departuresHandler serves the board for the configured tracking, narrowed
// to the repeated "route" query parameter when present.
func (app *Application) departuresHandler(w http.ResponseWriter, r *http.Request) {
	routeIDs := r.URL.Query()["route"]
	tracking := app.Board.Tracking()
	for _, routeID := range routeIDs {
		if !tracking.TracksRoute(routeID) {
			app.errorResponse(w, http.StatusNotFound, fmt.Sprintf("route %q is not tracked", routeID))
			return
		}
	}
	app.serveBoard(w, r, tracking.Restrict(routeIDs...))
}

func (app *Application) routeDeparturesHandler(w http.ResponseWriter, r *http.Request) {
	routeID := httprouter.ParamsFromContext(r.Context()).ByName("route_id")
	tracking := app.Board.Tracking()
	if routeID == "" || !tracking.TracksRoute(routeID) {
		app.errorResponse(w, http.StatusNotFound, fmt.Sprintf("route %q is not tracked", routeID))
		return
	}
	app.serveBoard(w, r, tracking.Restrict(routeID))
}

func (app *Application) serveBoard(w http.ResponseWriter, r *http.Request, tracking models.TrackingConfig) {
	now := app.Board.Now()
	db, err := app.Board.GetDepartureBoardAt(r.Context(), tracking, now)
	if err != nil {
		app.boardError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, presentBoard(db, now))
}

func (app *Application) boardError(w http.ResponseWriter, r *http.Request, err error) {
	var dsErr *feed.DataSourceError
	switch {
	case errors.As(err, &dsErr):
		app.Logger.Error("departure board unavailable", "endpoint", dsErr.Endpoint, "error", err)
		report.ReportErrorFromContext(r.Context(), err, report.SentryReportOptions{
			Tags:  utils.MakeMap("endpoint", dsErr.Endpoint),
			Level: sentry.LevelError,
		})
		app.errorResponse(w, http.StatusBadGateway, "schedule data is temporarily unavailable")
	case errors.Is(err, board.ErrTrackingNotSubset):
		app.errorResponse(w, http.StatusBadRequest, err.Error())
	case r.Context().Err() != nil:
		app.Logger.Warn("request cancelled while building board", "error", err)
		app.errorResponse(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		app.Logger.Error("failed to build departure board", "error", err)
		report.ReportErrorFromContext(r.Context(), err, report.SentryReportOptions{
			Level: sentry.LevelError,
		})
		app.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

func (app *Application) errorResponse(w http.ResponseWriter, code int, message string) {
	app.writeJSON(w, code, map[string]string{"error": message})
}

func (app *Application) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.Logger.Error("failed to write response", "error", err)
	}
}
