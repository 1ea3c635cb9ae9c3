package app

import (
	"time"

	"departures.metraboard.org/internal/models"
)

// boardResponse is the JSON body of the departures endpoints.
type boardResponse struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Directions  []string        `json:"directions"`
	Routes      []routeResponse `json:"routes"`
}

type routeResponse struct {
	Route models.Route   `json:"route"`
	Stops []stopResponse `json:"stops"`
}

type stopResponse struct {
	Stop         models.Stop                    `json:"stop"`
	StopSequence *int                           `json:"stop_sequence"`
	Departures   map[string][]departureResponse `json:"departures"`
}

type departureResponse struct {
	TripID        string     `json:"trip_id"`
	Headsign      string     `json:"headsign,omitempty"`
	ArrivalTime   string     `json:"arrival_time"`
	DisplayTime   string     `json:"display_time"`
	PredictedTime *time.Time `json:"predicted_time,omitempty"`
	DelaySeconds  *int       `json:"delay_seconds,omitempty"`
}

// presentBoard turns db into its response shape, listing only the
// departures still upcoming at now. Routes are sorted by id and stops keep
// the board's order.
func presentBoard(db models.DepartureBoard, now time.Time) boardResponse {
	resp := boardResponse{
		GeneratedAt: now,
		Directions:  make([]string, 0, len(models.Directions)),
		Routes:      make([]routeResponse, 0, len(db)),
	}
	for _, dir := range models.Directions {
		resp.Directions = append(resp.Directions, dir.Label())
	}

	for _, routeID := range db.RouteIDs() {
		list := db[routeID]
		if len(list) == 0 {
			continue
		}
		rr := routeResponse{Route: list[0].Route, Stops: make([]stopResponse, 0, len(list))}
		for _, sb := range list {
			rr.Stops = append(rr.Stops, presentStop(sb, now))
		}
		resp.Routes = append(resp.Routes, rr)
	}
	return resp
}

func presentStop(sb *models.StopBoard, now time.Time) stopResponse {
	upcoming, _ := sb.Upcoming(now)
	sr := stopResponse{
		Stop:         sb.Stop,
		StopSequence: sb.StopSequence,
		Departures:   make(map[string][]departureResponse, len(models.Directions)),
	}
	for _, dir := range models.Directions {
		deps := make([]departureResponse, 0, len(upcoming[dir]))
		for _, d := range upcoming[dir] {
			deps = append(deps, presentDeparture(d))
		}
		sr.Departures[dir.Label()] = deps
	}
	return sr
}

func presentDeparture(d models.Departure) departureResponse {
	dr := departureResponse{
		TripID:      d.TripID,
		Headsign:    d.Headsign,
		ArrivalTime: d.ArrivalTime,
	}
	if at, err := models.ParseArrival(d.ArrivalTime); err == nil {
		dr.DisplayTime = at.Display()
	}
	if p := d.Prediction; p != nil {
		delay := p.DelaySeconds
		dr.DelaySeconds = &delay
		if !p.Time.IsZero() {
			t := p.Time
			dr.PredictedTime = &t
		}
	}
	return dr
}
