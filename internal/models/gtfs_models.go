package models

import (
	"time"
)

// Direction is the GTFS direction_id of a trip.
type Direction int

const (
	Outbound Direction = 0
	Inbound  Direction = 1
)

// DirectionLabels maps each direction to the label shown on departure boards.
var DirectionLabels = map[Direction]string{
	Outbound: "Outbound",
	Inbound:  "Inbound",
}

// Directions lists every direction in display order.
var Directions = []Direction{Outbound, Inbound}

// Label returns the display label for d.
func (d Direction) Label() string {
	if label, ok := DirectionLabels[d]; ok {
		return label
	}
	return "Unknown"
}

// Route is a named transit line.
type Route struct {
	RouteID   string  `json:"route_id" validate:"required"`
	AgencyID  string  `json:"agency_id,omitempty"`
	ShortName string  `json:"route_short_name,omitempty"`
	LongName  string  `json:"route_long_name,omitempty"`
	Type      FlexInt `json:"route_type,omitempty"`
	URL       string  `json:"route_url,omitempty"`
	Color     string  `json:"route_color,omitempty"`
	TextColor string  `json:"route_text_color,omitempty"`
}

// Stop is a place where vehicles pick up or drop off riders.
type Stop struct {
	StopID             string  `json:"stop_id" validate:"required"`
	Name               string  `json:"stop_name,omitempty"`
	Description        string  `json:"stop_desc,omitempty"`
	Lat                float64 `json:"stop_lat,omitempty"`
	Lon                float64 `json:"stop_lon,omitempty"`
	ZoneID             string  `json:"zone_id,omitempty"`
	URL                string  `json:"stop_url,omitempty"`
	WheelchairBoarding FlexInt `json:"wheelchair_boarding,omitempty"`
}

// Calendar is a weekday + date-range service pattern.
type Calendar struct {
	ServiceID string      `json:"service_id" validate:"required"`
	Monday    DayFlag     `json:"monday"`
	Tuesday   DayFlag     `json:"tuesday"`
	Wednesday DayFlag     `json:"wednesday"`
	Thursday  DayFlag     `json:"thursday"`
	Friday    DayFlag     `json:"friday"`
	Saturday  DayFlag     `json:"saturday"`
	Sunday    DayFlag     `json:"sunday"`
	StartDate ServiceDate `json:"start_date"`
	EndDate   ServiceDate `json:"end_date"`
}

// RunsOn reports whether the weekday flag for wd is set.
func (c Calendar) RunsOn(wd time.Weekday) bool {
	switch wd {
	case time.Monday:
		return bool(c.Monday)
	case time.Tuesday:
		return bool(c.Tuesday)
	case time.Wednesday:
		return bool(c.Wednesday)
	case time.Thursday:
		return bool(c.Thursday)
	case time.Friday:
		return bool(c.Friday)
	case time.Saturday:
		return bool(c.Saturday)
	case time.Sunday:
		return bool(c.Sunday)
	}
	return false
}

// ActiveOn reports whether the service runs on the calendar day of day:
// day must fall within [StartDate, EndDate] inclusive and its weekday flag must be set.
// The comparison uses day's own location, so callers pass a local time.
func (c Calendar) ActiveOn(day time.Time) bool {
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return false
	}
	today := ordinal(day)
	if today < ordinal(c.StartDate.Time()) || today > ordinal(c.EndDate.Time()) {
		return false
	}
	return c.RunsOn(day.Weekday())
}

// Trip is one scheduled run of a vehicle along a route.
type Trip struct {
	TripID      string    `json:"trip_id" validate:"required"`
	RouteID     string    `json:"route_id" validate:"required"`
	ServiceID   string    `json:"service_id" validate:"required"`
	DirectionID Direction `json:"direction_id" validate:"oneof=0 1"`
	Headsign    string    `json:"trip_headsign,omitempty"`
	ShortName   string    `json:"trip_short_name,omitempty"`
	BlockID     string    `json:"block_id,omitempty"`
	ShapeID     string    `json:"shape_id,omitempty"`
}

// StopTime is one scheduled visit of a trip to a stop.
// ArrivalTime is kept as the raw feed text; it may exceed "24:00:00" for
// trips running past midnight.
type StopTime struct {
	TripID        string  `json:"trip_id" validate:"required"`
	StopID        string  `json:"stop_id" validate:"required"`
	ArrivalTime   string  `json:"arrival_time" validate:"required"`
	DepartureTime string  `json:"departure_time,omitempty"`
	StopSequence  FlexInt `json:"stop_sequence" validate:"min=0"`
}

// StopTimeEvent is a real-time prediction for an arrival or departure.
type StopTimeEvent struct {
	DelaySeconds int       `json:"delay"`
	Time         time.Time `json:"time,omitempty"`
}

// StopTimeUpdate is a real-time update for one stop of a trip.
type StopTimeUpdate struct {
	StopID       string         `json:"stop_id" validate:"required"`
	StopSequence int            `json:"stop_sequence"`
	Arrival      *StopTimeEvent `json:"arrival,omitempty"`
	Departure    *StopTimeEvent `json:"departure,omitempty"`
}

// TripUpdate is a real-time update for a whole trip.
type TripUpdate struct {
	ID              string           `json:"id"`
	IsDeleted       bool             `json:"is_deleted"`
	TripID          string           `json:"trip_id" validate:"required"`
	RouteID         string           `json:"route_id"`
	StopTimeUpdates []StopTimeUpdate `json:"stop_time_update" validate:"dive"`
}
