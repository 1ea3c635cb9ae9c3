// Package board joins schedule collections into departure boards.
// Everything here except Service is pure: no I/O and no cache access.
package board

import (
	"log/slog"
	"sort"
	"time"

	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
	"departures.metraboard.org/internal/utils"
)

// Input is one consistent snapshot of the schedule collections.
type Input struct {
	Routes      map[string]models.Route
	Stops       map[string]models.Stop
	Trips       map[string]models.Trip
	StopTimes   map[string][]models.StopTime
	TripUpdates []models.TripUpdate
}

// ActiveServiceIDs returns the sorted ids of the calendars running on
// today's calendar day in today's location.
func ActiveServiceIDs(calendars []models.Calendar, today time.Time) []string {
	ids := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		if cal.ActiveOn(today) {
			ids = append(ids, cal.ServiceID)
		}
	}
	return utils.SortedUnique(ids)
}

// Build groups the tracked stop times of in into stop boards. Each
// direction list is sorted by service-day time and each route's boards are
// ordered by stop sequence. Build does not filter by the current time; see
// Upcoming.
//
// Stop times whose stop, trip or route cannot be resolved are skipped, as
// are stop times outside tracking. A malformed arrival time skips only its
// own stop time.
func Build(in Input, tracking models.TrackingConfig, logger *slog.Logger) models.DepartureBoard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	type boardKey struct{ routeID, stopID string }
	boards := make(map[boardKey]*models.StopBoard)
	db := make(models.DepartureBoard)

	for _, stopID := range utils.Keys(in.StopTimes) {
		stop, ok := in.Stops[stopID]
		if !ok {
			metrics.MalformedRecords.WithLabelValues("unknown_stop").Inc()
			logger.Warn("skipping stop times for unknown stop", "stop_id", stopID, "count", len(in.StopTimes[stopID]))
			continue
		}

		for _, st := range in.StopTimes[stopID] {
			trip, ok := in.Trips[st.TripID]
			if !ok {
				continue
			}
			route, ok := in.Routes[trip.RouteID]
			if !ok {
				continue
			}
			if !tracking.TracksStop(route.RouteID, stop.StopID) {
				continue
			}
			if _, err := ParseArrival(st.ArrivalTime); err != nil {
				metrics.MalformedRecords.WithLabelValues("arrival_time").Inc()
				logger.Warn("skipping stop time with malformed arrival time",
					"trip_id", st.TripID, "stop_id", st.StopID, "error", err)
				continue
			}

			key := boardKey{routeID: route.RouteID, stopID: stop.StopID}
			sb, ok := boards[key]
			if !ok {
				sb = models.NewStopBoard(stop, route)
				boards[key] = sb
				db[route.RouteID] = append(db[route.RouteID], sb)
			}
			sb.Add(models.Departure{
				StopTime:    st,
				DirectionID: trip.DirectionID,
				Headsign:    trip.Headsign,
				TripName:    trip.ShortName,
			})
		}
	}

	for routeID, list := range db {
		for _, sb := range list {
			sb.Sort()
		}
		SortStopBoards(list)
		db[routeID] = list
	}

	if len(in.TripUpdates) > 0 {
		ApplyTripUpdates(db, in.TripUpdates)
	}
	return db
}

// SortStopBoards orders boards by stop sequence. Boards without a sequence
// follow all sequenced ones, ordered by earliest scheduled arrival; stop id
// breaks any remaining tie.
func SortStopBoards(list []*models.StopBoard) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch {
		case a.StopSequence != nil && b.StopSequence != nil:
			if *a.StopSequence != *b.StopSequence {
				return *a.StopSequence < *b.StopSequence
			}
		case a.StopSequence != nil:
			return true
		case b.StopSequence != nil:
			return false
		default:
			ae, aok := a.EarliestArrival()
			be, bok := b.EarliestArrival()
			if aok != bok {
				return aok
			}
			if ae != be {
				return ae < be
			}
		}
		return a.Stop.StopID < b.Stop.StopID
	})
}

// Upcoming returns the part of db still worth showing at now: stop boards
// with at least one departure at or after now in some direction. Routes
// left without boards are dropped. db is not modified.
func Upcoming(db models.DepartureBoard, now time.Time) models.DepartureBoard {
	out := make(models.DepartureBoard, len(db))
	for routeID, list := range db {
		kept := make([]*models.StopBoard, 0, len(list))
		for _, sb := range list {
			upcoming, _ := sb.Upcoming(now)
			for _, dir := range models.Directions {
				if len(upcoming[dir]) > 0 {
					kept = append(kept, sb)
					break
				}
			}
		}
		if len(kept) > 0 {
			out[routeID] = kept
		}
	}
	return out
}
