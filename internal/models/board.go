package models

import (
	"errors"
	"sort"
	"time"
)

// Departure is one StopTime on a StopBoard together with its trip details.
type Departure struct {
	StopTime
	DirectionID Direction
	Headsign    string
	TripName    string
	Prediction  *StopTimeEvent
}

// StopBoard collects the tracked stop times of one route at one stop.
// Derived per request and discarded afterwards.
type StopBoard struct {
	Stop  Stop
	Route Route
	// StopSequence comes from the first outbound stop time added to the
	// board and is nil if the board never saw one.
	StopSequence *int
	Times        map[Direction][]Departure
}

// NewStopBoard returns an empty board for stop on route.
func NewStopBoard(stop Stop, route Route) *StopBoard {
	return &StopBoard{
		Stop:  stop,
		Route: route,
		Times: make(map[Direction][]Departure, len(Directions)),
	}
}

// Add appends d to its direction list.
func (b *StopBoard) Add(d Departure) {
	if d.DirectionID == Outbound && b.StopSequence == nil {
		seq := int(d.StopSequence)
		b.StopSequence = &seq
	}
	b.Times[d.DirectionID] = append(b.Times[d.DirectionID], d)
}

// Sort orders every direction list by position in the service day, with
// the raw string breaking ties. Unparseable times sort last.
func (b *StopBoard) Sort() {
	for dir, list := range b.Times {
		sort.SliceStable(list, func(i, j int) bool {
			return departureLess(list[i], list[j])
		})
		b.Times[dir] = list
	}
}

func departureLess(a, b Departure) bool {
	at, aErr := ParseArrival(a.ArrivalTime)
	bt, bErr := ParseArrival(b.ArrivalTime)
	switch {
	case aErr != nil && bErr != nil:
		return a.ArrivalTime < b.ArrivalTime
	case aErr != nil:
		return false
	case bErr != nil:
		return true
	}
	if at.ServiceSeconds != bt.ServiceSeconds {
		return at.ServiceSeconds < bt.ServiceSeconds
	}
	return a.ArrivalTime < b.ArrivalTime
}

// Upcoming returns, per direction, the departures whose arrival time of day
// is at or after now's local time of day, keeping the board's order.
// It is recomputed on every call. Departures with malformed arrival times
// are left out and returned separately.
func (b *StopBoard) Upcoming(now time.Time) (map[Direction][]Departure, []*MalformedTimeError) {
	upcoming := make(map[Direction][]Departure, len(b.Times))
	var malformed []*MalformedTimeError
	for _, dir := range Directions {
		list := b.Times[dir]
		kept := make([]Departure, 0, len(list))
		for _, d := range list {
			at, err := ParseArrival(d.ArrivalTime)
			if err != nil {
				var mte *MalformedTimeError
				if errors.As(err, &mte) {
					malformed = append(malformed, mte)
				}
				continue
			}
			if at.NotBefore(now) {
				kept = append(kept, d)
			}
		}
		upcoming[dir] = kept
	}
	return upcoming, malformed
}

// EarliestArrival returns the smallest parseable service-day offset on the
// board across both directions.
func (b *StopBoard) EarliestArrival() (int, bool) {
	best, found := 0, false
	for _, list := range b.Times {
		for _, d := range list {
			at, err := ParseArrival(d.ArrivalTime)
			if err != nil {
				continue
			}
			if !found || at.ServiceSeconds < best {
				best, found = at.ServiceSeconds, true
			}
		}
	}
	return best, found
}

// DepartureBoard maps a route id to its stop boards, ordered by stop sequence.
type DepartureBoard map[string][]*StopBoard

// RouteIDs returns the board's route ids in sorted order.
func (db DepartureBoard) RouteIDs() []string {
	ids := make([]string, 0, len(db))
	for id := range db {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StopBoard returns the board for stopID on routeID, or nil.
func (db DepartureBoard) StopBoard(routeID, stopID string) *StopBoard {
	for _, sb := range db[routeID] {
		if sb.Stop.StopID == stopID {
			return sb
		}
	}
	return nil
}
