package board

import "departures.metraboard.org/internal/models"

// ArrivalTime and MalformedTimeError live in models so StopBoard.Upcoming
// can parse without importing this package.
type (
	ArrivalTime        = models.ArrivalTime
	MalformedTimeError = models.MalformedTimeError
)

// ParseArrival parses a GTFS arrival time. See models.ParseArrival.
func ParseArrival(raw string) (ArrivalTime, error) {
	return models.ParseArrival(raw)
}
