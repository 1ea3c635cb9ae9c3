package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"departures.metraboard.org/internal/models"
)

var (
	// ServiceEarliestExpiration is the number of days until the first
	// calendar in the schedule ends.
	ServiceEarliestExpiration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "departures_service_earliest_expiration_days",
		Help: "Days until the earliest calendar end_date in the schedule",
	})

	// ServiceLatestExpiration is the number of days until the last calendar
	// in the schedule ends. Boards go empty once it is negative.
	ServiceLatestExpiration = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "departures_service_latest_expiration_days",
		Help: "Days until the latest calendar end_date in the schedule",
	})
)

// ErrNoCalendars is returned when the schedule has no calendar to measure.
var ErrNoCalendars = errors.New("no calendars found in schedule")

// CheckServiceExpiration records how many days remain until the earliest and
// latest calendar end dates, counted from the service date of now.
func CheckServiceExpiration(calendars []models.Calendar, now time.Time) (int, int, error) {
	if len(calendars) == 0 {
		return 0, 0, ErrNoCalendars
	}

	earliest := calendars[0].EndDate.Time()
	latest := earliest
	for _, cal := range calendars[1:] {
		end := cal.EndDate.Time()
		if end.Before(earliest) {
			earliest = end
		}
		if end.After(latest) {
			latest = end
		}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysUntilEarliest := int(earliest.Sub(today).Hours() / 24)
	daysUntilLatest := int(latest.Sub(today).Hours() / 24)

	ServiceEarliestExpiration.Set(float64(daysUntilEarliest))
	ServiceLatestExpiration.Set(float64(daysUntilLatest))
	return daysUntilEarliest, daysUntilLatest, nil
}
