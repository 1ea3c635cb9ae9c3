package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jamespfennell/gtfs"

	"departures.metraboard.org/internal/models"
)

// tripUpdateRecord is one element of the JSON /tripUpdates payload.
type tripUpdateRecord struct {
	ID         string `json:"id"`
	IsDeleted  bool   `json:"is_deleted"`
	TripUpdate struct {
		Trip struct {
			TripID  string `json:"trip_id"`
			RouteID string `json:"route_id"`
		} `json:"trip"`
		StopTimeUpdate []stopTimeUpdateRecord `json:"stop_time_update"`
	} `json:"trip_update"`
}

type stopTimeUpdateRecord struct {
	StopID       string               `json:"stop_id"`
	StopSequence models.FlexInt       `json:"stop_sequence"`
	Arrival      *stopTimeEventRecord `json:"arrival"`
	Departure    *stopTimeEventRecord `json:"departure"`
}

type stopTimeEventRecord struct {
	Delay models.FlexInt `json:"delay"`
	Time  EventTime      `json:"time"`
}

// EventTime is a real-time timestamp as the JSON API sends it: an RFC 3339
// string, a Unix time in seconds, or either of those wrapped as {"low": ...}.
type EventTime time.Time

func (et *EventTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*et = EventTime{}
		return nil
	}

	switch b[0] {
	case '{':
		var wrapped struct {
			Low json.RawMessage `json:"low"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		if len(wrapped.Low) == 0 {
			*et = EventTime{}
			return nil
		}
		return et.UnmarshalJSON(wrapped.Low)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*et = EventTime{}
			return nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			*et = EventTime(time.Unix(secs, 0).UTC())
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid event time %q: %w", s, err)
		}
		*et = EventTime(t)
		return nil
	default:
		secs, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid event time %s: %w", b, err)
		}
		*et = EventTime(time.Unix(secs, 0).UTC())
		return nil
	}
}

// Time returns et as a time.Time.
func (et EventTime) Time() time.Time {
	return time.Time(et)
}

func (r stopTimeEventRecord) toModel() *models.StopTimeEvent {
	return &models.StopTimeEvent{
		DelaySeconds: int(r.Delay),
		Time:         r.Time.Time(),
	}
}

func (r tripUpdateRecord) toModel() models.TripUpdate {
	tu := models.TripUpdate{
		ID:              r.ID,
		IsDeleted:       r.IsDeleted,
		TripID:          r.TripUpdate.Trip.TripID,
		RouteID:         r.TripUpdate.Trip.RouteID,
		StopTimeUpdates: make([]models.StopTimeUpdate, 0, len(r.TripUpdate.StopTimeUpdate)),
	}
	for _, stu := range r.TripUpdate.StopTimeUpdate {
		update := models.StopTimeUpdate{
			StopID:       stu.StopID,
			StopSequence: int(stu.StopSequence),
		}
		if stu.Arrival != nil {
			update.Arrival = stu.Arrival.toModel()
		}
		if stu.Departure != nil {
			update.Departure = stu.Departure.toModel()
		}
		tu.StopTimeUpdates = append(tu.StopTimeUpdates, update)
	}
	return tu
}

// tripUpdatesFromRealtime converts the trips of a parsed GTFS-realtime feed
// into trip updates. Trips that only appear through vehicle positions or
// alerts carry no predictions and are skipped.
func tripUpdatesFromRealtime(rt *gtfs.Realtime) []models.TripUpdate {
	updates := make([]models.TripUpdate, 0, len(rt.Trips))
	for _, trip := range rt.Trips {
		if !trip.IsEntityInMessage || len(trip.StopTimeUpdates) == 0 {
			continue
		}
		tu := models.TripUpdate{
			ID:      trip.ID.ID,
			TripID:  trip.ID.ID,
			RouteID: trip.ID.RouteID,
		}
		for _, stu := range trip.StopTimeUpdates {
			out := models.StopTimeUpdate{
				Arrival:   eventFromRealtime(stu.Arrival),
				Departure: eventFromRealtime(stu.Departure),
			}
			if stu.StopID != nil {
				out.StopID = *stu.StopID
			}
			if stu.StopSequence != nil {
				out.StopSequence = int(*stu.StopSequence)
			}
			tu.StopTimeUpdates = append(tu.StopTimeUpdates, out)
		}
		updates = append(updates, tu)
	}
	return updates
}

func eventFromRealtime(ev *gtfs.StopTimeEvent) *models.StopTimeEvent {
	if ev == nil {
		return nil
	}
	out := &models.StopTimeEvent{}
	if ev.Delay != nil {
		out.DelaySeconds = int(*ev.Delay / time.Second)
	}
	if ev.Time != nil {
		out.Time = ev.Time.UTC()
	}
	return out
}
