package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// ArrivalTime is a parsed GTFS arrival time.
//
// ServiceSeconds counts from the start of the service day and may exceed one
// day for trips that run past midnight ("25:30:00"). TimeOfDay is the wall
// clock reading after the hour has been normalized back into 0-23.
type ArrivalTime struct {
	Raw            string
	ServiceSeconds int
}

// MalformedTimeError reports an arrival time that cannot be parsed even after
// midnight rollover normalization.
type MalformedTimeError struct {
	Raw string
	Err error
}

func (e *MalformedTimeError) Error() string {
	return fmt.Sprintf("malformed arrival time %q: %v", e.Raw, e.Err)
}

func (e *MalformedTimeError) Unwrap() error {
	return e.Err
}

var (
	errTimeFormat = errors.New("expected H:MM:SS")
	errTimeRange  = errors.New("field out of range")
)

// ParseArrival parses "H:MM:SS" or "HH:MM:SS". Hours of 24 or more are
// normalized once by subtracting 24 and the result must be a valid wall clock
// time; the un-normalized offset is kept for ordering within a service day.
func ParseArrival(raw string) (ArrivalTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 || len(parts[1]) != 2 || len(parts[2]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return ArrivalTime{}, &MalformedTimeError{Raw: raw, Err: errTimeFormat}
	}

	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return ArrivalTime{}, &MalformedTimeError{Raw: raw, Err: errTimeFormat}
		}
		fields[i] = v
	}
	h, m, s := fields[0], fields[1], fields[2]

	clockHour := h
	if clockHour >= 24 {
		clockHour -= 24
	}
	if clockHour > 23 || m > 59 || s > 59 {
		return ArrivalTime{}, &MalformedTimeError{Raw: raw, Err: errTimeRange}
	}

	return ArrivalTime{Raw: raw, ServiceSeconds: h*3600 + m*60 + s}, nil
}

// TimeOfDay is the normalized wall clock offset from local midnight.
func (a ArrivalTime) TimeOfDay() time.Duration {
	return time.Duration(a.ServiceSeconds%secondsPerDay) * time.Second
}

// RollsOver reports whether the raw value was past "24:00:00".
func (a ArrivalTime) RollsOver() bool {
	return a.ServiceSeconds >= secondsPerDay
}

// NotBefore reports whether the arrival's time of day is at or after now's
// local time of day.
func (a ArrivalTime) NotBefore(now time.Time) bool {
	return a.TimeOfDay() >= timeOfDay(now)
}

// Display formats the time of day as "3:04 PM".
func (a ArrivalTime) Display() string {
	return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(a.TimeOfDay()).Format("3:04 PM")
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h*3600+m*60+s) * time.Second
}
