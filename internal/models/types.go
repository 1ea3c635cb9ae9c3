package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const YYYYMMDD = "20060102" // GTFS calendar date format

// serviceDateLayouts lists the date encodings accepted from upstream feeds.
var serviceDateLayouts = []string{
	YYYYMMDD,
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
}

// ServiceDate wraps time.Time to accept the date encodings seen in GTFS feeds
// (e.g., "20250807", "2025-08-07" or a full RFC 3339 timestamp). Only the
// calendar date is significant.
type ServiceDate time.Time

// NewServiceDate builds a ServiceDate for the given calendar day.
func NewServiceDate(year int, month time.Month, day int) ServiceDate {
	return ServiceDate(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseServiceDate parses s using each accepted layout in turn.
func ParseServiceDate(s string) (ServiceDate, error) {
	s = strings.TrimSpace(s)
	for _, layout := range serviceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return NewServiceDate(y, m, d), nil
		}
	}
	return ServiceDate{}, fmt.Errorf("unrecognised service date %q", s)
}

// MarshalJSON serializes the ServiceDate in "YYYYMMDD" format.
func (d ServiceDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(YYYYMMDD))
}

// UnmarshalJSON parses any accepted date encoding into a ServiceDate.
func (d *ServiceDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseServiceDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Time returns the underlying time.Time value of the ServiceDate.
func (d ServiceDate) Time() time.Time {
	return time.Time(d)
}

// IsZero reports whether the date was never set.
func (d ServiceDate) IsZero() bool {
	return time.Time(d).IsZero()
}

// ordinal maps a calendar day to an integer that sorts chronologically,
// ignoring time of day and location.
func ordinal(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// DayFlag is a weekday availability flag. Feeds encode it as 0/1, "0"/"1"
// or a JSON boolean.
type DayFlag bool

// UnmarshalJSON accepts numeric, string and boolean encodings.
func (f *DayFlag) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(bytes.Trim(b, `"`)) {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid day flag %s", b)
	}
	return nil
}

// FlexInt is an integer that may arrive as a JSON number or a numeric string.
type FlexInt int

// UnmarshalJSON accepts 5, "5" and null.
func (i *FlexInt) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if raw == "" || raw == "null" {
		*i = 0
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*i = FlexInt(v)
	return nil
}
