// Package clock provides the time source used for cache expiry and for
// deciding which departures are still ahead of "now".
package clock

import (
	"sync"
	"time"
	_ "time/tzdata" // zone database for images without /usr/share/zoneinfo
)

// Clock provides an abstraction for time operations.
// Use RealClock in production and MockClock in tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock implements Clock and provides a controllable, thread-safe time for tests.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
}

// NewMockClock creates a new MockClock set to the specified time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Set changes the mock clock's current time.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the mock clock by the specified duration.
// Negative durations move it backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// LocalNow returns c.Now() expressed in loc. A nil loc leaves the time as-is.
func LocalNow(c Clock, loc *time.Location) time.Time {
	now := c.Now()
	if loc == nil {
		return now
	}
	return now.In(loc)
}

// ServiceDate truncates t to midnight of its calendar day in t's location.
func ServiceDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
