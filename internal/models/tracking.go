package models

import "sort"

// TrackingConfig is the allow-list of routes and the stops of interest on
// them. An empty config tracks every route; an empty stop list for a route
// tracks every stop on that route. Values are immutable once built.
type TrackingConfig struct {
	routes map[string]map[string]struct{}
}

// NewTrackingConfig copies m into a TrackingConfig.
func NewTrackingConfig(m map[string][]string) TrackingConfig {
	routes := make(map[string]map[string]struct{}, len(m))
	for routeID, stopIDs := range m {
		stops := make(map[string]struct{}, len(stopIDs))
		for _, stopID := range stopIDs {
			if stopID != "" {
				stops[stopID] = struct{}{}
			}
		}
		routes[routeID] = stops
	}
	return TrackingConfig{routes: routes}
}

// IsEmpty reports whether the config tracks all routes.
func (tc TrackingConfig) IsEmpty() bool {
	return len(tc.routes) == 0
}

// TracksRoute reports whether trips on routeID may enter a board.
func (tc TrackingConfig) TracksRoute(routeID string) bool {
	if tc.IsEmpty() {
		return true
	}
	_, ok := tc.routes[routeID]
	return ok
}

// TracksStop reports whether stopID is tracked on routeID.
func (tc TrackingConfig) TracksStop(routeID, stopID string) bool {
	if tc.IsEmpty() {
		return true
	}
	stops, ok := tc.routes[routeID]
	if !ok {
		return false
	}
	if len(stops) == 0 {
		return true
	}
	_, ok = stops[stopID]
	return ok
}

// TracksStopOnAnyRoute reports whether some tracked route tracks stopID.
func (tc TrackingConfig) TracksStopOnAnyRoute(stopID string) bool {
	if tc.IsEmpty() {
		return true
	}
	for routeID := range tc.routes {
		if tc.TracksStop(routeID, stopID) {
			return true
		}
	}
	return false
}

// RouteIDs returns the tracked route ids in sorted order.
// It is empty when every route is tracked.
func (tc TrackingConfig) RouteIDs() []string {
	ids := make([]string, 0, len(tc.routes))
	for id := range tc.routes {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// StopIDs returns the tracked stops for routeID in sorted order.
func (tc TrackingConfig) StopIDs(routeID string) []string {
	ids := make([]string, 0, len(tc.routes[routeID]))
	for id := range tc.routes[routeID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Restrict narrows the config to routeIDs. Routes the config does not track
// are ignored, so the result is always a subset of tc. An empty routeIDs
// returns tc unchanged.
func (tc TrackingConfig) Restrict(routeIDs ...string) TrackingConfig {
	if len(routeIDs) == 0 {
		return tc
	}
	m := make(map[string][]string, len(routeIDs))
	for _, routeID := range routeIDs {
		if !tc.TracksRoute(routeID) {
			continue
		}
		m[routeID] = tc.StopIDs(routeID)
	}
	if len(m) == 0 {
		// Nothing in routeIDs is tracked; keep a sentinel so the result
		// does not collapse into "track everything".
		return TrackingConfig{routes: map[string]map[string]struct{}{"": {}}}
	}
	return NewTrackingConfig(m)
}

// SubsetOf reports whether every (route, stop) pair tracked by tc is also
// tracked by other.
func (tc TrackingConfig) SubsetOf(other TrackingConfig) bool {
	if other.IsEmpty() {
		return true
	}
	if tc.IsEmpty() {
		return false
	}
	for routeID, stops := range tc.routes {
		if routeID == "" {
			continue
		}
		if !other.TracksRoute(routeID) {
			return false
		}
		if len(stops) == 0 {
			if len(other.routes[routeID]) != 0 {
				return false
			}
			continue
		}
		for stopID := range stops {
			if !other.TracksStop(routeID, stopID) {
				return false
			}
		}
	}
	return true
}

// Map returns a copy of the config as route id to sorted stop ids.
func (tc TrackingConfig) Map() map[string][]string {
	m := make(map[string][]string, len(tc.routes))
	for _, routeID := range tc.RouteIDs() {
		m[routeID] = tc.StopIDs(routeID)
	}
	return m
}
