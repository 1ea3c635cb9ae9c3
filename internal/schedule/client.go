// Package schedule exposes memoized, filtered views of the remote schedule.
// It is the only package that calls a feed.Source.
package schedule

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"departures.metraboard.org/internal/cache"
	"departures.metraboard.org/internal/clock"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/feed"
	"departures.metraboard.org/internal/metrics"
	"departures.metraboard.org/internal/models"
	"departures.metraboard.org/internal/utils"
)

// Cache key bases.
const (
	keyRoutes      = "routes"
	keyStops       = "stops"
	keyCalendars   = "calendars"
	keyTrips       = "trips"
	keyStopTimes   = "stop_times"
	keyTripUpdates = "trip_updates"
)

// TTLs holds the cache lifetime of each accessor.
type TTLs struct {
	Routes      time.Duration
	Stops       time.Duration
	Calendars   time.Duration
	Trips       time.Duration
	StopTimes   time.Duration
	TripUpdates time.Duration
}

// DefaultTTLs returns the built-in lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		Routes:      300 * time.Second,
		Stops:       300 * time.Second,
		Calendars:   1440 * time.Second,
		Trips:       300 * time.Second,
		StopTimes:   300 * time.Second,
		TripUpdates: 30 * time.Second,
	}
}

// TTLsFromConfig overrides the defaults with every non-zero value of s.
func TTLsFromConfig(s config.TTLSeconds) TTLs {
	ttls := DefaultTTLs()
	override := func(dst *time.Duration, secs int) {
		if secs > 0 {
			*dst = config.Seconds(secs)
		}
	}
	override(&ttls.Routes, s.Routes)
	override(&ttls.Stops, s.Stops)
	override(&ttls.Calendars, s.Calendars)
	override(&ttls.Trips, s.Trips)
	override(&ttls.StopTimes, s.StopTimes)
	override(&ttls.TripUpdates, s.TripUpdates)
	return ttls
}

func (t TTLs) withDefaults() TTLs {
	d := DefaultTTLs()
	for _, pair := range []struct{ dst, def *time.Duration }{
		{&t.Routes, &d.Routes},
		{&t.Stops, &d.Stops},
		{&t.Calendars, &d.Calendars},
		{&t.Trips, &d.Trips},
		{&t.StopTimes, &d.StopTimes},
		{&t.TripUpdates, &d.TripUpdates},
	} {
		if *pair.dst <= 0 {
			*pair.dst = *pair.def
		}
	}
	return t
}

// Options configures a Client. Zero values fall back to defaults: the real
// clock, UTC, track everything and DefaultTTLs.
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Tracking models.TrackingConfig
	TTLs     TTLs
	Logger   *slog.Logger
}

// Client wraps a feed.Source with the TTL cache. Results are filtered by the
// construction-time tracking config before they are cached, so callers can
// only narrow them further.
type Client struct {
	source   feed.Source
	cache    *cache.Cache
	clock    clock.Clock
	location *time.Location
	tracking models.TrackingConfig
	ttls     TTLs
	logger   *slog.Logger
}

// NewClient returns a Client reading from source and memoizing into c.
func NewClient(source feed.Source, c *cache.Cache, opts Options) *Client {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = cache.New(opts.Clock)
	}
	return &Client{
		source:   source,
		cache:    c,
		clock:    opts.Clock,
		location: opts.Location,
		tracking: opts.Tracking,
		ttls:     opts.TTLs.withDefaults(),
		logger:   opts.Logger,
	}
}

// Tracking returns the construction-time tracking config.
func (c *Client) Tracking() models.TrackingConfig {
	return c.tracking
}

// Location returns the service time zone.
func (c *Client) Location() *time.Location {
	return c.location
}

// Now returns the current time in the service time zone.
func (c *Client) Now() time.Time {
	return clock.LocalNow(c.clock, c.location)
}

// Routes returns the tracked routes by id, or every route when the
// tracking config is empty.
func (c *Client) Routes(ctx context.Context) (map[string]models.Route, error) {
	return cache.Memoized(ctx, c.cache, keyRoutes, nil, c.ttls.Routes, func(ctx context.Context) (map[string]models.Route, error) {
		routes, err := c.source.FetchRoutes(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]models.Route, len(routes))
		for _, r := range routes {
			if c.tracking.TracksRoute(r.RouteID) {
				byID[r.RouteID] = r
			}
		}
		c.logger.Debug("fetched routes", "fetched", len(routes), "kept", len(byID))
		return byID, nil
	})
}

// Stops returns every stop by id.
func (c *Client) Stops(ctx context.Context) (map[string]models.Stop, error) {
	return cache.Memoized(ctx, c.cache, keyStops, nil, c.ttls.Stops, func(ctx context.Context) (map[string]models.Stop, error) {
		stops, err := c.source.FetchStops(ctx)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]models.Stop, len(stops))
		for _, s := range stops {
			byID[s.StopID] = s
		}
		c.logger.Debug("fetched stops", "fetched", len(stops))
		return byID, nil
	})
}

// ServiceDate returns midnight of t's calendar day in the service time zone.
func (c *Client) ServiceDate(t time.Time) time.Time {
	if c.location != nil {
		t = t.In(c.location)
	}
	return clock.ServiceDate(t)
}

// Calendars returns the calendars active on today's service date.
func (c *Client) Calendars(ctx context.Context) ([]models.Calendar, error) {
	return c.CalendarsOn(ctx, c.Now())
}

// CalendarsOn returns the calendars active on day's service date. The cache
// key carries the date, so requests on either side of midnight never share
// a list.
func (c *Client) CalendarsOn(ctx context.Context, day time.Time) ([]models.Calendar, error) {
	date := c.ServiceDate(day)
	args := []string{date.Format(models.YYYYMMDD)}
	return cache.Memoized(ctx, c.cache, keyCalendars, args, c.ttls.Calendars, func(ctx context.Context) ([]models.Calendar, error) {
		calendars, err := c.source.FetchCalendars(ctx)
		if err != nil {
			return nil, err
		}
		if _, latest, err := metrics.CheckServiceExpiration(calendars, date); err != nil {
			c.logger.Warn("cannot measure schedule expiration", "error", err)
		} else if latest < 0 {
			c.logger.Warn("every calendar in the schedule has expired", "days_since", -latest)
		}
		active := make([]models.Calendar, 0, len(calendars))
		for _, cal := range calendars {
			if cal.ActiveOn(date) {
				active = append(active, cal)
			}
		}
		c.logger.Debug("fetched calendars", "fetched", len(calendars), "active", len(active), "service_date", args[0])
		return active, nil
	})
}

// ActiveServiceIDs returns the sorted service ids running today.
func (c *Client) ActiveServiceIDs(ctx context.Context) ([]string, error) {
	calendars, err := c.Calendars(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(calendars))
	for _, cal := range calendars {
		ids = append(ids, cal.ServiceID)
	}
	return utils.SortedUnique(ids), nil
}

// Trips returns the trips on tracked routes whose service id is in
// serviceIDs, keyed by trip id.
func (c *Client) Trips(ctx context.Context, serviceIDs []string) (map[string]models.Trip, error) {
	return cache.Memoized(ctx, c.cache, keyTrips, setArgs(serviceIDs), c.ttls.Trips, func(ctx context.Context) (map[string]models.Trip, error) {
		trips, err := c.source.FetchTrips(ctx)
		if err != nil {
			return nil, err
		}
		services := utils.StringSet(serviceIDs)
		byID := make(map[string]models.Trip)
		for _, t := range trips {
			if _, ok := services[t.ServiceID]; !ok {
				continue
			}
			if !c.tracking.TracksRoute(t.RouteID) {
				continue
			}
			byID[t.TripID] = t
		}
		c.logger.Debug("fetched trips", "fetched", len(trips), "kept", len(byID))
		return byID, nil
	})
}

// StopTimes returns the stop times of tripIDs grouped by stop id. Each
// group keeps the source order.
func (c *Client) StopTimes(ctx context.Context, tripIDs []string) (map[string][]models.StopTime, error) {
	return cache.Memoized(ctx, c.cache, keyStopTimes, setArgs(tripIDs), c.ttls.StopTimes, func(ctx context.Context) (map[string][]models.StopTime, error) {
		stopTimes, err := c.source.FetchStopTimes(ctx)
		if err != nil {
			return nil, err
		}
		trips := utils.StringSet(tripIDs)
		byStop := make(map[string][]models.StopTime)
		kept := 0
		for _, st := range stopTimes {
			if _, ok := trips[st.TripID]; !ok {
				continue
			}
			byStop[st.StopID] = append(byStop[st.StopID], st)
			kept++
		}
		c.logger.Debug("fetched stop times", "fetched", len(stopTimes), "kept", kept, "stops", len(byStop))
		return byStop, nil
	})
}

// TripUpdates returns the live updates for tripIDs. Deleted updates are
// skipped, stop updates are narrowed to the tracked stops of the update's
// route, and updates left without stop updates are dropped.
func (c *Client) TripUpdates(ctx context.Context, tripIDs []string) ([]models.TripUpdate, error) {
	return cache.Memoized(ctx, c.cache, keyTripUpdates, setArgs(tripIDs), c.ttls.TripUpdates, func(ctx context.Context) ([]models.TripUpdate, error) {
		updates, err := c.source.FetchTripUpdates(ctx)
		if err != nil {
			return nil, err
		}
		trips := utils.StringSet(tripIDs)
		kept := make([]models.TripUpdate, 0)
		for _, tu := range updates {
			if tu.IsDeleted {
				continue
			}
			if _, ok := trips[tu.TripID]; !ok {
				continue
			}
			filtered := c.filterStopTimeUpdates(tu)
			if len(filtered.StopTimeUpdates) == 0 {
				continue
			}
			kept = append(kept, filtered)
		}
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].TripID < kept[j].TripID })
		c.logger.Debug("fetched trip updates", "fetched", len(updates), "kept", len(kept))
		return kept, nil
	})
}

// filterStopTimeUpdates returns a copy of tu holding only tracked stops.
// An update whose route is not in the tracking config keeps every stop.
func (c *Client) filterStopTimeUpdates(tu models.TripUpdate) models.TripUpdate {
	out := tu
	out.StopTimeUpdates = make([]models.StopTimeUpdate, 0, len(tu.StopTimeUpdates))
	narrow := c.tracking.TracksRoute(tu.RouteID)
	for _, stu := range tu.StopTimeUpdates {
		if narrow && !c.tracking.TracksStop(tu.RouteID, stu.StopID) {
			continue
		}
		out.StopTimeUpdates = append(out.StopTimeUpdates, stu)
	}
	return out
}

// setArgs makes sure an id set is never nil, so an empty set gets its own
// cache key instead of the fixed one.
func setArgs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
