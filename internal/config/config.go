package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"departures.metraboard.org/internal/models"
)

const (
	DefaultTimezone = "America/Chicago"
	DefaultBaseURL  = "https://gtfsapi.metrarail.com/gtfs"

	SourceAPI    = "api"
	SourceBundle = "bundle"

	RealtimeJSON     = "json"
	RealtimeProtobuf = "protobuf"
)

// SourceConfig describes where schedule data comes from.
type SourceConfig struct {
	Kind               string  `json:"kind" yaml:"kind" validate:"oneof=api bundle"`
	BaseURL            string  `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	BundleURL          string  `json:"bundle_url" yaml:"bundle_url" validate:"omitempty,url"`
	RealtimeFormat     string  `json:"realtime_format" yaml:"realtime_format" validate:"oneof=json protobuf"`
	RateLimitPerSecond float64 `json:"rate_limit_per_second" yaml:"rate_limit_per_second" validate:"gte=0"`
	Burst              int     `json:"burst" yaml:"burst" validate:"gte=0"`
	MaxRetries         int     `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`

	// Credentials come from the environment, never from the document.
	Username string `json:"-" yaml:"-"`
	Password string `json:"-" yaml:"-"`
}

// TTLSeconds overrides the cache lifetime of each schedule accessor.
// Zero keeps the built-in default.
type TTLSeconds struct {
	Routes      int `json:"routes" yaml:"routes" validate:"gte=0"`
	Stops       int `json:"stops" yaml:"stops" validate:"gte=0"`
	Calendars   int `json:"calendars" yaml:"calendars" validate:"gte=0"`
	Trips       int `json:"trips" yaml:"trips" validate:"gte=0"`
	StopTimes   int `json:"stop_times" yaml:"stop_times" validate:"gte=0"`
	TripUpdates int `json:"trip_updates" yaml:"trip_updates" validate:"gte=0"`
	Bundle      int `json:"bundle" yaml:"bundle" validate:"gte=0"`
}

// Seconds converts n to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Config holds all the configuration settings for our application.
// It is built once at startup and not modified afterwards.
type Config struct {
	Port     int                 `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Env      string              `json:"env" yaml:"env"`
	Timezone string              `json:"timezone" yaml:"timezone" validate:"required"`
	Source   SourceConfig        `json:"source" yaml:"source"`
	Realtime bool                `json:"realtime" yaml:"realtime"`
	Tracking map[string][]string `json:"tracking" yaml:"tracking" validate:"dive,keys,required,endkeys,dive,required"`
	TTL      TTLSeconds          `json:"ttl" yaml:"ttl"`

	location *time.Location
}

// NewConfig creates a Config with defaults applied.
func NewConfig(port int, env string, tracking map[string][]string) *Config {
	cfg := &Config{
		Port:     port,
		Env:      env,
		Tracking: tracking,
	}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceAPI
	}
	if cfg.Source.Kind == SourceAPI && cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = DefaultBaseURL
	}
	if cfg.Source.RealtimeFormat == "" {
		cfg.Source.RealtimeFormat = RealtimeJSON
	}
	if cfg.Source.Burst == 0 {
		cfg.Source.Burst = 1
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and loads the configured time zone.
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch cfg.Source.Kind {
	case SourceAPI:
		if cfg.Source.BaseURL == "" {
			return errors.New("invalid configuration: source.base_url is required for the api source")
		}
	case SourceBundle:
		if cfg.Source.BundleURL == "" {
			return errors.New("invalid configuration: source.bundle_url is required for the bundle source")
		}
		if cfg.Realtime {
			return errors.New("invalid configuration: realtime updates need the api source")
		}
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("invalid configuration: timezone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc
	return nil
}

// Location returns the service time zone. It is UTC until Validate succeeds.
func (cfg *Config) Location() *time.Location {
	if cfg.location == nil {
		return time.UTC
	}
	return cfg.location
}

// TrackingConfig returns the route and stop allow-list as an immutable value.
func (cfg *Config) TrackingConfig() models.TrackingConfig {
	return models.NewTrackingConfig(cfg.Tracking)
}
