package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"

	"departures.metraboard.org/internal/report"
	"departures.metraboard.org/internal/utils"
)

// ConfigService holds dependencies and provides config operations.
type ConfigService struct {
	Logger     *slog.Logger
	Client     *http.Client
	MaxRetries int
}

// NewConfigService creates a new ConfigService instance with the provided logger and HTTP client.
func NewConfigService(logger *slog.Logger, client *http.Client, maxRetries int) *ConfigService {
	return &ConfigService{
		Logger:     logger,
		Client:     client,
		MaxRetries: maxRetries,
	}
}

// Load reads the configuration from exactly one of filePath or url.
func (cs *ConfigService) Load(ctx context.Context, filePath, url, authUser, authPass string) (*Config, error) {
	if err := ValidateConfigFlags(&filePath, &url); err != nil {
		return nil, err
	}
	if filePath != "" {
		return LoadConfigFromFile(filePath)
	}
	cfg, err := LoadConfigFromURL(ctx, cs.Client, url, authUser, authPass, cs.MaxRetries)
	if err != nil {
		return nil, err
	}
	cs.Logger.Info("loaded remote configuration", "config_url", url, "tracked_routes", len(cfg.Tracking))
	return cfg, nil
}

// exported helper functions

// LoadConfigFromFile loads and validates a configuration file.
func LoadConfigFromFile(filePath string) (*Config, error) {
	cfg, err := loadConfigFromFile(filePath)
	if err != nil {
		err := fmt.Errorf("failed to load config from file %s: %w", filePath, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromURL loads and validates a remote configuration document.
func LoadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (*Config, error) {
	cfg, err := loadConfigFromURL(ctx, client, url, authUser, authPass, maxRetries)
	if err != nil {
		err := fmt.Errorf("failed to load config from URL %s: %w", url, err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, err
	}
	return cfg, nil
}
