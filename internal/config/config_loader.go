package config

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/getsentry/sentry-go"
	"gopkg.in/yaml.v3"

	"departures.metraboard.org/internal/report"
	"departures.metraboard.org/internal/utils"
)

// ValidateConfigFlags ensures that only one configuration source is specified:
// either a config file "--config-file", a remote config URL "--config-url".
//
// Returns an error if more than one input method is specified.
func ValidateConfigFlags(configFile, configURL *string) error {
	if *configFile == "" && *configURL == "" {
		return fmt.Errorf("no configuration provided, either --config-file or --config-url must be specified")
	}
	if (*configFile != "" && *configURL != "") || (*configFile != "" && len(flag.Args()) > 0) || (*configURL != "" && len(flag.Args()) > 0) {
		return fmt.Errorf("only one of --config-file or --config-url can be specified")
	}
	return nil
}

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// detectFormat picks the document format from a file extension or a
// Content-Type header, defaulting to JSON.
func detectFormat(name, contentType string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".json":
		return formatJSON
	}
	if strings.Contains(strings.ToLower(contentType), "yaml") {
		return formatYAML
	}
	return formatJSON
}

// parseConfig decodes a JSON or YAML document, applies defaults and validates
// the result.
func parseConfig(data []byte, format string) (*Config, error) {
	cfg := &Config{}
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFromFile reads a JSON or YAML configuration document from disk.
//
// On error, it reports issues to Sentry and returns a descriptive error.
func loadConfigFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := parseConfig(data, detectFormat(filePath, ""))
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("file_path", filePath),
			Level: sentry.LevelError,
		})
		return nil, err
	}

	return cfg, nil
}

// loadConfigFromURL fetches a configuration document from a remote HTTP(S)
// endpoint, using the provided client and optional basic authentication.
//
// Transient failures are retried with DoWithBackoff. Errors are reported to
// Sentry for observability.
func loadConfigFromURL(ctx context.Context, client *http.Client, url, authUser, authPass string, maxRetries int) (*Config, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	if authUser != "" && authPass != "" {
		req.SetBasicAuth(authUser, authPass)
	}

	resp, err := DoWithBackoff(ctx, client, req, maxRetries)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, fmt.Errorf("failed to fetch remote config: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("remote config returned status: %d", resp.StatusCode)
		report.ReportErrorWithSentryOptions(statusErr, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, statusErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, fmt.Errorf("failed to read remote config: %w", err)
	}

	cfg, err := parseConfig(data, detectFormat(req.URL.Path, resp.Header.Get("Content-Type")))
	if err != nil {
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("config_url", url),
			Level: sentry.LevelError,
		})
		return nil, err
	}

	return cfg, nil
}
