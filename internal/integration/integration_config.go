//go:build integration

package integration

import (
	"fmt"
	"os"

	"departures.metraboard.org/internal/config"
)

// loadIntegrationConfig reads a departures configuration document and fills
// the source credentials from METRA_USER and METRA_PASS.
func loadIntegrationConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration config: %w", err)
	}
	cfg.Source.Username = os.Getenv("METRA_USER")
	cfg.Source.Password = os.Getenv("METRA_PASS")
	return cfg, nil
}
