//go:build integration

package integration

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"departures.metraboard.org/internal/config"
)

var integrationConfigPath string

func init() {
	flag.StringVar(&integrationConfigPath, "integration-config", "", "Path to integration configuration file")
}

var integrationConfig *config.Config

func TestMain(m *testing.M) {
	flag.Parse()

	if integrationConfigPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -integration-config flag is required for integration tests")
		os.Exit(1)
	}

	cfg, err := loadIntegrationConfig(integrationConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	integrationConfig = cfg

	os.Exit(m.Run())
}
