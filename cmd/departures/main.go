package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"

	"departures.metraboard.org/internal/app"
	"departures.metraboard.org/internal/config"
	"departures.metraboard.org/internal/report"
)

const version = "1.0.0"

func main() {
	var (
		port       = flag.Int("port", 4000, "API server port")
		env        = flag.String("env", "development", "Environment (development|staging|production)")
		configFile = flag.String("config-file", "", "Path to a local JSON or YAML configuration file")
		configURL  = flag.String("config-url", "", "URL to a remote JSON or YAML configuration file")
	)
	flag.Parse()

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := report.SetupSentry(os.Getenv("SENTRY_DSN"), *env, version); err != nil {
		logger.Error("failed to initialize sentry", "error", err)
	}
	defer report.FlushSentry()
	report.ConfigureScope(*env, version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := app.NewPooledClient(10 * time.Second)

	configService := config.NewConfigService(logger, client, 3)
	cfg, err := configService.Load(ctx, *configFile, *configURL, os.Getenv("CONFIG_AUTH_USER"), os.Getenv("CONFIG_AUTH_PASS"))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		report.FlushSentry()
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *port, *env)
	cfg.Source.Username = os.Getenv("METRA_USER")
	cfg.Source.Password = os.Getenv("METRA_PASS")
	if cfg.Source.Kind == config.SourceAPI && (cfg.Source.Username == "" || cfg.Source.Password == "") {
		logger.Warn("METRA_USER or METRA_PASS is not set; API requests will be unauthenticated")
	}

	application := app.New(cfg, logger, client, version)
	application.StartCacheMaintenance(ctx, app.DefaultPurgeInterval)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", srv.Addr,
			"env", cfg.Env,
			"source", cfg.Source.Kind,
			"realtime", cfg.Realtime,
			"tracked_routes", len(cfg.Tracking))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			report.ReportError(err, sentry.LevelFatal)
			report.FlushSentry()
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}
}

// applyFlagOverrides lets flags given on the command line win over the
// configuration document. Unset flags only fill missing values.
func applyFlagOverrides(cfg *config.Config, port int, env string) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["port"] || cfg.Port == 0 {
		cfg.Port = port
	}
	if set["env"] || cfg.Env == "" {
		cfg.Env = env
	}
}
