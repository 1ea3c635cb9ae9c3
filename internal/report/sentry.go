package report

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SetupSentry initialises the global Sentry client. An empty dsn leaves
// reporting disabled while keeping every capture call safe to use.
func SetupSentry(dsn, env, release string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	sentry.CaptureMessage("Departures board started")
	return nil
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}
