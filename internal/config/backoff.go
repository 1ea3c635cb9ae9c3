package config

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	BASE_BACKOFF   = 1 * time.Second
	MAX_BACKOFF    = 2 * time.Minute
	BACKOFF_FACTOR = 2.0
	JITTER_FACTOR  = 0.5
)

// DoWithBackoff sends req with client, retrying transport errors, 429 and
// 5xx responses with exponential backoff and jitter. A maxRetries of zero
// retries until ctx is done. The request is re-issued with ctx attached, so
// cancellation interrupts both the call and the wait between attempts.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	delay := BASE_BACKOFF
	var lastErr error

	for attempt := 0; maxRetries == 0 || attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(withJitter(delay))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("giving up after %d attempts: %w (last error: %v)", attempt, ctx.Err(), lastErr)
			case <-timer.C:
			}
			delay = calculateNewBackoffDelay(delay)
		}

		resp, err := client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("giving up after %d attempts: %w", attempt+1, ctx.Err())
			}
			lastErr = err
			continue
		}
		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("max retries exceeded (%d): %w", maxRetries, lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func withJitter(backoff time.Duration) time.Duration {
	jitter := time.Duration(rand.Float64() * float64(backoff) * JITTER_FACTOR)
	backoff += jitter
	if backoff > MAX_BACKOFF {
		backoff = MAX_BACKOFF
	}
	return backoff
}

func calculateNewBackoffDelay(backoffDelay time.Duration) time.Duration {
	backoffDelay *= BACKOFF_FACTOR
	if backoffDelay >= MAX_BACKOFF {
		backoffDelay = MAX_BACKOFF
	}
	return backoffDelay
}
