package geonews

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry configuration for rate-limited HTTP APIs. Tests shrink the delays.
var (
	retryMaxAttempts = 5
	retryBaseDelay   = 5 * time.Second
	retryMaxDelay    = 120 * time.Second
)

// parseRetryAfter parses the Retry-After header value and returns duration
func parseRetryAfter(retryAfter string) time.Duration {
	if retryAfter == "" {
		return 0
	}

	// Try to parse as seconds (numeric value)
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try to parse as HTTP date format
	if retryTime, err := time.Parse(time.RFC1123, retryAfter); err == nil {
		return time.Until(retryTime)
	}

	return 0
}

// doWithRetry performs a GET request and retries on 429 responses, honoring
// Retry-After when present and falling back to exponential backoff. It returns
// the final response body for any non-429 status.
func doWithRetry(ctx context.Context, client *http.Client, url string) (int, []byte, error) {
	for attempt := 0; attempt <= retryMaxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to send request: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, body, nil
		}

		if attempt == retryMaxAttempts {
			return resp.StatusCode, nil, fmt.Errorf("rate limit exceeded after %d retries: %s", retryMaxAttempts, string(body))
		}

		retryAfter := resp.Header.Get("Retry-After")
		delay := parseRetryAfter(retryAfter)
		if delay <= 0 {
			delay = retryBaseDelay * time.Duration(1<<attempt)
		}
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}

		log.Warn().
			Int("attempt", attempt+1).
			Int("max_attempts", retryMaxAttempts+1).
			Dur("delay", delay).
			Str("retry_after", retryAfter).
			Msg("Rate limit hit, retrying")

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	// This should never be reached due to the loop logic
	return 0, nil, fmt.Errorf("unexpected error in retry loop")
}
