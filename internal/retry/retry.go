// Package retry implements the provider-call retry policy: up to three
// attempts, Retry-After-honoring backoff on 429, exponential backoff on
// 5xx, immediate failure on any other 4xx.
package retry

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sacenox/kanata/internal/kerrors"
)

const (
	maxAttempts       = 3
	defaultRetryAfter = 5 * time.Second
)

// Do wraps a closure that performs one HTTP request and returns its
// response (and/or an error if the request itself could not be sent, e.g.
// a connection failure). It applies the attempt budget and backoff
// sleeps, returning the first 2xx response, or an error once the budget
// is exhausted: a *kerrors.ModelError for a 429 or 5xx status, a
// *kerrors.Http when the last attempt could not be sent. Connection
// failures are retried without a sleep.
//
// On failure no response is returned. For a 5xx or non-429 4xx status
// the body is read into the ModelError's message; an exhausted 429
// carries the message "rate limited". On a 2xx result the body is
// returned unread for the caller to stream.
func Do(ctx context.Context, attempt func(ctx context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		resp, err := attempt(ctx)
		if err != nil {
			lastErr = &kerrors.Http{Underlying: err}
			if n == maxAttempts {
				return nil, lastErr
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := parseRetryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if n == maxAttempts {
				return nil, &kerrors.ModelError{Status: resp.StatusCode, Message: "rate limited"}
			}
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode >= 500:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &kerrors.ModelError{Status: resp.StatusCode, Message: string(body)}
			if n == maxAttempts {
				return nil, lastErr
			}
			if err := sleep(ctx, backoff(n)); err != nil {
				return nil, err
			}
			continue

		default:
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &kerrors.ModelError{Status: resp.StatusCode, Message: string(body)}
		}
	}
	return nil, lastErr
}

// backoff returns 2^(attempt-1) seconds: 1s, 2s, 4s for attempts 1, 2, 3.
func backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
