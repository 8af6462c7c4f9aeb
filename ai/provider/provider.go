// Package provider defines the shared error type and HTTP call policy for
// remote provider APIs (chat completion, text-to-speech, image generation).
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Error represents a failure of a remote provider call: non-2xx status,
// timeout, or a malformed response payload.
type Error struct {
	Status  int // HTTP status, 0 when the call never reached the provider
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the call can be retried.
func (e *Error) IsRetryable() bool {
	switch {
	case e.Status == 0:
		return true // network failure or timeout
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// Errorf creates a provider error without an HTTP status.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// StatusError creates a provider error from an HTTP status.
func StatusError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap creates a provider error wrapping an underlying failure.
func Wrap(err error, message string) *Error {
	return &Error{Message: message, Err: err}
}

// AsError extracts a provider error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// retryBackoff is the pause before the single retry attempt.
const retryBackoff = 500 * time.Millisecond

// Do executes an HTTP request with a single retry on transient failures.
// The build function is called per attempt so the request body can be recreated.
// The caller owns the response body.
func Do(ctx context.Context, client *http.Client, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr *Error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			slog.Debug("provider: retrying request", "backoff", retryBackoff)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return nil, Wrap(ctx.Err(), "request cancelled")
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, Wrap(err, "failed to build request")
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = Wrap(err, "request failed")
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		resp.Body.Close()
		lastErr = StatusError(resp.StatusCode, http.StatusText(resp.StatusCode))
		if !lastErr.IsRetryable() {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
