package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kline-relay/src/logger"
)

// ErrProviderDisabled is returned by every provider call when no Binance
// credentials are configured.
var ErrProviderDisabled = errors.New("binance service is not configured on the server")

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type RelayError struct {
	Message string
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ RelayError }
type NetworkError struct{ RelayError }
type UpstreamError struct{ RelayError }
type DatabaseError struct{ RelayError }
type ValidationError struct{ RelayError }

func NewConfigurationError(msg string, cause error) error {
	return &ConfigurationError{RelayError{Message: msg, Cause: cause}}
}

func NewNetworkError(msg string, cause error) error {
	return &NetworkError{RelayError{Message: msg, Cause: cause}}
}

func NewUpstreamError(msg string, cause error) error {
	return &UpstreamError{RelayError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{RelayError{Message: msg, Cause: cause}}
}

func NewValidationError(msg string) error {
	return &ValidationError{RelayError{Message: msg}}
}

// -----------------------------------------------------------------------------

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("bad status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("bad status %d", e.StatusCode)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so RetryWithBackoff stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to attempts times, doubling baseDelay after each
// failure. It stops early on a Permanent error or when ctx is done.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, operation string, attempts int, baseDelay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("%s failed (attempt %d/%d): %v. Retrying in %v", operation, attempt+1, attempts, err, delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}
