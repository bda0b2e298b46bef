package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// retryableError marks a failure worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// transientMarkers are fragments of provider error text for rate limits,
// overload and 5xx responses. langchaingo surfaces these as plain errors.
var transientMarkers = []string{
	"429", "rate limit", "rate_limit", "too many requests",
	"500", "502", "503", "504", "overloaded", "server error",
	"connection reset", "eof",
}

// isRetryableError reports whether err is transient. Cancellation never is.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ErrOffline is returned by Offline.
var ErrOffline = errors.New("llm client is offline")

// Offline is a Client that never reaches a backend. Dry runs use it so an
// estimate needs no API key.
type Offline struct{}

// Complete always fails with ErrOffline.
func (Offline) Complete(context.Context, string, string) (string, error) {
	return "", ErrOffline
}
