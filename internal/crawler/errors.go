package crawler

import (
	"context"
	"errors"
)

// Sentinel errors for categorizing per-item failures. Every error returned by
// a Fetcher, the content processor or an IndexWriter wraps one of these.
var (
	ErrMalformedURL  = errors.New("malformed url")
	ErrNetwork       = errors.New("network failure")
	ErrHTTPStatus    = errors.New("non-success http status")
	ErrRedirectLimit = errors.New("redirect limit exceeded")
	ErrPersistence   = errors.New("persistence failure")
	ErrEmptyContent  = errors.New("empty content")
)

// ErrorKind maps err to a stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	// Checked first: canceled and timed-out fetches are also network failures.
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedURL):
		return "malformed_url"
	case errors.Is(err, ErrRedirectLimit):
		return "redirect_limit"
	case errors.Is(err, ErrHTTPStatus):
		return "http_status"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	default:
		return "unknown"
	}
}
