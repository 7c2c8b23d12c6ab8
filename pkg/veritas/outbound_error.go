package veritas

import (
	"errors"
	"fmt"
	"time"
)

// OutboundErrorClass buckets platform failures for retry decisions.
type OutboundErrorClass string

const (
	// OutboundErrorRateLimited means the platform asked the sender to slow
	// down. RetryAfter carries the platform-suggested wait when known.
	OutboundErrorRateLimited OutboundErrorClass = "rate_limited"
	// OutboundErrorNotModified means an edit carried identical content.
	OutboundErrorNotModified OutboundErrorClass = "not_modified"
	// OutboundErrorBadRequest means the request was rejected as invalid.
	OutboundErrorBadRequest OutboundErrorClass = "bad_request"
	// OutboundErrorUnavailable means a transient platform or network failure.
	OutboundErrorUnavailable OutboundErrorClass = "unavailable"
	// OutboundErrorUnknown is the fallback class.
	OutboundErrorUnknown OutboundErrorClass = "unknown"
)

// OutboundError wraps a platform failure with a retry classification.
type OutboundError struct {
	Class      OutboundErrorClass
	RetryAfter time.Duration
	Err        error
}

// Error implements error.
func (e *OutboundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("outbound %s", e.Class)
	}
	return fmt.Sprintf("outbound %s: %v", e.Class, e.Err)
}

// Unwrap exposes the platform error.
func (e *OutboundError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying.
func (e *OutboundError) Retryable() bool {
	switch e.Class {
	case OutboundErrorRateLimited, OutboundErrorUnavailable:
		return true
	default:
		return false
	}
}

// AsOutboundError extracts an OutboundError from an error chain.
func AsOutboundError(err error) (*OutboundError, bool) {
	var oe *OutboundError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
