package core

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// UpstreamError is a network failure or non-2xx response from an external
// system. It is fatal to the adapter call that raised it.
type UpstreamError struct {
	System string // "goflow" | "magento"
	Status int    // HTTP status, 0 for transport failures
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s upstream error %d: %v", e.System, e.Status, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.System, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError is a malformed payload from one source. It must be isolated to
// that source: the sibling source's results still merge.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PreconditionError rejects a run whose guard or cooldown has not cleared.
// It is retryable by the caller and never a crash.
type PreconditionError struct {
	Reason     string
	RetryAfter time.Duration // zero when unknown
}

func (e *PreconditionError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry in %s)", e.Reason, e.RetryAfter.Round(time.Second))
	}
	return e.Reason
}

// NotFoundError is the caller-visible 404-equivalent for a missing
// purchase order or delivery.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// IsThrottled reports whether err is an upstream 429. Throttling is an
// expected condition: runs that hit it end quietly without a failure record.
func IsThrottled(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Status == http.StatusTooManyRequests
}

// IsPrecondition reports whether err is a rejectable retry-later condition.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
