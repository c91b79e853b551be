package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind classifies provider failures so callers decide on retries by
// type instead of inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPayloadTooLarge
	KindAuthentication
	KindTransient
	KindRateLimited
	KindQuotaExceeded
	KindMalformedResponse
	KindDocumentFailed
	KindNotFound
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindAuthentication:
		return "authentication_failure"
	case KindTransient:
		return "transient_service_error"
	case KindRateLimited:
		return "rate_limited"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindMalformedResponse:
		return "malformed_response"
	case KindDocumentFailed:
		return "document_failed"
	case KindNotFound:
		return "not_found"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	Op         string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: %s (status %d): %s", e.Provider, e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Provider, e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether resubmitting the same call later may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}

// kindForStatus maps an HTTP status code onto the error taxonomy.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusRequestEntityTooLarge:
		return KindPayloadTooLarge
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthentication
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == 456: // provider quota exceeded
		return KindQuotaExceeded
	case code == http.StatusNotFound:
		return KindNotFound
	case code >= 500:
		return KindTransient
	default:
		return KindUnknown
	}
}

// transportError classifies an error returned by http.Client.Do. Context
// cancellation is reported as is so callers can tell it apart.
func transportError(provider, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: KindTransient, Provider: provider, Op: op, Err: err}
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
