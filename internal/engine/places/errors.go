package places

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures so callers can pick a recovery policy.
type Kind int

const (
	// KindTransient covers network errors, timeouts, 5xx and unknown statuses.
	// Retry after a cooldown.
	KindTransient Kind = iota
	// KindFatalConfig is a bad credential or malformed request. Stop the run.
	KindFatalConfig
	// KindQuotaExceeded is OVER_QUERY_LIMIT or HTTP 429. Retry after an escalating cooldown.
	KindQuotaExceeded
	// KindTokenNotReady means the continuation token is not usable yet.
	KindTokenNotReady
	// KindPartialFailure is a single detail lookup that failed. Drop the item.
	KindPartialFailure
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatalConfig:
		return "fatal_config"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindTokenNotReady:
		return "token_not_ready"
	case KindPartialFailure:
		return "partial_failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the tagged error returned by the Places client.
type Error struct {
	Kind       Kind
	Status     string // upstream status field, e.g. REQUEST_DENIED
	HTTPStatus int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.HTTPStatus != 0 && e.HTTPStatus != 200 {
		msg += fmt.Sprintf(" (HTTP %d)", e.HTTPStatus)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors that are not *Error count as transient.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// classify maps an upstream response to an error, or nil for OK and ZERO_RESULTS.
// withToken tells whether the request carried a continuation token, which turns
// INVALID_REQUEST from a fatal error into a not-ready token.
func classify(httpStatus int, status, message string, withToken bool) error {
	switch {
	case httpStatus == 401 || httpStatus == 403:
		return &Error{Kind: KindFatalConfig, HTTPStatus: httpStatus, Status: status, Message: "permission error, check the API key"}
	case httpStatus == 429:
		return &Error{Kind: KindQuotaExceeded, HTTPStatus: httpStatus, Status: status, Message: message}
	case httpStatus < 200 || httpStatus > 299:
		return &Error{Kind: KindTransient, HTTPStatus: httpStatus, Status: status, Message: message}
	}

	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "REQUEST_DENIED":
		return &Error{Kind: KindFatalConfig, HTTPStatus: httpStatus, Status: status, Message: message}
	case "INVALID_REQUEST":
		if withToken {
			return &Error{Kind: KindTokenNotReady, HTTPStatus: httpStatus, Status: status, Message: message}
		}
		return &Error{Kind: KindFatalConfig, HTTPStatus: httpStatus, Status: status, Message: message}
	case "OVER_QUERY_LIMIT":
		return &Error{Kind: KindQuotaExceeded, HTTPStatus: httpStatus, Status: status, Message: message}
	}
	return &Error{Kind: KindTransient, HTTPStatus: httpStatus, Status: status, Message: message}
}
