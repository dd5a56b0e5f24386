// Package apierror defines the closed error taxonomy returned by every network
// operation of the taproom client. Callers switch on Kind and Retryable instead
// of matching message text.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the category of a failure.
type Kind string

const (
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindServer          Kind = "server"
	KindRateLimited     Kind = "rate_limited"
	KindRequestTimeout  Kind = "request_timeout"
	KindClient          Kind = "client"
	KindParse           Kind = "parse"
	KindUnauthenticated Kind = "unauthenticated"
	KindValidation      Kind = "validation"
)

// Error is the typed error of the access layer. Retryable is derived from the
// other fields and is never stored.
type Error struct {
	Message    string
	StatusCode int // 0 for failures that never reached the server
	Network    bool
	Timeout    bool
	kind       Kind
}

var _ error = (*Error)(nil)

// New builds an error from its raw fields; the kind is derived.
func New(message string, statusCode int, network, timeout bool) *Error {
	return &Error{Message: message, StatusCode: statusCode, Network: network, Timeout: timeout}
}

// FromStatus classifies a non-success HTTP status.
func FromStatus(statusCode int, message string) *Error {
	if strings.TrimSpace(message) == "" {
		message = http.StatusText(statusCode)
	}
	return &Error{Message: message, StatusCode: statusCode}
}

// Network reports a transport failure that produced no response.
func Network(err error) *Error {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Message: msg, Network: true, kind: KindNetwork}
}

// Timeout reports an attempt cancelled by the per-attempt deadline.
func Timeout(message string) *Error {
	if message == "" {
		message = "request timed out"
	}
	return &Error{Message: message, StatusCode: http.StatusRequestTimeout, Timeout: true, kind: KindTimeout}
}

// Parse reports a body that could not be decoded on an otherwise successful transport.
func Parse(statusCode int, snippet string) *Error {
	return &Error{
		Message:    fmt.Sprintf("invalid response body: %s", snippet),
		StatusCode: statusCode,
		kind:       KindParse,
	}
}

// Unauthenticated reports a missing or unusable session.
func Unauthenticated(message string) *Error {
	if message == "" {
		message = "not logged in"
	}
	return &Error{Message: message, StatusCode: http.StatusUnauthorized, kind: KindUnauthenticated}
}

// Validation reports input rejected before any network call.
func Validation(message string, statusCode int) *Error {
	return &Error{Message: message, StatusCode: statusCode, kind: KindValidation}
}

// Internal wraps an unexpected failure as a 500.
func Internal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Message: msg, StatusCode: http.StatusInternalServerError, kind: KindServer}
}

// Wrap passes typed errors through unchanged and converts anything else.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := As(err); ok {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err.Error())
	}
	return Internal(err)
}

// As extracts a typed error from err's chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) && typed != nil {
		return typed, true
	}
	return nil, false
}

// Retryable reports whether the same request may succeed if sent again.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Network ||
		e.Timeout ||
		e.StatusCode >= 500 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// Kind returns the category set at construction, or one derived from the flags and status.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	if e.kind != "" {
		return e.kind
	}
	switch {
	case e.Network:
		return KindNetwork
	case e.Timeout:
		return KindTimeout
	case e.StatusCode >= 500:
		return KindServer
	case e.StatusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case e.StatusCode == http.StatusRequestTimeout:
		return KindRequestTimeout
	case e.StatusCode == http.StatusUnauthorized:
		return KindUnauthenticated
	case e.StatusCode >= 400:
		return KindClient
	case e.StatusCode >= 200 && e.StatusCode < 300:
		return KindParse
	}
	return KindClient
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	message := strings.TrimSpace(e.Message)
	if e.StatusCode > 0 {
		if message == "" {
			return fmt.Sprintf("http %d", e.StatusCode)
		}
		return fmt.Sprintf("http %d: %s", e.StatusCode, message)
	}
	if message == "" {
		return string(e.Kind())
	}
	return message
}

// UserMessage maps the kind to text suitable for display.
func (e *Error) UserMessage() string {
	switch e.Kind() {
	case KindNetwork, KindTimeout, KindRequestTimeout:
		return "Check your connection and try again."
	case KindUnauthenticated:
		return "Please log in again."
	case KindRateLimited:
		return "Too many requests, please wait a moment."
	case KindServer:
		return "The service is having trouble right now."
	case KindParse:
		return "Received an unexpected response."
	}
	if e != nil && e.Message != "" {
		return e.Message
	}
	return "Something went wrong."
}

type wireError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Network    bool   `json:"is_network_error"`
	Timeout    bool   `json:"is_timeout"`
	Kind       Kind   `json:"kind,omitempty"`
	Retryable  bool   `json:"retryable"`
}

// MarshalJSON writes the derived retryable flag alongside the raw fields.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Network:    e.Network,
		Timeout:    e.Timeout,
		Kind:       e.Kind(),
		Retryable:  e.Retryable(),
	})
}

// UnmarshalJSON ignores any encoded retryable value; it is always recomputed.
func (e *Error) UnmarshalJSON(data []byte) error {
	var w wireError
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Error{
		Message:    w.Message,
		StatusCode: w.StatusCode,
		Network:    w.Network,
		Timeout:    w.Timeout,
		kind:       w.Kind,
	}
	return nil
}
