package identity

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// Kind classifies a failed API call. It is decided once, when the response
// is read, and callers switch on it instead of inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
	KindNetwork
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a failed API call.
type Error struct {
	Kind    Kind
	Status  int
	Code    string // "error" field of the body, e.g. "validation_error"
	Message string
	Err     error // transport error for KindNetwork
}

func (e *Error) Error() string {
	if e.Kind == KindNetwork {
		return fmt.Sprintf("identity: network: %v", e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("identity: %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("identity: %s (%d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsUnauthorized reports whether err means "no valid session".
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// errorFromResponse builds an Error from a non-2xx response. The body is
// the server's {"error", "message"} shape when it is JSON.
func errorFromResponse(status int, body []byte) *Error {
	e := &Error{Kind: kindForStatus(status), Status: status}
	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "error", "message")
		e.Code = res[0].String()
		e.Message = res[1].String()
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
