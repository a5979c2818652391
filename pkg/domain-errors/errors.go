// Package domainerrors defines coded errors that cross the service boundary.
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into these coded errors; the HTTP layer translates codes into an HTTP
// status plus an OCPI envelope status_code. Nothing above the HTTP layer
// ever inspects error strings.
package domainerrors

import (
	"errors"
	"net/http"

	"ocpigw/pkg/ocpi"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest       Code = "bad_request"
	CodeUnauthorized     Code = "unauthorized"
	CodeForbidden        Code = "forbidden"
	CodeNotFound         Code = "not_found"
	CodeMethodNotAllowed Code = "method_not_allowed"
	CodeConflict         Code = "conflict"
	CodeUnavailable      Code = "unavailable"
	CodeInternal         Code = "internal_error"
)

// Error is a coded domain error. Message is safe to show to the remote peer
// as the envelope status_message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// From extracts a coded error, defaulting to CodeInternal for anything that
// was not classified on the way up.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: "internal error"}
}

// ToHTTPStatus maps a code to the transport-level status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToOCPIStatus maps a code to the protocol-level status_code carried inside
// the envelope. Client-side refusals are all 2000-range; everything the
// server broke itself is 3000.
func ToOCPIStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return ocpi.StatusInvalidParameters
	case CodeUnauthorized, CodeForbidden, CodeNotFound, CodeMethodNotAllowed, CodeConflict:
		return ocpi.StatusGenericClientErr
	default:
		return ocpi.StatusGenericServerErr
	}
}
