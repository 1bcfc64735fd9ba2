package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by every service. Handlers map them to HTTP statuses;
// services never pick statuses themselves.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidState     = "INVALID_STATE"
	CodeOutOfOrder       = "OUT_OF_ORDER"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeConflict         = "CONFLICT"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeUpstreamFailure  = "UPSTREAM_FAILURE"
)

type Error struct {
	Code   string
	Err    error
	Fields map[string]string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func Newf(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// Validation carries field-level detail so callers can surface per-field
// messages without parsing the error string.
func Validation(fields map[string]string) *Error {
	return &Error{
		Code:   CodeValidationFailed,
		Err:    errors.New("validation failed"),
		Fields: fields,
	}
}

func NotFound(format string, args ...interface{}) *Error {
	return Newf(CodeNotFound, format, args...)
}

func InvalidState(format string, args ...interface{}) *Error {
	return Newf(CodeInvalidState, format, args...)
}

func OutOfOrder(format string, args ...interface{}) *Error {
	return Newf(CodeOutOfOrder, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return Newf(CodeConflict, format, args...)
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return Newf(CodeInvalidArgument, format, args...)
}

func Upstream(err error) *Error {
	return &Error{Code: CodeUpstreamFailure, Err: err}
}

// From pulls an *Error out of an error chain, if one is there.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInvalidState, CodeOutOfOrder:
		return http.StatusConflict
	case CodeValidationFailed, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
