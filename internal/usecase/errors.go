package usecase

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorNotConfigured    ErrorCode = "NOT_CONFIGURED"
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
	ErrorMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Caller-facing error texts. Upstream detail never reaches the caller.
const (
	MessageNotConfigured    = "API key not configured. Please set ANTHROPIC_API_KEY environment variable."
	MessageUpstream         = "Failed to get response from AI service"
	MessageInternal         = "Internal server error"
	MessageMethodNotAllowed = "Method not allowed"
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Status overrides the code's default HTTP status; set for upstream failures.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case ErrorMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (e *Error) PublicMessage() string {
	switch e.Code {
	case ErrorNotConfigured:
		return MessageNotConfigured
	case ErrorUpstream:
		return MessageUpstream
	case ErrorMethodNotAllowed:
		return MessageMethodNotAllowed
	default:
		return MessageInternal
	}
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}
