package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Err    error
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
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, "unauthorized", errors.New(msg))
}

func InvalidRequest(code, msg string) *Error {
	if code == "" {
		code = "invalid_request"
	}
	return New(http.StatusBadRequest, code, errors.New(msg))
}

func NotFound(code, msg string) *Error {
	if code == "" {
		code = "not_found"
	}
	return New(http.StatusNotFound, code, errors.New(msg))
}

// Generation wraps an upstream model failure that happened before any byte
// reached the client.
func Generation(err error) *Error {
	return New(http.StatusBadGateway, "generation_failed", err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, "persistence_failed", err)
}

func Internal(code string, err error) *Error {
	if code == "" {
		code = "internal"
	}
	return New(http.StatusInternalServerError, code, err)
}

// From extracts an *Error from err, falling back to a 500.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		if ae.Status == 0 {
			ae.Status = http.StatusInternalServerError
		}
		return ae
	}
	return Internal("", err)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, status int) bool {
	var ae *Error
	return errors.As(err, &ae) && ae != nil && ae.Status == status
}
