package errs

import (
	"errors"
	"fmt"
)

// Code classifies a failure for API responses and activity events.
type Code string

const (
	CodeValidation Code = "validation_error"
	CodeConversion Code = "conversion_error"
	CodeTimeout    Code = "timeout_error"
	CodeStorage    Code = "storage_error"
	CodeExpired    Code = "expired"
	CodeNotFound   Code = "not_found"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the taxonomy code carried by err, or CodeStorage when err
// is not a classified error. Unclassified failures are system faults and
// must never leak internals to the client.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorage
}

// MessageOf returns the client-safe message for err. Storage errors are
// reported generically, their detail belongs in the server log only.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeStorage {
		return e.Message
	}
	return "internal error, please try again"
}
