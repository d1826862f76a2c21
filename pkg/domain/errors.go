package domain

import (
	"errors"
	"fmt"
)

// ErrorType is the category reported to API clients in the "error" field.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeSuperseded ErrorType = "superseded"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error is a categorized error with a human-readable message.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns the message shown to users. Upstream causes are appended
// so the provider's own explanation reaches the client verbatim.
func (e *Error) Detail() string {
	if e.Err != nil && e.Type != ErrorTypeInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// NewError creates a new categorized error.
func NewError(errType ErrorType, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func ValidationError(message string, err error) *Error {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *Error {
	return NewError(ErrorTypeConfig, message, err)
}

func UpstreamError(message string, err error) *Error {
	return NewError(ErrorTypeUpstream, message, err)
}

func NotFoundError(message string, err error) *Error {
	return NewError(ErrorTypeNotFound, message, err)
}

func SupersededError(message string, err error) *Error {
	return NewError(ErrorTypeSuperseded, message, err)
}

func InternalError(message string, err error) *Error {
	return NewError(ErrorTypeInternal, message, err)
}

// TypeOf returns the category of err, or ErrorTypeInternal when err does not
// carry one.
func TypeOf(err error) ErrorType {
	var de *Error
	if errors.As(err, &de) {
		return de.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err (or anything it wraps) has the given category.
func IsType(err error, t ErrorType) bool {
	var de *Error
	return errors.As(err, &de) && de.Type == t
}
