// Package errors classifies application failures. The API layer turns an
// ErrorType into an HTTP status; anything unclassified is internal.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the class of an AppError
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeConflict     ErrorType = "CONFLICT" // a concurrent write won
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeExternal     ErrorType = "EXTERNAL" // search, media or another dependency failed
)

var httpStatus = map[ErrorType]int{
	ErrorTypeValidation:   http.StatusBadRequest,
	ErrorTypeUnauthorized: http.StatusUnauthorized,
	ErrorTypeForbidden:    http.StatusForbidden,
	ErrorTypeNotFound:     http.StatusNotFound,
	ErrorTypeConflict:     http.StatusConflict,
	ErrorTypeExternal:     http.StatusBadGateway,
}

// HTTPStatus is the response status for t; unknown types are 500
func (t ErrorType) HTTPStatus() int {
	if status, ok := httpStatus[t]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError carries a user-facing message and an optional cause
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(t ErrorType, message string, cause error) *AppError {
	return &AppError{Type: t, Message: message, Err: cause}
}

func NewNotFoundError(message string) *AppError {
	return newAppError(ErrorTypeNotFound, message, nil)
}

func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message, nil)
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, message, nil)
}

func NewUnauthorizedError(message string) *AppError {
	return newAppError(ErrorTypeUnauthorized, message, nil)
}

func NewForbiddenError(message string) *AppError {
	return newAppError(ErrorTypeForbidden, message, nil)
}

// NewInternalError wraps cause; message is hidden from clients
func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, message, cause)
}

// NewExternalError wraps a failure of a dependency such as search or media storage
func NewExternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeExternal, message, cause)
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// TypeOf returns the type of the first AppError in err's chain, or internal
func TypeOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries an AppError of type t
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// MessageOf returns the message safe to show a client
func MessageOf(err error) string {
	if appErr, ok := As(err); ok && appErr.Type != ErrorTypeInternal {
		return appErr.Message
	}
	return "internal server error"
}
