package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrValidation     ErrorType = "VALIDATION_ERROR"
	ErrNotFound       ErrorType = "NOT_FOUND"
	ErrDuplicate      ErrorType = "DUPLICATE"
	ErrConflict       ErrorType = "CONFLICT"
	ErrInvalidRequest ErrorType = "INVALID_REQUEST"
	ErrInternal       ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Field      string    `json:"field,omitempty"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorKind names the error in request traces.
func (e *AppError) ErrorKind() string {
	return string(e.Type)
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

// NewValidation reports an invalid value for field.
func NewValidation(field, msg string) *AppError {
	e := New(ErrValidation, msg, nil)
	e.Field = field
	return e
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

func NewDuplicate(field, msg string, cause error) *AppError {
	e := New(ErrDuplicate, msg, cause)
	e.Field = field
	return e
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

// Wrap returns err as an AppError, looking through wrapping. Anything else
// becomes an internal error.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err is an AppError of type t.
func Is(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrNotFound:
		return http.StatusNotFound
	case ErrDuplicate, ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrValidation:
		return "Correct the highlighted field and submit again."
	case ErrDuplicate:
		return "Use a different value; this one is already taken."
	case ErrConflict:
		return "Remove the records that depend on this one first."
	case ErrNotFound:
		return "Check the link or go back to the list."
	case ErrInternal:
		return "Open the debug panel to see which call or query failed."
	default:
		return ""
	}
}
