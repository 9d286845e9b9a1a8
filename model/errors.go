package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest      = "BAD_REQUEST"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrNotFound        = "NOT_FOUND"
	ErrConflict        = "CONFLICT"
	ErrValidationError = "VALIDATION_ERROR"
	ErrInternalError   = "INTERNAL_ERROR"
)

// Workflow and resource error codes.
const (
	ErrInvalidTransition   = "INVALID_TRANSITION"
	ErrAlreadyStarted      = "ALREADY_STARTED"
	ErrAlreadyCompleted    = "ALREADY_COMPLETED"
	ErrNotStarted          = "NOT_STARTED"
	ErrResourceUnavailable = "RESOURCE_UNAVAILABLE"
	ErrInvalidTarget       = "INVALID_TARGET"
)

// ErrorEnvelope is the standard error shape returned by every core operation.
// Details carries enough structured context (required role, unavailable item,
// attempted transition) for the calling layer to render an actionable message.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail returns the envelope with an added detail field.
func (e *ErrorEnvelope) WithDetail(key string, value any) *ErrorEnvelope {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the envelope code of err, or ErrInternalError for any other
// error type. CodeOf(nil) returns "".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if ee, ok := err.(*ErrorEnvelope); ok {
		return ee.Code
	}
	return ErrInternalError
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewConflictError returns a CONFLICT error.
func NewConflictError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrConflict, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR.
func NewValidationError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrValidationError, Message: msg}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewInvalidTransitionError returns an INVALID_TRANSITION error.
func NewInvalidTransitionError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTransition, Message: msg}
}

// NewAlreadyStartedError returns an ALREADY_STARTED error.
func NewAlreadyStartedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrAlreadyStarted, Message: msg}
}

// NewAlreadyCompletedError returns an ALREADY_COMPLETED error.
func NewAlreadyCompletedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrAlreadyCompleted, Message: msg}
}

// NewNotStartedError returns a NOT_STARTED error.
func NewNotStartedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotStarted, Message: msg}
}

// NewResourceUnavailableError returns a RESOURCE_UNAVAILABLE error naming the
// inventory item that could not be claimed.
func NewResourceUnavailableError(itemName string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrResourceUnavailable,
		Message: fmt.Sprintf("no available inventory item named %q", itemName),
		Details: map[string]any{"item_name": itemName},
	}
}

// NewInvalidTargetError returns an INVALID_TARGET error.
func NewInvalidTargetError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrInvalidTarget, Message: msg}
}
