package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors shared across modules.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = stderrors.New("cache miss")
)

// Domain errors. Codes are part of the API contract: clients branch on
// Code, never on Message.
var (
	ErrQRInvalid       = New("QR_INVALID", http.StatusNotFound, "qr code not recognized")
	ErrQRExpired       = New("QR_EXPIRED", http.StatusGone, "qr code has expired")
	ErrQRNotFound      = New("QR_NOT_FOUND", http.StatusNotFound, "qr code not found")
	ErrQRAlreadyActive = New("QR_ALREADY_ACTIVE", http.StatusConflict, "an active qr code already exists for this session")

	ErrSessionNotFound         = New("SESSION_NOT_FOUND", http.StatusNotFound, "session not found")
	ErrSessionNotInProgress    = New("SESSION_NOT_IN_PROGRESS", http.StatusConflict, "session is not in progress")
	ErrSessionAlreadyCancelled = New("SESSION_ALREADY_CANCELLED", http.StatusConflict, "session is already cancelled")

	ErrMemberNotFound  = New("MEMBER_NOT_FOUND", http.StatusNotFound, "member not found")
	ErrMemberWithdrawn = New("MEMBER_WITHDRAWN", http.StatusForbidden, "member has withdrawn")

	ErrCohortNotFound       = New("COHORT_NOT_FOUND", http.StatusNotFound, "active cohort not found")
	ErrCohortMemberNotFound = New("COHORT_MEMBER_NOT_FOUND", http.StatusNotFound, "cohort membership not found")

	ErrAttendanceAlreadyChecked = New("ATTENDANCE_ALREADY_CHECKED", http.StatusConflict, "attendance already recorded for this session")
	ErrAttendanceNotFound       = New("ATTENDANCE_NOT_FOUND", http.StatusNotFound, "attendance record not found")

	ErrDepositInsufficient = New("DEPOSIT_INSUFFICIENT", http.StatusUnprocessableEntity, "deposit balance is insufficient")
	ErrExcuseLimitExceeded = New("EXCUSE_LIMIT_EXCEEDED", http.StatusUnprocessableEntity, "excused absence limit exceeded")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
