// Package remote holds the error taxonomy shared by the cashier and admin
// HTTP clients.
package remote

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures reported by a remote service.
type ErrorCode string

const (
	// ErrCodeAuth indicates bad credentials or an unexpected login flow.
	// Fatal for a whole batch: no session exists.
	ErrCodeAuth ErrorCode = "AUTH_FAILED"

	// ErrCodeInvalidPhone indicates the remote rejected a phone number as
	// structurally invalid. Terminal for the record.
	ErrCodeInvalidPhone ErrorCode = "INVALID_PHONE"

	// ErrCodeRemote covers everything else: transport errors, unexpected
	// status codes, malformed payloads. Transient for the record.
	ErrCodeRemote ErrorCode = "REMOTE"
)

// Error is a failure returned by a remote client.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the client operation, e.g. "check exists".
	Op string

	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewAuthError creates an Error for a failed login step.
func NewAuthError(op string, status int, message string) *Error {
	return &Error{Code: ErrCodeAuth, Op: op, Status: status, Message: message}
}

// NewInvalidPhoneError creates an Error for a phone rejected by the remote.
func NewInvalidPhoneError(op, message string) *Error {
	return &Error{Code: ErrCodeInvalidPhone, Op: op, Message: message}
}

// NewRemoteError creates an Error for any other remote failure.
func NewRemoteError(op string, status int, message string, err error) *Error {
	return &Error{Code: ErrCodeRemote, Op: op, Status: status, Message: message, Err: err}
}

// IsAuthError returns true if err is an authentication failure.
// Uses errors.As to handle wrapped errors.
func IsAuthError(err error) bool {
	return hasCode(err, ErrCodeAuth)
}

// IsInvalidPhone returns true if err reports an invalid phone number.
func IsInvalidPhone(err error) bool {
	return hasCode(err, ErrCodeInvalidPhone)
}

// IsRemoteError returns true if err is a generic remote failure.
func IsRemoteError(err error) bool {
	return hasCode(err, ErrCodeRemote)
}

func hasCode(err error, code ErrorCode) bool {
	var re *Error
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// RemovalStatus is the successful result of a purchase removal.
type RemovalStatus int

const (
	// Removed: the remote deleted the purchase.
	Removed RemovalStatus = iota + 1
	// NotFound: the purchase was already gone.
	NotFound
)

func (s RemovalStatus) String() string {
	switch s {
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("RemovalStatus(%d)", int(s))
}
