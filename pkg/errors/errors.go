package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
)

// Dispatch error codes
const (
	ErrPreferenceUnavailable ErrorCode = iota + 2000
	ErrRateLimited
	ErrChannelSendFailed
	ErrInvalidAddress
	ErrNoEligibleContacts
)

func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal error",
		Err:     err,
	}
}

// PreferenceUnavailable signals the preference store could not be read.
// The dispatcher applies its fallback policy rather than failing the call.
func PreferenceUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrPreferenceUnavailable,
		Message: "preference store unavailable",
		Err:     err,
	}
}

// RateLimited is recorded as a suppressed outcome, never returned to callers.
func RateLimited(userID, operation string) *AppError {
	return &AppError{
		Code:    ErrRateLimited,
		Message: fmt.Sprintf("rate limit exceeded for %s on %s", userID, operation),
	}
}

// ChannelSendFailed wraps a gateway failure after retries are exhausted.
func ChannelSendFailed(channel string, err error) *AppError {
	return &AppError{
		Code:    ErrChannelSendFailed,
		Message: fmt.Sprintf("send failed on channel %s", channel),
		Err:     err,
	}
}

// InvalidAddress is terminal: a malformed address will never succeed on retry.
func InvalidAddress(address string) *AppError {
	return &AppError{
		Code:    ErrInvalidAddress,
		Message: fmt.Sprintf("invalid delivery address %q", address),
	}
}

// NoEligibleContacts is terminal and user-actionable: the caller must tell
// the user to configure emergency contacts.
func NoEligibleContacts(userID string) *AppError {
	return &AppError{
		Code:    ErrNoEligibleContacts,
		Message: fmt.Sprintf("no eligible emergency contacts for user %s", userID),
	}
}

// HasCode reports whether err is an *AppError carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
