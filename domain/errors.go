package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"

	// Marketplace conflict family. The request was well-formed but collides
	// with the current state of the task/bid machine; the caller must
	// refresh and re-decide rather than retry as-is.
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeTaskNotOpen        ErrorCode = "TASK_NOT_OPEN"
	ErrCodeSelfBid            ErrorCode = "SELF_BID_FORBIDDEN"
	ErrCodeDuplicateActiveBid ErrorCode = "DUPLICATE_ACTIVE_BID"
	ErrCodeBidTaskMismatch    ErrorCode = "BID_TASK_MISMATCH"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound         = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrBidNotFound          = NewError(ErrCodeNotFound, "bid not found")
	ErrConversationNotFound = NewError(ErrCodeNotFound, "conversation not found")
	ErrSessionNotFound      = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized         = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")

	ErrNotTaskOwner       = NewError(ErrCodeForbidden, "caller does not own this task")
	ErrNotParticipant     = NewError(ErrCodeForbidden, "caller is not a participant of this conversation")
	ErrNotTiler           = NewError(ErrCodeForbidden, "only tiler accounts may submit bids")
	ErrTaskNotOpen        = NewError(ErrCodeTaskNotOpen, "task is no longer open for bidding")
	ErrSelfBid            = NewError(ErrCodeSelfBid, "cannot bid on your own task")
	ErrDuplicateActiveBid = NewError(ErrCodeDuplicateActiveBid, "an active bid on this task already exists")
	ErrBidTaskMismatch    = NewError(ErrCodeBidTaskMismatch, "bid does not belong to this task")
	ErrInvalidTransition  = NewError(ErrCodeInvalidTransition, "status transition not allowed")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// IsConflict reports whether the error belongs to the conflict family.
func IsConflict(err error) bool {
	var dErr *Error
	if !errors.As(err, &dErr) {
		return false
	}
	switch dErr.Code {
	case ErrCodeInvalidTransition, ErrCodeTaskNotOpen, ErrCodeSelfBid,
		ErrCodeDuplicateActiveBid, ErrCodeBidTaskMismatch:
		return true
	default:
		return false
	}
}
