package models

import "errors"

var (
	// ErrNotFound is returned when a calculation is absent from storage.
	ErrNotFound = errors.New("calculation not found")
	// ErrConflict covers duplicate ids and stale updatedAt stamps.
	ErrConflict = errors.New("calculation conflict")
	// ErrInvalidTransition means a status change violates the state table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTooManyPending is the admission control rejection.
	ErrTooManyPending = errors.New("too many pending calculations")
	// ErrInvalidArgument marks malformed client input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error codes stored in CalculationErrorDetails.
const (
	InvalidTokenErrorCode          = "InvalidToken"
	UnexpectedTokenErrorCode       = "UnexpectedToken"
	UnexpectedEndErrorCode         = "UnexpectedEnd"
	UnbalancedParenthesesErrorCode = "UnbalancedParentheses"
	ArithmeticErrorCode            = "ArithmeticError"
	UnknownFunctionErrorCode       = "UnknownFunction"
	InternalErrorCode              = "InternalError"
)

// CalculationErrorDetails describes why a calculation failed. Offset and Length point into
// the expression text when the failure can be localized.
type CalculationErrorDetails struct {
	ErrorCode string
	Offset    *int
	Length    *int
}

// NewErrorDetails builds localized error details.
func NewErrorDetails(code string, offset, length int) *CalculationErrorDetails {
	return &CalculationErrorDetails{ErrorCode: code, Offset: &offset, Length: &length}
}
