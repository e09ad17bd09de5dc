package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	ErrKindValidationFailed      ErrorKind = "validation_failed"
	ErrKindRiskCheckFailed       ErrorKind = "risk_check_failed"
	ErrKindTrustScoreTooLow      ErrorKind = "trust_score_too_low"
	ErrKindExecutionFailed       ErrorKind = "execution_failed"
	ErrKindInvalidParameters     ErrorKind = "invalid_parameters"
	ErrKindSignalExpired         ErrorKind = "signal_expired"
	ErrKindLatencyBudgetExceeded ErrorKind = "latency_budget_exceeded"
	ErrKindInternal              ErrorKind = "internal"
)

// Error is the engine error type. Gating errors carry no wrapped
// cause; execution failures wrap the provider error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an engine error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps err as an engine error of the given kind.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the engine error kind, defaulting to internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindInternal
}
