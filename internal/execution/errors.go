package execution

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies execution failures.
type ErrorKind string

const (
	ErrKindConnection    ErrorKind = "connection_error"
	ErrKindAuth          ErrorKind = "authentication_error"
	ErrKindValidation    ErrorKind = "validation_error"
	ErrKindInsufficient  ErrorKind = "insufficient_funds"
	ErrKindRateLimit     ErrorKind = "rate_limit_exceeded"
	ErrKindOrderRejected ErrorKind = "order_rejected"
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindService       ErrorKind = "service_error"
	ErrKindNotSupported  ErrorKind = "not_supported"
	ErrKindInternal      ErrorKind = "internal"
)

// ErrorContext carries diagnostic detail alongside an execution error.
type ErrorContext struct {
	Message        string            `json:"message"`
	Code           string            `json:"code,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
	Component      string            `json:"component"`
	Operation      string            `json:"operation"`
	RetryAttempt   int               `json:"retry_attempt,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
	IsRecoverable  bool              `json:"is_recoverable"`
	RecoveryAction string            `json:"recovery_action,omitempty"`
}

// NewErrorContext builds a non-recoverable context for the component
// and operation.
func NewErrorContext(message, component, operation string) ErrorContext {
	return ErrorContext{
		Message:   message,
		Timestamp: time.Now().UTC(),
		Component: component,
		Operation: operation,
	}
}

// Recoverable marks the context recoverable with a suggested action.
func (c ErrorContext) Recoverable(action string) ErrorContext {
	c.IsRecoverable = true
	c.RecoveryAction = action
	return c
}

// WithCode attaches a provider error code.
func (c ErrorContext) WithCode(code string) ErrorContext {
	c.Code = code
	return c
}

// Error is the execution-layer error type. Kind drives handling;
// Context is optional diagnostic detail.
type Error struct {
	Kind    ErrorKind
	Message string
	Context *ErrorContext
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an execution error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError wraps err as an execution error of the given kind.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithContext attaches diagnostic context.
func (e *Error) WithContext(ctx ErrorContext) *Error {
	e.Context = &ctx
	return e
}

// Recoverable reports whether the error is worth retrying upstream.
// Kind gives the default; an attached context overrides it.
func (e *Error) Recoverable() bool {
	if e.Context != nil {
		return e.Context.IsRecoverable
	}
	switch e.Kind {
	case ErrKindConnection, ErrKindRateLimit, ErrKindTimeout, ErrKindService:
		return true
	default:
		return false
	}
}

// KindOf extracts the execution error kind, defaulting to internal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindInternal
}
