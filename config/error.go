package config

import "fmt"

type ErrorReason string

const (
	REASON_MISSING_REQUIRED_CONFIG ErrorReason = "MISSING_REQUIRED_CONFIG"
	REASON_INVALID_CONFIG          ErrorReason = "INVALID_CONFIG"
)

type Error struct {
	Reason  ErrorReason
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s. Cause: %s", e.Reason, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func NewMissingRequiredConfigError(keys string, cause error) *Error {
	return &Error{
		Reason:  REASON_MISSING_REQUIRED_CONFIG,
		Message: fmt.Sprintf("Missing required config: %s", keys),
		Cause:   cause,
	}
}

func NewInvalidConfigError(message string, cause error) *Error {
	return &Error{
		Reason:  REASON_INVALID_CONFIG,
		Message: message,
		Cause:   cause,
	}
}
