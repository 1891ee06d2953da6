package notification

import (
	"errors"
	"fmt"
)

type ErrorReason string

const (
	REASON_INVALID_EMAIL_TYPE ErrorReason = "INVALID_EMAIL_TYPE"
	REASON_FAILED_TO_RENDER   ErrorReason = "FAILED_TO_RENDER"
	REASON_FAILED_TO_SEND     ErrorReason = "FAILED_TO_SEND"
	REASON_REMINDER_TOO_SOON  ErrorReason = "REMINDER_TOO_SOON"
	REASON_FAILED_TO_WRITE    ErrorReason = "FAILED_TO_WRITE"
	REASON_FAILED_TO_FETCH    ErrorReason = "FAILED_TO_FETCH"
	REASON_TIMEOUT            ErrorReason = "TIMEOUT"
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

func newNotificationError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidEmailTypeError(emailType EmailType) *Error {
	return newNotificationError(REASON_INVALID_EMAIL_TYPE, fmt.Sprintf("Unknown email type %q", emailType), nil)
}

func NewFailedToRenderError(message string, cause error) *Error {
	return newNotificationError(REASON_FAILED_TO_RENDER, message, cause)
}

func NewFailedToSendError(message string, cause error) *Error {
	return newNotificationError(REASON_FAILED_TO_SEND, message, cause)
}

func NewReminderTooSoonError(message string, cause error) *Error {
	return newNotificationError(REASON_REMINDER_TOO_SOON, message, cause)
}

func NewFailedToWriteError(message string, cause error) *Error {
	return newNotificationError(REASON_FAILED_TO_WRITE, message, cause)
}

func NewFailedToFetchError(message string, cause error) *Error {
	return newNotificationError(REASON_FAILED_TO_FETCH, message, cause)
}

func NewTimeoutError(message string) *Error {
	return newNotificationError(REASON_TIMEOUT, message, nil)
}

func IsReason(err error, reason ErrorReason) bool {
	var notifErr *Error
	if !errors.As(err, &notifErr) {
		return false
	}
	return notifErr.Reason == reason
}
