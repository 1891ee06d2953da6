package payment

import "fmt"

type ErrorReason string

const (
	REASON_INVALID_SIGNATURE    ErrorReason = "INVALID_SIGNATURE"
	REASON_MALFORMED_PAYLOAD    ErrorReason = "MALFORMED_PAYLOAD"
	REASON_PROVIDER_UNREACHABLE ErrorReason = "PROVIDER_UNREACHABLE"
	REASON_CAPTURE_REJECTED     ErrorReason = "CAPTURE_REJECTED"
	REASON_UNHANDLED_EVENT_TYPE ErrorReason = "UNHANDLED_EVENT_TYPE"
	REASON_INVALID_AMOUNT       ErrorReason = "INVALID_AMOUNT"
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

func newPaymentError(reason ErrorReason, message string, cause error) *Error {
	return &Error{
		Reason:  reason,
		Message: message,
		Cause:   cause,
	}
}

func NewInvalidSignatureError(message string, cause error) *Error {
	return newPaymentError(REASON_INVALID_SIGNATURE, message, cause)
}

func NewMalformedPayloadError(message string, cause error) *Error {
	return newPaymentError(REASON_MALFORMED_PAYLOAD, message, cause)
}

func NewProviderUnreachableError(message string, cause error) *Error {
	return newPaymentError(REASON_PROVIDER_UNREACHABLE, message, cause)
}

func NewUnhandledEventTypeError(eventType string) *Error {
	return newPaymentError(REASON_UNHANDLED_EVENT_TYPE, fmt.Sprintf("Event type %q is not handled", eventType), nil)
}

func NewInvalidAmountError(message string, cause error) *Error {
	return newPaymentError(REASON_INVALID_AMOUNT, message, cause)
}

// CaptureRejectedError is returned when PayPal answers the capture call with a
// non-success status. The raw body is kept so it can be relayed to the caller.
type CaptureRejectedError struct {
	StatusCode int
	Body       []byte
}

func (e *CaptureRejectedError) Error() string {
	return e.reason().Error()
}

func (e *CaptureRejectedError) Unwrap() error {
	return e.reason()
}

func (e *CaptureRejectedError) reason() *Error {
	return newPaymentError(REASON_CAPTURE_REJECTED, fmt.Sprintf("Capture returned status %d", e.StatusCode), nil)
}

func NewCaptureRejectedError(statusCode int, body []byte) *CaptureRejectedError {
	return &CaptureRejectedError{
		StatusCode: statusCode,
		Body:       body,
	}
}
