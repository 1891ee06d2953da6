package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v85/webhook"
)

const (
	stripeEventCheckoutCompleted          = "checkout.session.completed"
	stripeEventCheckoutExpired            = "checkout.session.expired"
	stripeEventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	stripeEventPaymentIntentFailed        = "payment_intent.payment_failed"
	stripeEventChargeRefunded             = "charge.refunded"
)

type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewStripeVerifier(webhookSecret string) *StripeVerifier {
	return &StripeVerifier{
		secret:    webhookSecret,
		tolerance: webhook.DefaultTolerance,
	}
}

func (v *StripeVerifier) Verify(rawBody []byte, signatureHeader string) (Event, error) {
	return verifyStripeEvent(rawBody, signatureHeader, v.secret, v.tolerance)
}

// VerifyStripeEvent checks the Stripe-Signature header against the raw body
// and maps the event onto the provider-neutral Event.
func VerifyStripeEvent(rawBody []byte, signatureHeader string, webhookSecret string) (Event, error) {
	return verifyStripeEvent(rawBody, signatureHeader, webhookSecret, webhook.DefaultTolerance)
}

func verifyStripeEvent(rawBody []byte, signatureHeader string, webhookSecret string, tolerance time.Duration) (Event, error) {
	if signatureHeader == "" {
		return Event{}, NewInvalidSignatureError("Missing Stripe-Signature header", nil)
	}

	err := webhook.ValidatePayloadWithTolerance(rawBody, signatureHeader, webhookSecret, tolerance)
	if err != nil {
		return Event{}, NewInvalidSignatureError("Stripe signature verification failed", err)
	}

	var envelope stripeEventEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return Event{}, NewMalformedPayloadError("Stripe event body is not valid JSON", err)
	}
	if envelope.ID == "" || envelope.Type == "" || len(envelope.Data.Object) == 0 {
		return Event{}, NewMalformedPayloadError("Stripe event is missing id, type or data.object", nil)
	}

	switch envelope.Type {
	case stripeEventCheckoutCompleted:
		return checkoutSessionEvent(envelope, EVENT_COMPLETED)
	case stripeEventCheckoutExpired:
		return checkoutSessionEvent(envelope, EVENT_EXPIRED)
	case stripeEventCheckoutAsyncPaymentFailed:
		return checkoutSessionEvent(envelope, EVENT_FAILED)
	case stripeEventPaymentIntentFailed:
		return paymentIntentFailedEvent(envelope)
	case stripeEventChargeRefunded:
		return chargeRefundedEvent(envelope)
	default:
		return Event{}, NewUnhandledEventTypeError(envelope.Type)
	}
}

type stripeEventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// stripeExpandable holds the id of a field Stripe sends either as a bare id
// string or as an expanded object.
type stripeExpandable string

func (e *stripeExpandable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = stripeExpandable(id)
		return nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = stripeExpandable(obj.ID)
	return nil
}

type stripeAddress struct {
	Country string `json:"country"`
}

type stripeCheckoutSession struct {
	ID              string            `json:"id"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	PaymentIntent   stripeExpandable  `json:"payment_intent"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email   string         `json:"email"`
		Name    string         `json:"name"`
		Phone   string         `json:"phone"`
		Address *stripeAddress `json:"address"`
	} `json:"customer_details"`
}

type stripePaymentIntent struct {
	ID           string            `json:"id"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	ReceiptEmail string            `json:"receipt_email"`
	Metadata     map[string]string `json:"metadata"`
}

type stripeCharge struct {
	ID             string            `json:"id"`
	AmountRefunded int64             `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	PaymentIntent  stripeExpandable  `json:"payment_intent"`
	Metadata       map[string]string `json:"metadata"`
	BillingDetails *struct {
		Email   string         `json:"email"`
		Name    string         `json:"name"`
		Phone   string         `json:"phone"`
		Address *stripeAddress `json:"address"`
	} `json:"billing_details"`
}

func checkoutSessionEvent(envelope stripeEventEnvelope, eventType EventType) (Event, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
		return Event{}, NewMalformedPayloadError("Failed to decode checkout session", err)
	}
	if session.ID == "" {
		return Event{}, NewMalformedPayloadError("Checkout session has no id", nil)
	}

	event := Event{
		Provider:           PROVIDER_STRIPE,
		Type:               eventType,
		ExternalEventID:    envelope.ID,
		ExternalPaymentID:  session.ID,
		AlternatePaymentID: string(session.PaymentIntent),
		PayerEmail:         session.CustomerEmail,
		Metadata:           session.Metadata,
	}
	if d := session.CustomerDetails; d != nil {
		if d.Email != "" {
			event.PayerEmail = d.Email
		}
		event.PayerName = d.Name
		event.PayerPhone = d.Phone
		if d.Address != nil {
			event.PayerCountry = d.Address.Country
		}
	}

	if eventType == EVENT_COMPLETED {
		amount, err := NewAmountFromMinorUnits(session.AmountTotal, session.Currency)
		if err != nil {
			return Event{}, NewMalformedPayloadError(fmt.Sprintf("Checkout session %q has an invalid amount", session.ID), err)
		}
		event.Amount = amount
	}

	return event, nil
}

func paymentIntentFailedEvent(envelope stripeEventEnvelope) (Event, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(envelope.Data.Object, &intent); err != nil {
		return Event{}, NewMalformedPayloadError("Failed to decode payment intent", err)
	}
	if intent.ID == "" {
		return Event{}, NewMalformedPayloadError("Payment intent has no id", nil)
	}

	return Event{
		Provider:          PROVIDER_STRIPE,
		Type:              EVENT_FAILED,
		ExternalEventID:   envelope.ID,
		ExternalPaymentID: intent.ID,
		PayerEmail:        intent.ReceiptEmail,
		Metadata:          intent.Metadata,
	}, nil
}

func chargeRefundedEvent(envelope stripeEventEnvelope) (Event, error) {
	var charge stripeCharge
	if err := json.Unmarshal(envelope.Data.Object, &charge); err != nil {
		return Event{}, NewMalformedPayloadError("Failed to decode charge", err)
	}
	if charge.ID == "" {
		return Event{}, NewMalformedPayloadError("Charge has no id", nil)
	}

	paymentID := string(charge.PaymentIntent)
	if paymentID == "" {
		paymentID = charge.ID
	}

	amount, err := NewAmountFromMinorUnits(charge.AmountRefunded, charge.Currency)
	if err != nil {
		return Event{}, NewMalformedPayloadError(fmt.Sprintf("Charge %q has an invalid refund amount", charge.ID), err)
	}

	event := Event{
		Provider:          PROVIDER_STRIPE,
		Type:              EVENT_REFUNDED,
		ExternalEventID:   envelope.ID,
		ExternalPaymentID: paymentID,
		Amount:            amount,
		Metadata:          charge.Metadata,
	}
	if d := charge.BillingDetails; d != nil {
		event.PayerEmail = d.Email
		event.PayerName = d.Name
		event.PayerPhone = d.Phone
		if d.Address != nil {
			event.PayerCountry = d.Address.Country
		}
	}

	return event, nil
}
