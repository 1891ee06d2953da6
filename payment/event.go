package payment

import (
	"github.com/Rhymond/go-money"
)

type Provider string

const (
	PROVIDER_STRIPE Provider = "stripe"
	PROVIDER_PAYPAL Provider = "paypal"
)

func (p Provider) IsValid() bool {
	switch p {
	case PROVIDER_STRIPE, PROVIDER_PAYPAL:
		return true
	default:
		return false
	}
}

type EventType string

const (
	EVENT_COMPLETED EventType = "completed"
	EVENT_EXPIRED   EventType = "expired"
	EVENT_FAILED    EventType = "failed"
	EVENT_REFUNDED  EventType = "refunded"
)

// Event is a verified, provider-neutral payment state change. It is never
// persisted on its own; only its effect on a registration is durable.
type Event struct {
	Provider        Provider
	Type            EventType
	ExternalEventID string
	// ExternalPaymentID is the handle a registration is keyed on
	// (Stripe checkout session id, PayPal order id).
	ExternalPaymentID string
	// AlternatePaymentID is a second handle for the same payment. Stripe
	// refunds only reference the payment intent, not the checkout session.
	AlternatePaymentID string
	Amount             *money.Money
	PayerEmail         string
	PayerName          string
	PayerPhone         string
	PayerCountry       string
	Metadata           map[string]string
}

func (e Event) MetadataValue(keys ...string) string {
	for _, k := range keys {
		if v, ok := e.Metadata[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
