package registration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/payment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/hanna-agency/workshop-registration/registration")

type Outcome string

const (
	// OUTCOME_CREATED is the only outcome that should trigger a confirmation email.
	OUTCOME_CREATED         Outcome = "CREATED"
	OUTCOME_ALREADY_APPLIED Outcome = "ALREADY_APPLIED"
	OUTCOME_REFUNDED        Outcome = "REFUNDED"
	OUTCOME_IGNORED         Outcome = "IGNORED"
)

type ApplyResult struct {
	Registration Registration
	Outcome      Outcome
}

// ApplyPaymentEvent turns a verified payment event into at most one persisted
// registration per payment id. An error means the event was not consumed and
// the caller must report failure so the provider can retry.
func ApplyPaymentEvent(ctx context.Context, event payment.Event, repo Repository, logger *slog.Logger) (ApplyResult, error) {
	ctx, span := tracer.Start(ctx, "ApplyPaymentEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", string(event.Provider)),
		attribute.String("payment.event_type", string(event.Type)),
		attribute.String("payment.id", event.ExternalPaymentID),
	)

	logger = logger.With(
		slog.String("provider", string(event.Provider)),
		slog.String("eventType", string(event.Type)),
		slog.String("externalEventId", event.ExternalEventID),
		slog.String("paymentId", event.ExternalPaymentID),
	)

	var result ApplyResult
	var err error
	switch event.Type {
	case payment.EVENT_COMPLETED:
		result, err = applyCompleted(ctx, event, repo, logger)
	case payment.EVENT_REFUNDED:
		result, err = applyRefunded(ctx, event, repo, logger)
	case payment.EVENT_EXPIRED, payment.EVENT_FAILED:
		logger.Info("Payment did not complete, nothing to persist")
		result = ApplyResult{Outcome: OUTCOME_IGNORED}
	default:
		err = NewInvalidPaymentEventError(fmt.Sprintf("Unknown payment event type %q", event.Type))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ApplyResult{}, err
	}

	span.SetAttributes(attribute.String("registration.outcome", string(result.Outcome)))
	return result, nil
}

func applyCompleted(ctx context.Context, event payment.Event, repo Repository, logger *slog.Logger) (ApplyResult, error) {
	if event.ExternalPaymentID == "" {
		return ApplyResult{}, NewInvalidPaymentEventError("Completed payment event has no payment id")
	}
	if event.Amount == nil {
		return ApplyResult{}, NewInvalidPaymentEventError("Completed payment event has no amount")
	}

	existing, err := repo.GetRegistrationByPaymentID(ctx, event.ExternalPaymentID)
	if err == nil {
		logger.Info("Payment already applied, returning existing registration", slog.String("registrationId", existing.ID.String()))
		return ApplyResult{Registration: existing, Outcome: OUTCOME_ALREADY_APPLIED}, nil
	}
	if !IsReason(err, REASON_REGISTRATION_DOES_NOT_EXIST) {
		return ApplyResult{}, err
	}

	reg, err := newRegistrationFromEvent(event, time.Now())
	if err != nil {
		return ApplyResult{}, err
	}

	err = repo.CreateRegistration(ctx, reg)
	if err != nil {
		if !IsReason(err, REASON_REGISTRATION_ALREADY_EXISTS) {
			return ApplyResult{}, err
		}

		// A concurrent delivery of the same event won the insert.
		existing, getErr := repo.GetRegistrationByPaymentID(ctx, event.ExternalPaymentID)
		if getErr != nil {
			return ApplyResult{}, getErr
		}
		logger.Info("Lost insert race to a concurrent delivery", slog.String("registrationId", existing.ID.String()))
		return ApplyResult{Registration: existing, Outcome: OUTCOME_ALREADY_APPLIED}, nil
	}

	logger.Info("Created registration from payment", slog.String("registrationId", reg.ID.String()))
	return ApplyResult{Registration: reg, Outcome: OUTCOME_CREATED}, nil
}

func applyRefunded(ctx context.Context, event payment.Event, repo Repository, logger *slog.Logger) (ApplyResult, error) {
	reg, err := findByAnyPaymentID(ctx, repo, event.ExternalPaymentID, event.AlternatePaymentID)
	if err != nil {
		if IsReason(err, REASON_REGISTRATION_DOES_NOT_EXIST) {
			logger.Warn("Refund received for a payment with no registration")
			return ApplyResult{Outcome: OUTCOME_IGNORED}, nil
		}
		return ApplyResult{}, err
	}

	if reg.PaymentStatus == PAYMENT_REFUNDED {
		return ApplyResult{Registration: reg, Outcome: OUTCOME_ALREADY_APPLIED}, nil
	}

	reg.PaymentStatus = PAYMENT_REFUNDED
	reg.RegistrationStatus = STATUS_CANCELLED
	reg.UpdatedAt = time.Now()
	reg.Version++

	err = repo.UpdateRegistration(ctx, reg)
	if err != nil {
		return ApplyResult{}, err
	}

	logger.Info("Marked registration refunded", slog.String("registrationId", reg.ID.String()))
	return ApplyResult{Registration: reg, Outcome: OUTCOME_REFUNDED}, nil
}

func findByAnyPaymentID(ctx context.Context, repo Repository, ids ...string) (Registration, error) {
	var lastErr error = NewRegistrationDoesNotExistsError("No payment id to look up", nil)
	for _, id := range ids {
		if id == "" {
			continue
		}
		reg, err := repo.GetRegistrationByPaymentID(ctx, id)
		if err == nil {
			return reg, nil
		}
		if !IsReason(err, REASON_REGISTRATION_DOES_NOT_EXIST) {
			return Registration{}, err
		}
		lastErr = err
	}
	return Registration{}, lastErr
}

func newRegistrationFromEvent(event payment.Event, now time.Time) (Registration, error) {
	email := strings.ToLower(strings.TrimSpace(firstNonEmpty(event.PayerEmail, event.MetadataValue("email", "customer_email"))))
	if email == "" {
		return Registration{}, NewInvalidPaymentEventError(fmt.Sprintf("Payment %q has no payer email", event.ExternalPaymentID))
	}

	fullName := firstNonEmpty(
		event.PayerName,
		event.MetadataValue("full_name", "name"),
		strings.TrimSpace(event.MetadataValue("first_name")+" "+event.MetadataValue("last_name")),
		nameFromEmail(email),
	)

	return Registration{
		ID:                 uuid.New(),
		Version:            1,
		Email:              email,
		FullName:           fullName,
		Phone:              nonEmpty(firstNonEmpty(event.PayerPhone, event.MetadataValue("phone"))),
		Country:            nonEmpty(strings.ToUpper(firstNonEmpty(event.PayerCountry, event.MetadataValue("country")))),
		PaymentStatus:      PAYMENT_COMPLETED,
		PaymentMethod:      event.Provider,
		PaymentID:          event.ExternalPaymentID,
		AlternatePaymentID: event.AlternatePaymentID,
		AmountPaid:         event.Amount,
		RegistrationStatus: STATUS_CONFIRMED,
		ProfileCompleted:   false,
		Attribution:        attributionFromMetadata(event.Metadata),
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

func attributionFromMetadata(metadata map[string]string) map[string]string {
	attribution := map[string]string{}
	for k, v := range metadata {
		if strings.HasPrefix(k, "utm_") && v != "" {
			attribution[k] = v
		}
	}
	return attribution
}

func nameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
