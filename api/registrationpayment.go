package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hanna-agency/workshop-registration/metrics"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/registration"
)

const maxBodyBytes = 65536

func (a *API) stripeWebhookMiddleware(path string) middlewareFunc {
	server := http.NewServeMux()
	server.HandleFunc(path, a.handleStripeWebhook)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler, matchedPath := server.Handler(r)

			if matchedPath == "" {
				next.ServeHTTP(w, r)
				return
			}

			handler.ServeHTTP(w, r)
		})
	}
}

func (a *API) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read stripe webhook body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := a.stripe.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		var paymentErr *payment.Error
		if errors.As(err, &paymentErr) {
			switch paymentErr.Reason {
			case payment.REASON_UNHANDLED_EVENT_TYPE:
				logger.Info("Ignoring stripe event", slog.String("reason", paymentErr.Message))
				writeJSON(w, http.StatusOK, webhookReceived{Received: true})
				return
			case payment.REASON_INVALID_SIGNATURE:
				metrics.RecordVerificationFailure(string(payment.PROVIDER_STRIPE), string(paymentErr.Reason))
				logger.Warn("Rejected stripe webhook", slog.String("error", err.Error()))
				writeError(w, http.StatusBadRequest, InvalidSignature, "Webhook signature verification failed")
				return
			case payment.REASON_MALFORMED_PAYLOAD, payment.REASON_INVALID_AMOUNT:
				metrics.RecordVerificationFailure(string(payment.PROVIDER_STRIPE), string(paymentErr.Reason))
				logger.Warn("Rejected stripe webhook", slog.String("error", err.Error()))
				writeError(w, http.StatusBadRequest, InvalidBody, "Webhook payload is malformed")
				return
			}
		}

		logger.Error("Failed to verify stripe webhook", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to process webhook")
		return
	}

	logger = logger.With(slog.String("externalEventId", event.ExternalEventID))

	seen, err := a.ledger.Seen(ctx, event.Provider, event.ExternalEventID)
	if err != nil {
		logger.Warn("Processed-event ledger unavailable, falling back to the store", slog.String("error", err.Error()))
	}
	if seen {
		metrics.RecordDuplicateDelivery(string(event.Provider))
		logger.Info("Stripe event already processed")
		writeJSON(w, http.StatusOK, webhookReceived{Received: true})
		return
	}

	_, err = a.applyAndConfirm(ctx, event, logger)
	if err != nil {
		if registration.IsReason(err, registration.REASON_INVALID_PAYMENT_EVENT) {
			writeError(w, http.StatusBadRequest, InvalidBody, "Payment event is missing required fields")
			return
		}
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to record payment")
		return
	}

	writeJSON(w, http.StatusOK, webhookReceived{Received: true})
}

type webhookReceived struct {
	Received bool `json:"received"`
}

type payPalCaptureRequest struct {
	OrderID     string `json:"orderID" validate:"required"`
	Email       string `json:"email" validate:"omitempty,email"`
	Name        string `json:"name" validate:"omitempty,max=200"`
	Phone       string `json:"phone" validate:"omitempty,max=50"`
	Country     string `json:"country" validate:"omitempty,max=64"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
	UTMTerm     string `json:"utm_term"`
	UTMContent  string `json:"utm_content"`
}

func (a *API) handlePayPalCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	var req payPalCaptureRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil {
		logger.Warn("Invalid paypal capture body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.Email = strings.TrimSpace(req.Email)

	err = a.validate.Struct(req)
	if err != nil {
		logger.Warn("Invalid paypal capture body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, InputValidationError, err.Error())
		return
	}

	logger = logger.With(slog.String("orderId", req.OrderID))

	result, err := a.paypal.Capture(ctx, req.OrderID)
	if err != nil {
		var rejected *payment.CaptureRejectedError
		if errors.As(err, &rejected) {
			metrics.RecordVerificationFailure(string(payment.PROVIDER_PAYPAL), string(payment.REASON_CAPTURE_REJECTED))
			logger.Warn("PayPal rejected capture", slog.Int("status", rejected.StatusCode))
			writeRaw(w, rejected.StatusCode, rejected.Body)
			return
		}

		var paymentErr *payment.Error
		if errors.As(err, &paymentErr) {
			metrics.RecordVerificationFailure(string(payment.PROVIDER_PAYPAL), string(paymentErr.Reason))
		}
		logger.Error("Failed to capture paypal order", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to capture order")
		return
	}

	event := mergeCaptureRequest(result.Event, req)

	_, err = a.applyAndConfirm(ctx, event, logger)
	if err != nil {
		if registration.IsReason(err, registration.REASON_INVALID_PAYMENT_EVENT) {
			writeError(w, http.StatusBadRequest, InvalidBody, "Payment captured but no email is known for the buyer")
			return
		}
		writeError(w, http.StatusInternalServerError, InternalError, "Payment captured but failed to record registration")
		return
	}

	writeRaw(w, result.StatusCode, result.RawResponse)
}

// mergeCaptureRequest lets details the buyer typed into the form win over what
// PayPal reports about the account.
func mergeCaptureRequest(event payment.Event, req payPalCaptureRequest) payment.Event {
	if req.Email != "" {
		event.PayerEmail = req.Email
	}
	if req.Name != "" {
		event.PayerName = req.Name
	}
	if req.Phone != "" {
		event.PayerPhone = req.Phone
	}
	if req.Country != "" {
		event.PayerCountry = req.Country
	}

	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	for k, v := range map[string]string{
		"utm_source":   req.UTMSource,
		"utm_medium":   req.UTMMedium,
		"utm_campaign": req.UTMCampaign,
		"utm_term":     req.UTMTerm,
		"utm_content":  req.UTMContent,
	} {
		if v != "" {
			event.Metadata[k] = v
		}
	}

	return event
}

// applyAndConfirm applies a verified event and sends the confirmation email
// only when this call created the registration. Email failures are logged and
// never change the HTTP outcome.
func (a *API) applyAndConfirm(ctx context.Context, event payment.Event, logger *slog.Logger) (registration.ApplyResult, error) {
	result, err := registration.ApplyPaymentEvent(ctx, event, a.db, logger)
	if err != nil {
		metrics.RecordPaymentEvent(string(event.Provider), string(event.Type), "error")
		logger.Error("Failed to apply payment event", slog.String("error", err.Error()))
		return registration.ApplyResult{}, err
	}
	metrics.RecordPaymentEvent(string(event.Provider), string(event.Type), string(result.Outcome))

	if result.Outcome == registration.OUTCOME_ALREADY_APPLIED {
		metrics.RecordDuplicateDelivery(string(event.Provider))
	}

	if result.Outcome == registration.OUTCOME_CREATED {
		sent := a.notifier.SendConfirmation(ctx, result.Registration)
		if !sent.Success {
			logger.Error("Failed to send confirmation email",
				slog.String("registrationId", result.Registration.ID.String()),
				slog.Any("error", sent.Err),
			)
		}
	}

	if event.ExternalEventID != "" {
		err = a.ledger.MarkProcessed(ctx, event.Provider, event.ExternalEventID)
		if err != nil {
			logger.Warn("Failed to mark event processed", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
