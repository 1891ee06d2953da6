package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/metrics"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/sony/gobreaker/v2"
)

const DefaultCoolDown = 24 * time.Hour

type Dispatcher struct {
	sender      email.Sender
	fromAddress string
	log         ReminderLog
	breaker     *gobreaker.CircuitBreaker[struct{}]
	logger      *slog.Logger
	now         func() time.Time
	coolDown    time.Duration
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithCoolDown(coolDown time.Duration) Option {
	return func(d *Dispatcher) {
		d.coolDown = coolDown
	}
}

func WithBreakerSettings(settings gobreaker.Settings) Option {
	return func(d *Dispatcher) {
		d.breaker = newBreaker(settings, d.logger)
	}
}

func NewDispatcher(sender email.Sender, fromAddress string, log ReminderLog, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		fromAddress: fromAddress,
		log:         log,
		logger:      logger,
		now:         time.Now,
		coolDown:    DefaultCoolDown,
	}
	d.breaker = newBreaker(gobreaker.Settings{
		Name:        "email-sender",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	}, logger)

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func newBreaker(settings gobreaker.Settings, logger *slog.Logger) *gobreaker.CircuitBreaker[struct{}] {
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Email circuit breaker changed state", slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		metrics.RecordCircuitState(name, int(to))
	}
	return gobreaker.NewCircuitBreaker[struct{}](settings)
}

func (d *Dispatcher) CoolDown() time.Duration {
	return d.coolDown
}

func (d *Dispatcher) SendConfirmation(ctx context.Context, reg registration.Registration) Result {
	return d.SendReminder(ctx, reg, EMAIL_CONFIRMATION, nil)
}

// SendReminder renders emailType and claims its slot in the email log before
// handing it to the provider, so a record inside the cool-down stops the send
// with REASON_REMINDER_TOO_SOON. A send the provider rejects releases the
// claim and leaves the registration eligible again.
func (d *Dispatcher) SendReminder(ctx context.Context, reg registration.Registration, emailType EmailType, vars map[string]any) Result {
	logger := d.logger.With(
		slog.String("registrationId", reg.ID.String()),
		slog.String("emailType", string(emailType)),
	)

	if !emailType.IsValid() {
		return Result{Err: NewInvalidEmailTypeError(emailType)}
	}

	rendered, err := render(emailType, reg, vars)
	if err != nil {
		logger.Error("Failed to render email", slog.String("error", err.Error()))
		return Result{Err: err}
	}

	rec := ReminderRecord{
		RegistrationID: reg.ID,
		EmailType:      emailType,
		SentAt:         d.now().UTC(),
		MessageID:      uuid.NewString(),
	}
	logger = logger.With(slog.String("messageId", rec.MessageID))

	err = d.log.RecordReminder(ctx, rec, d.coolDown)
	if err != nil {
		if IsReason(err, REASON_REMINDER_TOO_SOON) {
			logger.Info("Skipping email, one was sent inside the cool-down")
		} else {
			logger.Error("Failed to claim email log slot", slog.String("error", err.Error()))
		}
		return Result{Err: err}
	}

	_, err = d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.sender.SendEmail(ctx, email.Email{
			FromAddress: d.fromAddress,
			ToAddresses: []string{reg.Email},
			Subject:     rendered.Subject,
			HTMLBody:    rendered.HTMLBody,
			TextBody:    rendered.TextBody,
		})
	})
	metrics.RecordEmail(string(emailType), err)
	if err != nil {
		logger.Error("Failed to send email", slog.String("error", err.Error()))
		releaseErr := d.log.ReleaseReminder(ctx, rec)
		if releaseErr != nil {
			logger.Error("Failed to release email log slot, registration stays in cool-down", slog.String("error", releaseErr.Error()))
		}
		return Result{Err: NewFailedToSendError("Email provider did not accept the message", err)}
	}

	logger.Info("Sent email")
	return Result{Success: true, MessageID: rec.MessageID}
}
