package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workshop_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	PaymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_payment_events_total",
			Help: "Payment events applied to registrations, by outcome",
		},
		[]string{"provider", "type", "outcome"},
	)

	PaymentVerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_payment_verification_failures_total",
			Help: "Payment events rejected before reaching the registration writer",
		},
		[]string{"provider", "reason"},
	)

	DuplicateDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_payment_duplicate_deliveries_total",
			Help: "Provider events recognised as redeliveries of an already applied event",
		},
		[]string{"provider"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_emails_sent_total",
			Help: "Emails dispatched, by type and result",
		},
		[]string{"email_type", "result"},
	)

	EmailCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "workshop_email_circuit_state",
			Help: "Email sender circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ReminderScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_reminder_scans_total",
			Help: "Profile reminder scans run, by result",
		},
		[]string{"result"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workshop_profile_reminders_total",
			Help: "Profile reminders attempted during scans, by result",
		},
		[]string{"result"},
	)
)

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

func RecordPaymentEvent(provider, eventType, outcome string) {
	PaymentEvents.WithLabelValues(provider, eventType, outcome).Inc()
}

func RecordVerificationFailure(provider, reason string) {
	PaymentVerificationFailures.WithLabelValues(provider, reason).Inc()
}

func RecordDuplicateDelivery(provider string) {
	DuplicateDeliveries.WithLabelValues(provider).Inc()
}

func RecordEmail(emailType string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	EmailsSent.WithLabelValues(emailType, result).Inc()
}

func RecordCircuitState(name string, state int) {
	EmailCircuitState.WithLabelValues(name).Set(float64(state))
}

func RecordReminderScan(sent, failed int, err error) {
	if err != nil {
		ReminderScans.WithLabelValues("error").Inc()
		return
	}
	ReminderScans.WithLabelValues("success").Inc()
	RemindersSent.WithLabelValues("sent").Add(float64(sent))
	RemindersSent.WithLabelValues("failed").Add(float64(failed))
}
