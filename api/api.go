package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/hanna-agency/workshop-registration/config"
	"github.com/hanna-agency/workshop-registration/ledger"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/hanna-agency/workshop-registration/reminder"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Environment = config.Environment

const (
	LOCAL = config.LOCAL
	PROD  = config.PROD
)

const stripeWebhookPath = "POST /webhooks/stripe"

type DB interface {
	registration.Repository
	notification.EmailHistory
}

type StripeVerifier interface {
	Verify(rawBody []byte, signatureHeader string) (payment.Event, error)
}

type PayPalCapturer interface {
	Capture(ctx context.Context, orderID string) (payment.CaptureResult, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, reg registration.Registration) notification.Result
}

type ReminderScanner interface {
	Scan(ctx context.Context) (reminder.ScanResult, error)
}

// Settings carries the request-facing knobs of the HTTP surface.
type Settings struct {
	Env                Environment
	CronSecret         string
	AdminAPIToken      string
	CORSAllowedOrigins []string
}

type API struct {
	db       DB
	logger   *slog.Logger
	settings Settings
	stripe   StripeVerifier
	paypal   PayPalCapturer
	notifier Notifier
	scanner  ReminderScanner
	ledger   ledger.Ledger
	validate *validator.Validate
	routes   *http.ServeMux
}

func NewAPI(
	db DB,
	logger *slog.Logger,
	settings Settings,
	stripe StripeVerifier,
	paypal PayPalCapturer,
	notifier Notifier,
	scanner ReminderScanner,
	processed ledger.Ledger,
) *API {
	if processed == nil {
		processed = ledger.NoopLedger{}
	}

	a := &API{
		db:       db,
		logger:   logger,
		settings: settings,
		stripe:   stripe,
		paypal:   paypal,
		notifier: notifier,
		scanner:  scanner,
		ledger:   processed,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	a.routes = http.NewServeMux()
	a.routes.HandleFunc(stripeWebhookPath, a.handleStripeWebhook)
	a.routes.HandleFunc("POST /paypal/capture", a.handlePayPalCapture)
	a.routes.HandleFunc("GET /cron/profile-reminders", a.handleProfileReminders)
	a.routes.HandleFunc("POST /cron/profile-reminders", a.handleProfileReminders)
	a.routes.HandleFunc("GET /registrations", a.handleGetRegistrations)
	a.routes.HandleFunc("POST /registrations/{id}/profile", a.handlePostRegistrationProfile)
	a.routes.HandleFunc("GET /registrations/{id}/emails", a.handleGetRegistrationEmails)
	a.routes.HandleFunc("GET /healthz", a.handleHealthz)
	a.routes.Handle("GET /metrics", promhttp.Handler())

	return a
}

// Handler returns the fully wrapped HTTP handler. Stripe webhooks are
// intercepted ahead of request validation so the raw body reaches the
// signature check untouched.
func (a *API) Handler() (http.Handler, error) {
	swagger, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	swagger.Servers = nil

	h := useMiddlewares(a.routes,
		a.openapiValidateMiddleware(swagger),
		a.stripeWebhookMiddleware(stripeWebhookPath),
		a.corsMiddleware(),
		a.loggingMiddleware(),
		a.requestContextMiddleware(),
	)

	return otelhttp.NewHandler(h, "workshop-registration"), nil
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
