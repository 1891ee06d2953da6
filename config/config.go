package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Environment string

const (
	LOCAL Environment = "LOCAL"
	PROD  Environment = "PROD"
)

type StoreBackend string

const (
	STORE_DYNAMO   StoreBackend = "dynamo"
	STORE_POSTGRES StoreBackend = "postgres"
)

type Config struct {
	Env  Environment `env:"ENV" envDefault:"LOCAL" validate:"oneof=LOCAL PROD"`
	Host string      `env:"HOST" envDefault:"0.0.0.0"`
	Port string      `env:"PORT" envDefault:"8080" validate:"numeric"`

	StoreBackend    StoreBackend `env:"STORE_BACKEND" envDefault:"dynamo" validate:"oneof=dynamo postgres"`
	DynamoTableName string       `env:"DYNAMO_TABLE_NAME" envDefault:"WorkshopRegistration"`
	// DynamoEndpoint points at dynamodb-local during development.
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT" validate:"omitempty,url"`
	DatabaseURL    string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	// RedisURL is optional; without it every redelivery is resolved by the store.
	RedisURL string `env:"REDIS_URL"`

	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`
	PayPalClientID      string `env:"PAYPAL_CLIENT_ID,required,notEmpty"`
	PayPalClientSecret  string `env:"PAYPAL_CLIENT_SECRET,required,notEmpty"`
	PayPalBaseURL       string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com" validate:"url"`

	EmailFromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"Workshop <hello@workshop.test>"`
	ProfileURL       string `env:"PROFILE_URL" validate:"omitempty,url"`

	CronSecret    string `env:"CRON_SECRET"`
	AdminAPIToken string `env:"ADMIN_API_TOKEN"`

	ReminderScanInterval time.Duration `env:"REMINDER_SCAN_INTERVAL" envDefault:"1h" validate:"gt=0"`
	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads the process environment. Any missing secret or malformed value
// is reported as a *Error before the server starts.
func Load() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	if err != nil {
		return Config{}, translateParseError(err)
	}

	cfg.PayPalBaseURL = strings.TrimRight(cfg.PayPalBaseURL, "/")

	err = validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			if validationErrs[0].Tag() == "required_if" {
				return Config{}, NewMissingRequiredConfigError(strings.Join(fields, ", "), err)
			}
			return Config{}, NewInvalidConfigError(strings.Join(fields, ", "), err)
		}
		return Config{}, NewInvalidConfigError("Config failed validation", err)
	}

	return cfg, nil
}

func translateParseError(err error) *Error {
	var aggErr env.AggregateError
	if !errors.As(err, &aggErr) {
		return NewInvalidConfigError("Failed to parse environment", err)
	}

	var missing []string
	for _, e := range aggErr.Errors {
		var notSet env.VarIsNotSetError
		var empty env.EmptyVarError
		switch {
		case errors.As(e, &notSet):
			missing = append(missing, notSet.Key)
		case errors.As(e, &empty):
			missing = append(missing, empty.Key)
		}
	}
	if len(missing) > 0 {
		return NewMissingRequiredConfigError(strings.Join(missing, ", "), err)
	}
	return NewInvalidConfigError("Failed to parse environment", err)
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
