package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("PAYPAL_CLIENT_ID", "client")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
}

func requireReason(t *testing.T, err error, reason ErrorReason) {
	t.Helper()
	var configErr *Error
	require.True(t, errors.As(err, &configErr), "expected *config.Error, got %v", err)
	assert.Equal(t, reason, configErr.Reason)
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, LOCAL, cfg.Env)
		assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
		assert.Equal(t, STORE_DYNAMO, cfg.StoreBackend)
		assert.Equal(t, time.Hour, cfg.ReminderScanInterval)
		assert.Equal(t, "https://api-m.sandbox.paypal.com", cfg.PayPalBaseURL)
		assert.Empty(t, cfg.CronSecret)
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ENV", "PROD")
		t.Setenv("PORT", "9090")
		t.Setenv("STORE_BACKEND", "postgres")
		t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
		t.Setenv("REMINDER_SCAN_INTERVAL", "15m")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.test,https://b.test")
		t.Setenv("PAYPAL_BASE_URL", "https://api-m.paypal.com/")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, PROD, cfg.Env)
		assert.Equal(t, STORE_POSTGRES, cfg.StoreBackend)
		assert.Equal(t, 15*time.Minute, cfg.ReminderScanInterval)
		assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "https://api-m.paypal.com", cfg.PayPalBaseURL)
	})

	t.Run("missing stripe secret fails fast", func(t *testing.T) {
		t.Setenv("PAYPAL_CLIENT_ID", "client")
		t.Setenv("PAYPAL_CLIENT_SECRET", "secret")

		_, err := Load()
		requireReason(t, err, REASON_MISSING_REQUIRED_CONFIG)
		assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
	})

	t.Run("empty paypal secret counts as missing", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PAYPAL_CLIENT_SECRET", "")

		_, err := Load()
		requireReason(t, err, REASON_MISSING_REQUIRED_CONFIG)
	})

	t.Run("postgres backend needs a database url", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_BACKEND", "postgres")

		_, err := Load()
		requireReason(t, err, REASON_MISSING_REQUIRED_CONFIG)
	})

	t.Run("unknown environment", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ENV", "STAGING")

		_, err := Load()
		requireReason(t, err, REASON_INVALID_CONFIG)
	})

	t.Run("unparseable interval", func(t *testing.T) {
		setRequired(t)
		t.Setenv("REMINDER_SCAN_INTERVAL", "often")

		_, err := Load()
		requireReason(t, err, REASON_INVALID_CONFIG)
	})
}
