package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/ptr"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistration(paymentID string, createdAt time.Time) registration.Registration {
	return registration.Registration{
		ID:                 uuid.New(),
		Version:            1,
		Email:              "ann@example.com",
		FullName:           "Ann Lee",
		Country:            ptr.String("US"),
		PaymentStatus:      registration.PAYMENT_COMPLETED,
		PaymentMethod:      payment.PROVIDER_PAYPAL,
		PaymentID:          paymentID,
		AmountPaid:         money.New(10010, "USD"),
		RegistrationStatus: registration.STATUS_CONFIRMED,
		Attribution:        map[string]string{"utm_campaign": "spring"},
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestCreateRegistration(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the amount in major units", func(t *testing.T) {
		resetTables(ctx)
		reg := newTestRegistration("ORDER-1", time.Now().UTC().Truncate(time.Microsecond))
		require.NoError(t, db.CreateRegistration(ctx, reg))

		var stored string
		require.NoError(t, db.pool.QueryRow(ctx, `SELECT amount_paid::text FROM registrations WHERE id = $1`, reg.ID).Scan(&stored))
		assert.Equal(t, "100.100", stored)

		got, err := db.GetRegistration(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10010), got.AmountPaid.Amount())
		assert.Equal(t, "USD", got.AmountPaid.Currency().Code)
		assert.Equal(t, reg.Attribution, got.Attribution)
		assert.Equal(t, reg.Country, got.Country)
		assert.Nil(t, got.Phone)
		assert.Equal(t, "", got.AlternatePaymentID)
		assert.True(t, reg.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("payment id is unique", func(t *testing.T) {
		resetTables(ctx)
		require.NoError(t, db.CreateRegistration(ctx, newTestRegistration("ORDER-DUP", time.Now().UTC())))

		err := db.CreateRegistration(ctx, newTestRegistration("ORDER-DUP", time.Now().UTC()))
		assert.True(t, registration.IsReason(err, registration.REASON_REGISTRATION_ALREADY_EXISTS))
	})
}

func TestGetRegistrationByPaymentID(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx)

	reg := newTestRegistration("cs_1", time.Now().UTC())
	reg.AlternatePaymentID = "pi_1"
	require.NoError(t, db.CreateRegistration(ctx, reg))

	got, err := db.GetRegistrationByPaymentID(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	_, err = db.GetRegistrationByPaymentID(ctx, "cs_missing")
	assert.True(t, registration.IsReason(err, registration.REASON_REGISTRATION_DOES_NOT_EXIST))
}

func TestUpdateRegistration(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx)

	reg := newTestRegistration("ORDER-UPD", time.Now().UTC())
	require.NoError(t, db.CreateRegistration(ctx, reg))

	now := time.Now().UTC()
	reg.ProfileCompleted = true
	reg.Profile = registration.Profile{Company: "Acme", UpdatedAt: &now}
	reg.Version++
	require.NoError(t, db.UpdateRegistration(ctx, reg))

	got, err := db.GetRegistration(ctx, reg.ID)
	require.NoError(t, err)
	assert.True(t, got.ProfileCompleted)
	assert.Equal(t, "Acme", got.Profile.Company)
	assert.Equal(t, 2, got.Version)

	err = db.UpdateRegistration(ctx, reg)
	assert.True(t, registration.IsReason(err, registration.REASON_VERSION_CONFLICT))

	missing := newTestRegistration("ORDER-NONE", time.Now().UTC())
	missing.Version = 2
	err = db.UpdateRegistration(ctx, missing)
	assert.True(t, registration.IsReason(err, registration.REASON_REGISTRATION_DOES_NOT_EXIST))
}

func TestGetAllRegistrations(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx)

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, db.CreateRegistration(ctx, newTestRegistration(fmt.Sprintf("ORDER-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	first, err := db.GetAllRegistrations(ctx, 3, nil)
	require.NoError(t, err)
	require.Len(t, first.Data, 3)
	assert.True(t, first.HasNextPage)
	require.NotNil(t, first.Cursor)
	assert.Equal(t, "ORDER-4", first.Data[0].PaymentID)

	second, err := db.GetAllRegistrations(ctx, 3, first.Cursor)
	require.NoError(t, err)
	require.Len(t, second.Data, 2)
	assert.False(t, second.HasNextPage)
	assert.Equal(t, "ORDER-1", second.Data[0].PaymentID)

	_, err = db.GetAllRegistrations(ctx, 3, ptr.String("%%%"))
	assert.True(t, registration.IsReason(err, registration.REASON_INVALID_CURSOR))
}

func TestGetReminderCandidates(t *testing.T) {
	ctx := context.Background()
	resetTables(ctx)

	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	inWindow := newTestRegistration("ORDER-IN", now.Add(-2*time.Hour))
	tooNew := newTestRegistration("ORDER-NEW", now.Add(-59*time.Minute))
	tooOld := newTestRegistration("ORDER-OLD", now.Add(-7*24*time.Hour-time.Second))
	completed := newTestRegistration("ORDER-DONE", now.Add(-3*time.Hour))
	completed.ProfileCompleted = true

	for _, reg := range []registration.Registration{inWindow, tooNew, tooOld, completed} {
		require.NoError(t, db.CreateRegistration(ctx, reg))
	}

	candidates, err := db.GetReminderCandidates(ctx, now.Add(-7*24*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, inWindow.ID, candidates[0].ID)
}
