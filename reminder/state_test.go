package reminder

import (
	"testing"
	"time"

	"github.com/hanna-agency/workshop-registration/ptr"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/stretchr/testify/assert"
)

func TestStateOf(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		reg          registration.Registration
		lastReminder *time.Time
		want         State
		eligible     bool
	}{
		{
			name:     "paid two hours ago",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-2 * time.Hour)},
			want:     STATE_AWAITING_PROFILE,
			eligible: true,
		},
		{
			name:     "paid 59 minutes ago",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-59 * time.Minute)},
			want:     STATE_AWAITING_PROFILE,
			eligible: false,
		},
		{
			name:     "paid exactly one hour ago",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-time.Hour)},
			want:     STATE_AWAITING_PROFILE,
			eligible: true,
		},
		{
			name:     "paid 7 days and 1 second ago",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-MaxAge - time.Second)},
			want:     STATE_STALE,
			eligible: false,
		},
		{
			name:         "reminded 23 hours ago",
			reg:          registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-48 * time.Hour)},
			lastReminder: ptr.Time(now.Add(-23 * time.Hour)),
			want:         STATE_REMINDER_SENT,
			eligible:     false,
		},
		{
			name:         "reminded 25 hours ago",
			reg:          registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, CreatedAt: now.Add(-48 * time.Hour)},
			lastReminder: ptr.Time(now.Add(-25 * time.Hour)),
			want:         STATE_AWAITING_PROFILE,
			eligible:     true,
		},
		{
			name:     "profile completed",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_COMPLETED, ProfileCompleted: true, CreatedAt: now.Add(-2 * time.Hour)},
			want:     STATE_INELIGIBLE,
			eligible: false,
		},
		{
			name:     "refunded",
			reg:      registration.Registration{PaymentStatus: registration.PAYMENT_REFUNDED, CreatedAt: now.Add(-2 * time.Hour)},
			want:     STATE_INELIGIBLE,
			eligible: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateOf(tt.reg, tt.lastReminder, now))
			assert.Equal(t, tt.eligible, Eligible(tt.reg, tt.lastReminder, now))
		})
	}
}
