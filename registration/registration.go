package registration

import (
	"context"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/payment"
)

type Repository interface {
	CreateRegistration(ctx context.Context, reg Registration) error
	UpdateRegistration(ctx context.Context, reg Registration) error
	GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error)
	// GetRegistrationByPaymentID matches either the payment id or the
	// alternate payment id of a registration.
	GetRegistrationByPaymentID(ctx context.Context, paymentID string) (Registration, error)
	GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (GetAllRegistrationsResponse, error)
}

type GetAllRegistrationsResponse struct {
	Data        []Registration
	Cursor      *string
	HasNextPage bool
}

type PaymentStatus string

const (
	PAYMENT_COMPLETED PaymentStatus = "completed"
	PAYMENT_REFUNDED  PaymentStatus = "refunded"
)

type Status string

const (
	STATUS_CONFIRMED Status = "confirmed"
	STATUS_CANCELLED Status = "cancelled"
)

type Registration struct {
	ID                 uuid.UUID
	Version            int
	Email              string
	FullName           string
	Phone              *string
	Country            *string
	PaymentStatus      PaymentStatus
	PaymentMethod      payment.Provider
	PaymentID          string
	AlternatePaymentID string
	AmountPaid         *money.Money
	RegistrationStatus Status
	ProfileCompleted   bool
	Profile            Profile
	Attribution        map[string]string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Profile struct {
	Company   string
	JobTitle  string
	Goals     string
	UpdatedAt *time.Time
}

// AmountPaidMajorUnits is the amount in the currency's major unit (dollars,
// not cents).
func (r Registration) AmountPaidMajorUnits() float64 {
	if r.AmountPaid == nil {
		return 0
	}
	return r.AmountPaid.AsMajorUnits()
}

func (r Registration) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}
