package registration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Country  *string
	Company  string
	JobTitle string
	Goals    string
}

// CompleteProfile records the post-payment profile form. Once completed the
// registration permanently leaves profile reminder eligibility.
func CompleteProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate, repo Repository) (Registration, error) {
	reg, err := repo.GetRegistration(ctx, id)
	if err != nil {
		return Registration{}, err
	}

	if reg.PaymentStatus != PAYMENT_COMPLETED {
		return Registration{}, NewRegistrationNotPaidError(reg.PaymentStatus)
	}

	now := time.Now().UTC()
	if update.FullName != nil && *update.FullName != "" {
		reg.FullName = *update.FullName
	}
	if update.Phone != nil && *update.Phone != "" {
		reg.Phone = update.Phone
	}
	if update.Country != nil && *update.Country != "" {
		reg.Country = update.Country
	}
	reg.Profile = Profile{
		Company:   update.Company,
		JobTitle:  update.JobTitle,
		Goals:     update.Goals,
		UpdatedAt: &now,
	}
	reg.ProfileCompleted = true
	reg.UpdatedAt = now
	reg.Version++

	err = repo.UpdateRegistration(ctx, reg)
	if err != nil {
		return Registration{}, err
	}

	return reg, nil
}
