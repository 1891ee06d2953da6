package postgres

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/ptr"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/jackc/pgx/v5"
)

var _ registration.Repository = &DB{}

const registrationColumns = `id, version, email, full_name, phone, country, payment_status, payment_method,
	payment_id, COALESCE(alternate_payment_id, ''), amount_paid::text, currency, registration_status,
	profile_completed, profile, attribution, created_at, updated_at`

type profileRow struct {
	Company   string     `json:"company,omitempty"`
	JobTitle  string     `json:"jobTitle,omitempty"`
	Goals     string     `json:"goals,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func scanRegistration(row pgx.Row) (registration.Registration, error) {
	var reg registration.Registration
	var amount, currency string
	var profile profileRow
	var paymentStatus, paymentMethod, status string

	err := row.Scan(
		&reg.ID, &reg.Version, &reg.Email, &reg.FullName, &reg.Phone, &reg.Country,
		&paymentStatus, &paymentMethod, &reg.PaymentID, &reg.AlternatePaymentID,
		&amount, &currency, &status, &reg.ProfileCompleted, &profile, &reg.Attribution,
		&reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return registration.Registration{}, err
	}

	reg.PaymentStatus = registration.PaymentStatus(paymentStatus)
	reg.PaymentMethod = payment.Provider(paymentMethod)
	reg.RegistrationStatus = registration.Status(status)
	reg.Profile = registration.Profile{
		Company:   profile.Company,
		JobTitle:  profile.JobTitle,
		Goals:     profile.Goals,
		UpdatedAt: profile.UpdatedAt,
	}
	reg.AmountPaid, err = payment.ParseMajorUnits(amount, currency)
	if err != nil {
		return registration.Registration{}, fmt.Errorf("parsing stored amount %q %s: %w", amount, currency, err)
	}

	return reg, nil
}

func registrationArgs(reg registration.Registration) ([]any, error) {
	if reg.AmountPaid == nil {
		return nil, fmt.Errorf("registration %s has no amount", reg.ID)
	}
	attribution := reg.Attribution
	if attribution == nil {
		attribution = map[string]string{}
	}
	return []any{
		reg.ID, reg.Version, reg.Email, reg.FullName, reg.Phone, reg.Country,
		string(reg.PaymentStatus), string(reg.PaymentMethod), reg.PaymentID,
		ptr.NonEmptyString(reg.AlternatePaymentID),
		payment.FormatMajorUnits(reg.AmountPaid), reg.AmountPaid.Currency().Code,
		string(reg.RegistrationStatus), reg.ProfileCompleted,
		profileRow{
			Company:   reg.Profile.Company,
			JobTitle:  reg.Profile.JobTitle,
			Goals:     reg.Profile.Goals,
			UpdatedAt: reg.Profile.UpdatedAt,
		},
		attribution, reg.CreatedAt, reg.UpdatedAt,
	}, nil
}

func (d *DB) CreateRegistration(ctx context.Context, reg registration.Registration) error {
	args, err := registrationArgs(reg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to row", err)
	}

	_, err = d.pool.Exec(ctx, `
		INSERT INTO registrations (id, version, email, full_name, phone, country, payment_status,
			payment_method, payment_id, alternate_payment_id, amount_paid, currency, registration_status,
			profile_completed, profile, attribution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::numeric, $12, $13, $14, $15, $16, $17, $18)
	`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return registration.NewRegistrationAlreadyExistsError(fmt.Sprintf("Registration for payment %q already exists", reg.PaymentID), err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError("CreateRegistration timed out")
		}
		return registration.NewFailedToWriteError("Failed to insert registration", err)
	}

	return nil
}

func (d *DB) UpdateRegistration(ctx context.Context, reg registration.Registration) error {
	args, err := registrationArgs(reg)
	if err != nil {
		return registration.NewFailedToTranslateToDBModelError("Failed to translate registration to row", err)
	}

	tag, err := d.pool.Exec(ctx, `
		UPDATE registrations SET version = $2, email = $3, full_name = $4, phone = $5, country = $6,
			payment_status = $7, payment_method = $8, payment_id = $9, alternate_payment_id = $10,
			amount_paid = $11::numeric, currency = $12, registration_status = $13, profile_completed = $14,
			profile = $15, attribution = $16, created_at = $17, updated_at = $18
		WHERE id = $1 AND version = $2 - 1
	`, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return registration.NewTimeoutError("UpdateRegistration timed out")
		}
		return registration.NewFailedToWriteError("Failed to update registration", err)
	}

	if tag.RowsAffected() == 0 {
		_, getErr := d.GetRegistration(ctx, reg.ID)
		if getErr != nil {
			return getErr
		}
		return registration.NewVersionConflictError(fmt.Sprintf("Registration %q changed since it was read", reg.ID), nil)
	}

	return nil
}

func (d *DB) GetRegistration(ctx context.Context, id uuid.UUID) (registration.Registration, error) {
	reg, err := scanRegistration(d.pool.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.NewRegistrationDoesNotExistsError(fmt.Sprintf("Registration with id %q not found", id), nil)
		}
		return registration.Registration{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch registration with id %q", id), err)
	}
	return reg, nil
}

func (d *DB) GetRegistrationByPaymentID(ctx context.Context, paymentID string) (registration.Registration, error) {
	reg, err := scanRegistration(d.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE payment_id = $1 OR alternate_payment_id = $1 LIMIT 1`,
		paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return registration.Registration{}, registration.NewRegistrationDoesNotExistsError(fmt.Sprintf("No registration for payment %q", paymentID), nil)
		}
		return registration.Registration{}, registration.NewFailedToFetchError(fmt.Sprintf("Failed to fetch payment %q", paymentID), err)
	}
	return reg, nil
}

type listCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        uuid.UUID `json:"i"`
}

func encodeCursor(reg registration.Registration) string {
	b, _ := json.Marshal(listCursor{CreatedAt: reg.CreatedAt, ID: reg.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(cursor string) (listCursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return listCursor{}, fmt.Errorf("failed to b64 decode: %w", err)
	}
	var c listCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return listCursor{}, fmt.Errorf("failed to json decode: %w", err)
	}
	return c, nil
}

// GetAllRegistrations pages newest first using (created_at, id) as the keyset.
func (d *DB) GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (registration.GetAllRegistrationsResponse, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations`
	args := []any{}
	if cursor != nil {
		c, err := decodeCursor(*cursor)
		if err != nil {
			return registration.GetAllRegistrationsResponse{}, registration.NewInvalidCursorError("Invalid cursor", err)
		}
		query += ` WHERE (created_at, id) < ($1, $2)`
		args = append(args, c.CreatedAt, c.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	// Fetch 1 more than limit to check if there is another page or not
	args = append(args, limit+1)

	regs, err := d.queryRegistrations(ctx, query, args...)
	if err != nil {
		return registration.GetAllRegistrationsResponse{}, err
	}

	hasNextPage := len(regs) > int(limit)
	regs = regs[:min(int(limit), len(regs))]

	var newCursor *string
	if hasNextPage && len(regs) > 0 {
		newCursor = ptr.String(encodeCursor(regs[len(regs)-1]))
	}

	return registration.GetAllRegistrationsResponse{
		Data:        regs,
		Cursor:      newCursor,
		HasNextPage: hasNextPage,
	}, nil
}

func (d *DB) GetReminderCandidates(ctx context.Context, createdAfter, createdBefore time.Time) ([]registration.Registration, error) {
	return d.queryRegistrations(ctx, `
		SELECT `+registrationColumns+` FROM registrations
		WHERE payment_status = $1 AND profile_completed = FALSE
			AND created_at > $2 AND created_at <= $3
		ORDER BY created_at
	`, string(registration.PAYMENT_COMPLETED), createdAfter, createdBefore)
}

func (d *DB) queryRegistrations(ctx context.Context, query string, args ...any) ([]registration.Registration, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, registration.NewTimeoutError("Registration query timed out")
		}
		return nil, registration.NewFailedToFetchError("Failed to query registrations", err)
	}
	defer rows.Close()

	var regs []registration.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, registration.NewFailedToFetchError("Failed to scan registration", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, registration.NewFailedToFetchError("Failed to iterate registrations", err)
	}

	return regs, nil
}
