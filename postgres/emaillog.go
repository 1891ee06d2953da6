package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/jackc/pgx/v5"
)

var (
	_ notification.ReminderLog  = &DB{}
	_ notification.EmailHistory = &DB{}
)

// RecordReminder serialises writers for one (registration, email type) pair
// with a transaction-scoped advisory lock, then checks the cool-down.
func (d *DB) RecordReminder(ctx context.Context, rec notification.ReminderRecord, coolDown time.Duration) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return notification.NewFailedToWriteError("Failed to start email log transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, rec.RegistrationID.String()+"#"+string(rec.EmailType))
	if err != nil {
		return notification.NewFailedToWriteError("Failed to lock email log", err)
	}

	var tooSoon bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM email_log
			WHERE registration_id = $1 AND email_type = $2 AND sent_at > $3
		)
	`, rec.RegistrationID, string(rec.EmailType), rec.SentAt.Add(-coolDown)).Scan(&tooSoon)
	if err != nil {
		return notification.NewFailedToFetchError("Failed to check email cool-down", err)
	}
	if tooSoon {
		return notification.NewReminderTooSoonError(fmt.Sprintf("A %s email was sent to registration %q less than %s ago", rec.EmailType, rec.RegistrationID, coolDown), nil)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO email_log (registration_id, email_type, sent_at, message_id)
		VALUES ($1, $2, $3, $4)
	`, rec.RegistrationID, string(rec.EmailType), rec.SentAt, rec.MessageID)
	if err != nil {
		return notification.NewFailedToWriteError("Failed to insert email log", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return notification.NewFailedToWriteError("Failed to commit email log", err)
	}
	return nil
}

func (d *DB) ReleaseReminder(ctx context.Context, rec notification.ReminderRecord) error {
	_, err := d.pool.Exec(ctx, `
		DELETE FROM email_log
		WHERE registration_id = $1 AND email_type = $2 AND message_id = $3
	`, rec.RegistrationID, string(rec.EmailType), rec.MessageID)
	if err != nil {
		return notification.NewFailedToWriteError(fmt.Sprintf("Failed to release %s email for registration %q", rec.EmailType, rec.RegistrationID), err)
	}
	return nil
}

func (d *DB) GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType notification.EmailType) (notification.ReminderRecord, bool, error) {
	rec := notification.ReminderRecord{RegistrationID: registrationID, EmailType: emailType}
	err := d.pool.QueryRow(ctx, `
		SELECT sent_at, message_id FROM email_log
		WHERE registration_id = $1 AND email_type = $2
		ORDER BY sent_at DESC LIMIT 1
	`, registrationID, string(emailType)).Scan(&rec.SentAt, &rec.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notification.ReminderRecord{}, false, nil
		}
		return notification.ReminderRecord{}, false, notification.NewFailedToFetchError(fmt.Sprintf("Failed to fetch latest %s email for registration %q", emailType, registrationID), err)
	}
	return rec, true, nil
}

func (d *DB) GetEmailLog(ctx context.Context, registrationID uuid.UUID) ([]notification.ReminderRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT email_type, sent_at, message_id FROM email_log
		WHERE registration_id = $1 ORDER BY sent_at
	`, registrationID)
	if err != nil {
		return nil, notification.NewFailedToFetchError(fmt.Sprintf("Failed to fetch email log for registration %q", registrationID), err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notification.ReminderRecord, error) {
		rec := notification.ReminderRecord{RegistrationID: registrationID}
		var emailType string
		err := row.Scan(&emailType, &rec.SentAt, &rec.MessageID)
		rec.EmailType = notification.EmailType(emailType)
		return rec, err
	})
	if err != nil {
		return nil, notification.NewFailedToFetchError("Failed to scan email log", err)
	}
	return records, nil
}
