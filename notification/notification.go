package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EmailType string

const (
	EMAIL_CONFIRMATION     EmailType = "confirmation"
	EMAIL_REMINDER_24H     EmailType = "reminder_24h"
	EMAIL_REMINDER_1H      EmailType = "reminder_1h"
	EMAIL_ACCESS_LINK      EmailType = "access_link"
	EMAIL_RECORDING        EmailType = "recording"
	EMAIL_FOLLOW_UP        EmailType = "follow_up"
	EMAIL_PROFILE_REMINDER EmailType = "profile_reminder"
)

var allEmailTypes = []EmailType{
	EMAIL_CONFIRMATION,
	EMAIL_REMINDER_24H,
	EMAIL_REMINDER_1H,
	EMAIL_ACCESS_LINK,
	EMAIL_RECORDING,
	EMAIL_FOLLOW_UP,
	EMAIL_PROFILE_REMINDER,
}

func (t EmailType) IsValid() bool {
	for _, v := range allEmailTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ReminderRecord is an append-only entry in the email log.
type ReminderRecord struct {
	RegistrationID uuid.UUID
	EmailType      EmailType
	SentAt         time.Time
	MessageID      string
}

type ReminderLog interface {
	// RecordReminder appends rec unless a record of the same type for the same
	// registration exists with SentAt less than coolDown before rec.SentAt, in
	// which case it fails with REASON_REMINDER_TOO_SOON.
	RecordReminder(ctx context.Context, rec ReminderRecord, coolDown time.Duration) error
	// ReleaseReminder removes a record written by RecordReminder whose email
	// was never delivered, matched on MessageID.
	ReleaseReminder(ctx context.Context, rec ReminderRecord) error
	GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType EmailType) (ReminderRecord, bool, error)
}

type EmailHistory interface {
	// GetEmailLog returns every record for a registration, oldest first.
	GetEmailLog(ctx context.Context, registrationID uuid.UUID) ([]ReminderRecord, error)
}

type Result struct {
	Success   bool
	MessageID string
	Err       error
}
