package reminder

import (
	"time"

	"github.com/hanna-agency/workshop-registration/registration"
)

const (
	MinAge   = time.Hour
	MaxAge   = 7 * 24 * time.Hour
	CoolDown = 24 * time.Hour
)

type State string

const (
	STATE_AWAITING_PROFILE State = "AWAITING_PROFILE"
	STATE_REMINDER_SENT    State = "REMINDER_SENT"
	STATE_STALE            State = "STALE"
	STATE_INELIGIBLE       State = "INELIGIBLE"
)

// StateOf derives where a registration sits in the profile reminder
// lifecycle. lastReminder is the SentAt of its latest profile reminder, if any.
func StateOf(reg registration.Registration, lastReminder *time.Time, now time.Time) State {
	if reg.ProfileCompleted || reg.PaymentStatus != registration.PAYMENT_COMPLETED {
		return STATE_INELIGIBLE
	}
	if reg.Age(now) >= MaxAge {
		return STATE_STALE
	}
	if lastReminder != nil && now.Sub(*lastReminder) < CoolDown {
		return STATE_REMINDER_SENT
	}
	return STATE_AWAITING_PROFILE
}

// Eligible reports whether a scan at now should send a profile reminder.
func Eligible(reg registration.Registration, lastReminder *time.Time, now time.Time) bool {
	return StateOf(reg, lastReminder, now) == STATE_AWAITING_PROFILE && reg.Age(now) >= MinAge
}
