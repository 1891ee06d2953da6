package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/registration"
)

var noopLogger = slog.New(slog.DiscardHandler)

type mockCandidateStore struct {
	registrations []registration.Registration
	err           error
}

// GetReminderCandidates applies the same window the real stores query.
func (m *mockCandidateStore) GetReminderCandidates(ctx context.Context, createdAfter, createdBefore time.Time) ([]registration.Registration, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []registration.Registration
	for _, reg := range m.registrations {
		if reg.PaymentStatus != registration.PAYMENT_COMPLETED || reg.ProfileCompleted {
			continue
		}
		if reg.CreatedAt.After(createdAfter) && !reg.CreatedAt.After(createdBefore) {
			out = append(out, reg)
		}
	}
	return out, nil
}

type memoryReminderLog struct {
	mu      sync.Mutex
	records []notification.ReminderRecord
}

func (m *memoryReminderLog) RecordReminder(ctx context.Context, rec notification.ReminderRecord, coolDown time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.RegistrationID == rec.RegistrationID && existing.EmailType == rec.EmailType && rec.SentAt.Sub(existing.SentAt) < coolDown {
			return notification.NewReminderTooSoonError("too soon", nil)
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryReminderLog) ReleaseReminder(ctx context.Context, rec notification.ReminderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, existing := range m.records {
		if existing.MessageID != rec.MessageID {
			kept = append(kept, existing)
		}
	}
	m.records = kept
	return nil
}

func (m *memoryReminderLog) GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType notification.EmailType) (notification.ReminderRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest notification.ReminderRecord
	found := false
	for _, rec := range m.records {
		if rec.RegistrationID == registrationID && rec.EmailType == emailType && (!found || rec.SentAt.After(latest.SentAt)) {
			latest = rec
			found = true
		}
	}
	return latest, found, nil
}

// staleReadLog never sees existing records on read, like a replica that read
// the log just before another one wrote to it.
type staleReadLog struct {
	*memoryReminderLog
}

func (s staleReadLog) GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType notification.EmailType) (notification.ReminderRecord, bool, error) {
	return notification.ReminderRecord{}, false, nil
}

func (m *memoryReminderLog) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type mockEmailSender struct {
	mu            sync.Mutex
	sent          []email.Email
	SendEmailFunc func(ctx context.Context, e email.Email) error
}

func (m *mockEmailSender) SendEmail(ctx context.Context, e email.Email) error {
	if m.SendEmailFunc != nil {
		if err := m.SendEmailFunc(ctx, e); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
