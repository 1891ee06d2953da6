package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/International-Combat-Archery-Alliance/email"
	"github.com/google/uuid"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ email.Sender = &mockEmailSender{}

type mockEmailSender struct {
	mu            sync.Mutex
	sent          []email.Email
	SendEmailFunc func(ctx context.Context, e email.Email) error
}

func (m *mockEmailSender) SendEmail(ctx context.Context, e email.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendEmailFunc != nil {
		if err := m.SendEmailFunc(ctx, e); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, e)
	return nil
}

var _ ReminderLog = &mockReminderLog{}

type mockReminderLog struct {
	mu                    sync.Mutex
	records               []ReminderRecord
	released              []ReminderRecord
	RecordReminderFunc    func(ctx context.Context, rec ReminderRecord, coolDown time.Duration) error
	ReleaseReminderFunc   func(ctx context.Context, rec ReminderRecord) error
	GetLatestReminderFunc func(ctx context.Context, registrationID uuid.UUID, emailType EmailType) (ReminderRecord, bool, error)
}

func (m *mockReminderLog) RecordReminder(ctx context.Context, rec ReminderRecord, coolDown time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordReminderFunc != nil {
		if err := m.RecordReminderFunc(ctx, rec, coolDown); err != nil {
			return err
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockReminderLog) ReleaseReminder(ctx context.Context, rec ReminderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReleaseReminderFunc != nil {
		if err := m.ReleaseReminderFunc(ctx, rec); err != nil {
			return err
		}
	}
	m.released = append(m.released, rec)
	kept := m.records[:0]
	for _, existing := range m.records {
		if existing.MessageID != rec.MessageID {
			kept = append(kept, existing)
		}
	}
	m.records = kept
	return nil
}

func (m *mockReminderLog) GetLatestReminder(ctx context.Context, registrationID uuid.UUID, emailType EmailType) (ReminderRecord, bool, error) {
	if m.GetLatestReminderFunc != nil {
		return m.GetLatestReminderFunc(ctx, registrationID, emailType)
	}
	return ReminderRecord{}, false, nil
}
