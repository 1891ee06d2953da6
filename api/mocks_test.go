package api

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/payment"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/hanna-agency/workshop-registration/reminder"
)

var noopLogger = slog.New(slog.DiscardHandler)

type mockDB struct {
	mu   sync.Mutex
	regs map[uuid.UUID]registration.Registration

	CreateRegistrationFunc  func(ctx context.Context, reg registration.Registration) error
	GetAllRegistrationsFunc func(ctx context.Context, limit int32, cursor *string) (registration.GetAllRegistrationsResponse, error)
	GetEmailLogFunc         func(ctx context.Context, registrationID uuid.UUID) ([]notification.ReminderRecord, error)
}

func newMockDB() *mockDB {
	return &mockDB{regs: map[uuid.UUID]registration.Registration{}}
}

func (m *mockDB) CreateRegistration(ctx context.Context, reg registration.Registration) error {
	if m.CreateRegistrationFunc != nil {
		return m.CreateRegistrationFunc(ctx, reg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.regs {
		if existing.PaymentID == reg.PaymentID {
			return registration.NewRegistrationAlreadyExistsError("payment id taken", nil)
		}
	}
	m.regs[reg.ID] = reg
	return nil
}

func (m *mockDB) UpdateRegistration(ctx context.Context, reg registration.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.regs[reg.ID]
	if !ok {
		return registration.NewRegistrationDoesNotExistsError("missing", nil)
	}
	if existing.Version != reg.Version-1 {
		return registration.NewVersionConflictError("stale", nil)
	}
	m.regs[reg.ID] = reg
	return nil
}

func (m *mockDB) GetRegistration(ctx context.Context, id uuid.UUID) (registration.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return registration.Registration{}, registration.NewRegistrationDoesNotExistsError("missing", nil)
	}
	return reg, nil
}

func (m *mockDB) GetRegistrationByPaymentID(ctx context.Context, paymentID string) (registration.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		if reg.PaymentID == paymentID || (reg.AlternatePaymentID != "" && reg.AlternatePaymentID == paymentID) {
			return reg, nil
		}
	}
	return registration.Registration{}, registration.NewRegistrationDoesNotExistsError("missing", nil)
}

func (m *mockDB) GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (registration.GetAllRegistrationsResponse, error) {
	if m.GetAllRegistrationsFunc != nil {
		return m.GetAllRegistrationsFunc(ctx, limit, cursor)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	data := make([]registration.Registration, 0, len(m.regs))
	for _, reg := range m.regs {
		data = append(data, reg)
	}
	sort.Slice(data, func(i, j int) bool { return data[i].CreatedAt.After(data[j].CreatedAt) })
	if int32(len(data)) > limit {
		data = data[:limit]
	}
	return registration.GetAllRegistrationsResponse{Data: data}, nil
}

func (m *mockDB) GetEmailLog(ctx context.Context, registrationID uuid.UUID) ([]notification.ReminderRecord, error) {
	if m.GetEmailLogFunc != nil {
		return m.GetEmailLogFunc(ctx, registrationID)
	}
	return nil, nil
}

func (m *mockDB) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}

func (m *mockDB) only() registration.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		return reg
	}
	return registration.Registration{}
}

type mockStripeVerifier struct {
	VerifyFunc func(rawBody []byte, signatureHeader string) (payment.Event, error)
}

func (m *mockStripeVerifier) Verify(rawBody []byte, signatureHeader string) (payment.Event, error) {
	return m.VerifyFunc(rawBody, signatureHeader)
}

type mockPayPal struct {
	CaptureFunc func(ctx context.Context, orderID string) (payment.CaptureResult, error)
}

func (m *mockPayPal) Capture(ctx context.Context, orderID string) (payment.CaptureResult, error) {
	return m.CaptureFunc(ctx, orderID)
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []registration.Registration

	Result *notification.Result
}

func (m *mockNotifier) SendConfirmation(ctx context.Context, reg registration.Registration) notification.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, reg)
	if m.Result != nil {
		return *m.Result
	}
	return notification.Result{Success: true, MessageID: uuid.NewString()}
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockScanner struct {
	ScanFunc func(ctx context.Context) (reminder.ScanResult, error)
}

func (m *mockScanner) Scan(ctx context.Context) (reminder.ScanResult, error) {
	return m.ScanFunc(ctx)
}

type mockLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{seen: map[string]bool{}}
}

func (m *mockLedger) Seen(ctx context.Context, provider payment.Provider, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[string(provider)+":"+eventID], nil
}

func (m *mockLedger) MarkProcessed(ctx context.Context, provider payment.Provider, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[string(provider)+":"+eventID] = true
	return nil
}

type testDeps struct {
	db       *mockDB
	stripe   *mockStripeVerifier
	paypal   *mockPayPal
	notifier *mockNotifier
	scanner  *mockScanner
	ledger   *mockLedger
}

func newTestAPI(settings Settings) (*API, *testDeps) {
	deps := &testDeps{
		db: newMockDB(),
		stripe: &mockStripeVerifier{
			VerifyFunc: func(rawBody []byte, signatureHeader string) (payment.Event, error) {
				return payment.Event{}, payment.NewInvalidSignatureError("no signature configured", nil)
			},
		},
		paypal: &mockPayPal{
			CaptureFunc: func(ctx context.Context, orderID string) (payment.CaptureResult, error) {
				return payment.CaptureResult{}, payment.NewProviderUnreachableError("not configured", nil)
			},
		},
		notifier: &mockNotifier{},
		scanner: &mockScanner{
			ScanFunc: func(ctx context.Context) (reminder.ScanResult, error) {
				return reminder.ScanResult{}, nil
			},
		},
		ledger: newMockLedger(),
	}

	a := NewAPI(deps.db, noopLogger, settings, deps.stripe, deps.paypal, deps.notifier, deps.scanner, deps.ledger)
	return a, deps
}
