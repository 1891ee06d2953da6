package registration

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var noopLogger = slog.New(slog.DiscardHandler)

var _ Repository = &mockRegistrationRepository{}

type mockRegistrationRepository struct {
	CreateRegistrationFunc         func(ctx context.Context, reg Registration) error
	UpdateRegistrationFunc         func(ctx context.Context, reg Registration) error
	GetRegistrationFunc            func(ctx context.Context, id uuid.UUID) (Registration, error)
	GetRegistrationByPaymentIDFunc func(ctx context.Context, paymentID string) (Registration, error)
	GetAllRegistrationsFunc        func(ctx context.Context, limit int32, cursor *string) (GetAllRegistrationsResponse, error)
}

func (m *mockRegistrationRepository) CreateRegistration(ctx context.Context, reg Registration) error {
	if m.CreateRegistrationFunc != nil {
		return m.CreateRegistrationFunc(ctx, reg)
	}
	return nil
}

func (m *mockRegistrationRepository) UpdateRegistration(ctx context.Context, reg Registration) error {
	if m.UpdateRegistrationFunc != nil {
		return m.UpdateRegistrationFunc(ctx, reg)
	}
	return nil
}

func (m *mockRegistrationRepository) GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error) {
	if m.GetRegistrationFunc != nil {
		return m.GetRegistrationFunc(ctx, id)
	}
	return Registration{}, NewRegistrationDoesNotExistsError("not found", nil)
}

func (m *mockRegistrationRepository) GetRegistrationByPaymentID(ctx context.Context, paymentID string) (Registration, error) {
	if m.GetRegistrationByPaymentIDFunc != nil {
		return m.GetRegistrationByPaymentIDFunc(ctx, paymentID)
	}
	return Registration{}, NewRegistrationDoesNotExistsError("not found", nil)
}

func (m *mockRegistrationRepository) GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (GetAllRegistrationsResponse, error) {
	if m.GetAllRegistrationsFunc != nil {
		return m.GetAllRegistrationsFunc(ctx, limit, cursor)
	}
	return GetAllRegistrationsResponse{}, nil
}

// memoryRepository enforces payment id uniqueness the way the real stores do.
type memoryRepository struct {
	mu   sync.Mutex
	byID map[uuid.UUID]Registration
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byID: map[uuid.UUID]Registration{}}
}

func (m *memoryRepository) CreateRegistration(ctx context.Context, reg Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.PaymentID == reg.PaymentID {
			return NewRegistrationAlreadyExistsError("payment already registered", nil)
		}
	}
	m.byID[reg.ID] = reg
	return nil
}

func (m *memoryRepository) UpdateRegistration(ctx context.Context, reg Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[reg.ID]
	if !ok {
		return NewRegistrationDoesNotExistsError("not found", nil)
	}
	if existing.Version != reg.Version-1 {
		return NewVersionConflictError("stale version", nil)
	}
	m.byID[reg.ID] = reg
	return nil
}

func (m *memoryRepository) GetRegistration(ctx context.Context, id uuid.UUID) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.byID[id]
	if !ok {
		return Registration{}, NewRegistrationDoesNotExistsError("not found", nil)
	}
	return reg, nil
}

func (m *memoryRepository) GetRegistrationByPaymentID(ctx context.Context, paymentID string) (Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.byID {
		if reg.PaymentID == paymentID || (reg.AlternatePaymentID != "" && reg.AlternatePaymentID == paymentID) {
			return reg, nil
		}
	}
	return Registration{}, NewRegistrationDoesNotExistsError("not found", nil)
}

func (m *memoryRepository) GetAllRegistrations(ctx context.Context, limit int32, cursor *string) (GetAllRegistrationsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := GetAllRegistrationsResponse{}
	for _, reg := range m.byID {
		resp.Data = append(resp.Data, reg)
	}
	return resp, nil
}
