package mocks

import (
	"context"
	"time"

	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository simula el repositorio de pedidos.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, o *orderingDomain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*orderingDomain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderingDomain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListStaleSubmitted(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockBuyerRepository simula el repositorio de compradores.
type MockBuyerRepository struct {
	mock.Mock
}

func (m *MockBuyerRepository) GetByIdentity(ctx context.Context, identityGUID string) (*orderingDomain.Buyer, error) {
	args := m.Called(ctx, identityGUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*orderingDomain.Buyer), args.Error(1)
}

func (m *MockBuyerRepository) Save(ctx context.Context, b *orderingDomain.Buyer) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

// MockOutboxStore simula el store del outbox, incluida la vista del relayer.
type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) SaveEvent(ctx context.Context, entry sharedDomain.OutboxEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockOutboxStore) MarkInProgress(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockOutboxStore) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockOutboxStore) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockOutboxStore) RetrievePendingForTransaction(ctx context.Context, transactionID uuid.UUID) ([]sharedDomain.OutboxEntry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sharedDomain.OutboxEntry), args.Error(1)
}

func (m *MockOutboxStore) ListUnpublishedBefore(ctx context.Context, olderThan time.Time, limit int) ([]sharedDomain.OutboxEntry, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]sharedDomain.OutboxEntry), args.Error(1)
}

// MockClientRequestStore simula la tabla de dedup de comandos.
type MockClientRequestStore struct {
	mock.Mock
}

func (m *MockClientRequestStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockClientRequestStore) Create(ctx context.Context, id uuid.UUID, name string) error {
	args := m.Called(ctx, id, name)
	return args.Error(0)
}

// MockPublishedEventLog simula el volcado a analítica.
type MockPublishedEventLog struct {
	mock.Mock
}

func (m *MockPublishedEventLog) LogBatch(ctx context.Context, entries []sharedDomain.OutboxEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}
