package mocks

import (
	"context"

	sharedEvents "github.com/davicafu/ordelab/shared/events"
	"github.com/stretchr/testify/mock"
)

// MockPublisher simula el publisher del bus de eventos.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, evt sharedEvents.IntegrationEvent) error {
	args := m.Called(ctx, evt)
	return args.Error(0)
}
