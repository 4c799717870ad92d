package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sharedEvents "github.com/davicafu/ordelab/shared/events"
	"github.com/davicafu/ordelab/tests/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestWatchdog_RunOnce_PublicaUnEventoPorPedidoCaducado(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	publisher := new(mocks.MockPublisher)

	staleIDs := []uuid.UUID{uuid.New(), uuid.New()}
	orders.On("ListStaleSubmitted", mock.Anything, mock.AnythingOfType("time.Time")).Return(staleIDs, nil).Once()

	var published []sharedEvents.IntegrationEvent
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("events.IntegrationEvent")).
		Run(func(args mock.Arguments) {
			published = append(published, args.Get(1).(sharedEvents.IntegrationEvent))
		}).Return(nil).Twice()

	w := NewGracePeriodWatchdog(orders, publisher, time.Minute, time.Second, zap.NewNop())
	w.RunOnce(context.Background())

	orders.AssertExpectations(t)
	publisher.AssertExpectations(t)

	if assert.Len(t, published, 2) {
		for i, evt := range published {
			assert.Equal(t, sharedEvents.GracePeriodConfirmed, evt.Type)
			var payload sharedEvents.GracePeriodConfirmedEvent
			assert.NoError(t, json.Unmarshal(evt.Data, &payload))
			assert.Equal(t, staleIDs[i], payload.OrderID)
		}
	}
}

func TestWatchdog_RunOnce_VentanaDeGracia(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	publisher := new(mocks.MockPublisher)

	grace := 5 * time.Minute
	var olderThan time.Time
	orders.On("ListStaleSubmitted", mock.Anything, mock.AnythingOfType("time.Time")).
		Run(func(args mock.Arguments) {
			olderThan = args.Get(1).(time.Time)
		}).Return([]uuid.UUID{}, nil).Once()

	w := NewGracePeriodWatchdog(orders, publisher, grace, time.Second, zap.NewNop())
	w.RunOnce(context.Background())

	// El corte es ahora - gracia, con un margen amplio para el reloj del test.
	assert.WithinDuration(t, time.Now().UTC().Add(-grace), olderThan, 5*time.Second)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestWatchdog_RunOnce_SigueConElRestoSiUnPublishFalla(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	publisher := new(mocks.MockPublisher)

	staleIDs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	orders.On("ListStaleSubmitted", mock.Anything, mock.Anything).Return(staleIDs, nil).Once()

	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Twice()

	w := NewGracePeriodWatchdog(orders, publisher, time.Minute, time.Second, zap.NewNop())
	w.RunOnce(context.Background())

	publisher.AssertNumberOfCalls(t, "Publish", 3)
}

func TestWatchdog_RunOnce_ErrorDeConsultaNoPublicaNada(t *testing.T) {
	orders := new(mocks.MockOrderRepository)
	publisher := new(mocks.MockPublisher)

	orders.On("ListStaleSubmitted", mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

	w := NewGracePeriodWatchdog(orders, publisher, time.Minute, time.Second, zap.NewNop())
	w.RunOnce(context.Background())

	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
