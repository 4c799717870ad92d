package events

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_DecodeDevuelveElTipoConcreto(t *testing.T) {
	registry := NewOrderingRegistry()
	orderID := uuid.New()

	envelope, err := NewIntegrationEvent(StockRejected, StockRejectedEvent{
		OrderID: orderID,
		RejectedItems: []RejectedStockItem{
			{ProductID: 1, ProductName: "Taza"},
		},
	})
	assert.NoError(t, err)

	decoded, err := registry.Decode(envelope.Type, envelope.Data)
	assert.NoError(t, err)

	evt, ok := decoded.(StockRejectedEvent)
	assert.True(t, ok, "debe decodificar al tipo registrado, no a un mapa genérico")
	assert.Equal(t, orderID, evt.OrderID)
	assert.Equal(t, "Taza", evt.RejectedItems[0].ProductName)
}

func TestRegistry_TipoDesconocido(t *testing.T) {
	registry := NewOrderingRegistry()

	_, err := registry.Decode("ordering.does_not_exist", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
	assert.False(t, registry.Known("ordering.does_not_exist"))
}

func TestRegistry_PayloadCorrupto(t *testing.T) {
	registry := NewOrderingRegistry()

	_, err := registry.Decode(OrderPaid, []byte(`{"order_id": 42}`))
	assert.Error(t, err, "un desajuste de esquema debe fallar, no devolver cero")
}

func TestOrderingRegistry_CubreTodoElWorkflow(t *testing.T) {
	registry := NewOrderingRegistry()

	for _, eventType := range []string{
		OrderStarted, GracePeriodConfirmed, OrderAwaitingValidation,
		StockConfirmed, StockRejected, PaymentSucceeded, PaymentFailed,
		OrderPaid, OrderShipped, OrderCancelled, BuyerPaymentVerified,
	} {
		assert.True(t, registry.Known(eventType), eventType)
	}
}
