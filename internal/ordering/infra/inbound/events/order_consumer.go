package events

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/ordelab/internal/ordering/application"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
)

// OrderConsumer traduce los eventos de integración entrantes (periodo de
// gracia, stock, pagos) a comandos identificados del servicio de pedidos.
// El id del sobre es el id de petición: si el broker redelivera el mismo
// evento, el comando se deduplica solo.
type OrderConsumer struct {
	commands *application.IdentifiedOrderCommands
	log      *zap.Logger
}

func NewOrderConsumer(commands *application.IdentifiedOrderCommands, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		commands: commands,
		log:      logger,
	}
}

// Register vincula la cola del servicio a los tipos que le interesan.
func (c *OrderConsumer) Register(sub sharedBus.Subscriber) {
	sub.Bind(sharedEvents.GracePeriodConfirmed,
		sharedBus.Typed(c.onGracePeriodConfirmed))
	sub.Bind(sharedEvents.StockConfirmed,
		sharedBus.Typed(c.onStockConfirmed))
	sub.Bind(sharedEvents.StockRejected,
		sharedBus.Typed(c.onStockRejected))
	sub.Bind(sharedEvents.PaymentSucceeded,
		sharedBus.Typed(c.onPaymentSucceeded))
	sub.Bind(sharedEvents.PaymentFailed,
		sharedBus.Typed(c.onPaymentFailed))
}

// requestID saca el id del sobre en curso. Sin sobre no hay dedup posible
// y el comando no debe ejecutarse.
func requestID(ctx context.Context) (uuid.UUID, error) {
	envelope, ok := sharedEvents.EnvelopeFrom(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("no event envelope in context")
	}
	return envelope.ID, nil
}

func (c *OrderConsumer) onGracePeriodConfirmed(ctx context.Context, evt sharedEvents.GracePeriodConfirmedEvent) error {
	reqID, err := requestID(ctx)
	if err != nil {
		return err
	}

	changed, err := c.commands.SetAwaitingValidation(ctx, reqID, application.SetAwaitingValidationCommand{OrderID: evt.OrderID})
	if err != nil {
		return err
	}
	if !changed {
		// El pedido ya no estaba en submitted: gana el primero que escribe.
		c.log.Info("Periodo de gracia confirmado sobre un pedido ya movido, no-op",
			zap.String("order_id", evt.OrderID.String()))
	}
	return nil
}

func (c *OrderConsumer) onStockConfirmed(ctx context.Context, evt sharedEvents.StockConfirmedEvent) error {
	reqID, err := requestID(ctx)
	if err != nil {
		return err
	}

	_, err = c.commands.SetStockConfirmed(ctx, reqID, application.SetStockConfirmedCommand{OrderID: evt.OrderID})
	return err
}

func (c *OrderConsumer) onStockRejected(ctx context.Context, evt sharedEvents.StockRejectedEvent) error {
	reqID, err := requestID(ctx)
	if err != nil {
		return err
	}

	rejected := make([]int, 0, len(evt.RejectedItems))
	for _, item := range evt.RejectedItems {
		rejected = append(rejected, item.ProductID)
	}

	_, err = c.commands.SetStockRejected(ctx, reqID, application.SetStockRejectedCommand{
		OrderID:  evt.OrderID,
		Rejected: rejected,
	})
	return err
}

func (c *OrderConsumer) onPaymentSucceeded(ctx context.Context, evt sharedEvents.PaymentSucceededEvent) error {
	reqID, err := requestID(ctx)
	if err != nil {
		return err
	}

	_, err = c.commands.SetPaid(ctx, reqID, application.SetPaidCommand{OrderID: evt.OrderID})
	return err
}

func (c *OrderConsumer) onPaymentFailed(ctx context.Context, evt sharedEvents.PaymentFailedEvent) error {
	reqID, err := requestID(ctx)
	if err != nil {
		return err
	}

	c.log.Info("Pago fallido, se cancela el pedido",
		zap.String("order_id", evt.OrderID.String()))
	_, err = c.commands.CancelOrder(ctx, reqID, application.CancelOrderCommand{OrderID: evt.OrderID})
	return err
}
