package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/davicafu/ordelab/internal/ordering/domain"
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	"go.uber.org/zap"
)

// OrderEventHandlers son los handlers de eventos de dominio: corren dentro
// de la transacción del comando y convierten cada cambio de estado en una
// entrada del outbox (misma transacción, esa es la garantía del patrón).
type OrderEventHandlers struct {
	orders domain.OrderRepository
	buyers domain.BuyerRepository
	outbox sharedDomain.OutboxStore
	log    *zap.Logger
}

func NewOrderEventHandlers(orders domain.OrderRepository, buyers domain.BuyerRepository, outbox sharedDomain.OutboxStore, log *zap.Logger) *OrderEventHandlers {
	return &OrderEventHandlers{
		orders: orders,
		buyers: buyers,
		outbox: outbox,
		log:    log,
	}
}

// Register da de alta todos los handlers en el registro del despachador.
func (h *OrderEventHandlers) Register(d *DomainDispatcher) {
	d.Register(domain.EventOrderStarted, h.onOrderStarted)
	d.Register(domain.EventBuyerPaymentVerified, h.onBuyerPaymentVerified)
	d.Register(domain.EventOrderAwaitingValidation, h.onAwaitingValidation)
	d.Register(domain.EventOrderStockConfirmed, h.onStockConfirmed)
	d.Register(domain.EventOrderPaid, h.onPaid)
	d.Register(domain.EventOrderShipped, h.onShipped)
	d.Register(domain.EventOrderCancelled, h.onCancelled)
}

// stage serializa el payload y lo deja en el outbox bajo la transacción
// activa. Si no hay transacción algo se cableó mal: mejor fallar ya.
func (h *OrderEventHandlers) stage(ctx context.Context, eventType string, payload interface{}) error {
	transactionID, ok := TransactionID(ctx)
	if !ok {
		return fmt.Errorf("staging %s outside of a unit of work", eventType)
	}
	envelope, err := sharedEvents.NewIntegrationEvent(eventType, payload)
	if err != nil {
		return err
	}
	return h.outbox.SaveEvent(ctx, sharedDomain.NewOutboxEntry(envelope, transactionID))
}

// onOrderStarted verifica (o registra) al comprador con los datos de la
// tarjeta y apila el evento de verificación sobre el agregado Buyer.
func (h *OrderEventHandlers) onOrderStarted(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderStartedEvent)

	buyer, err := h.buyers.GetByIdentity(ctx, e.UserID)
	if err != nil {
		if !errors.Is(err, domain.ErrBuyerNotFound) {
			return err
		}
		buyer, err = domain.NewBuyer(e.UserID, e.UserName)
		if err != nil {
			return err
		}
	}

	alias := fmt.Sprintf("Payment Method on order creation %s", e.Order.OrderDate.Format("2006-01-02"))
	buyer.VerifyOrAddPaymentMethod(e.CardType, e.CardNumber, e.CardSecurityNumber,
		e.CardHolderName, e.CardExpiration, alias, e.Order.ID)

	if err := h.buyers.Save(ctx, buyer); err != nil {
		return err
	}
	Track(ctx, buyer)

	return h.stage(ctx, sharedEvents.OrderStarted, sharedEvents.OrderStartedEvent{
		OrderID:            e.Order.ID,
		UserID:             e.UserID,
		UserName:           e.UserName,
		CardType:           e.CardType,
		CardNumber:         e.CardNumber,
		CardHolderName:     e.CardHolderName,
		CardExpiration:     e.CardExpiration,
		CardSecurityNumber: e.CardSecurityNumber,
	})
}

// onBuyerPaymentVerified enlaza comprador y método de pago en el pedido.
func (h *OrderEventHandlers) onBuyerPaymentVerified(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.BuyerPaymentVerifiedEvent)

	order, err := h.orders.GetByID(ctx, e.OrderID)
	if err != nil {
		return err
	}
	order.SetBuyer(e.Buyer.ID, e.Payment.ID)
	if err := h.orders.Save(ctx, order); err != nil {
		return err
	}

	return h.stage(ctx, sharedEvents.BuyerPaymentVerified, sharedEvents.BuyerPaymentVerifiedEvent{
		BuyerID:         e.Buyer.ID,
		PaymentMethodID: e.Payment.ID,
		OrderID:         e.OrderID,
	})
}

// onAwaitingValidation notifica a catálogo las líneas a validar contra stock.
func (h *OrderEventHandlers) onAwaitingValidation(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderAwaitingValidationEvent)

	items := make([]sharedEvents.StockItem, 0, len(e.Order.Items))
	for _, item := range e.Order.Items {
		items = append(items, sharedEvents.StockItem{ProductID: item.ProductID, Units: item.Units})
	}

	return h.stage(ctx, sharedEvents.OrderAwaitingValidation, sharedEvents.OrderAwaitingValidationEvent{
		OrderID:    e.Order.ID,
		Status:     string(e.Order.Status),
		BuyerName:  buyerName(e.Order),
		StockItems: items,
	})
}

// onStockConfirmed avisa al servicio de pagos de que puede cobrar.
func (h *OrderEventHandlers) onStockConfirmed(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderStockConfirmedEvent)

	return h.stage(ctx, sharedEvents.OrderStockStatusConfirmed, sharedEvents.OrderStockStatusConfirmedEvent{
		OrderID:   e.Order.ID,
		Status:    string(e.Order.Status),
		BuyerName: buyerName(e.Order),
	})
}

func (h *OrderEventHandlers) onPaid(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderPaidEvent)

	lines := make([]sharedEvents.StockItem, 0, len(e.Order.Items))
	for _, item := range e.Order.Items {
		lines = append(lines, sharedEvents.StockItem{ProductID: item.ProductID, Units: item.Units})
	}

	return h.stage(ctx, sharedEvents.OrderPaid, sharedEvents.OrderPaidEvent{
		OrderID:   e.Order.ID,
		Status:    string(e.Order.Status),
		BuyerName: buyerName(e.Order),
		Lines:     lines,
	})
}

func (h *OrderEventHandlers) onShipped(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderShippedEvent)

	return h.stage(ctx, sharedEvents.OrderShipped, sharedEvents.OrderShippedEvent{
		OrderID:   e.Order.ID,
		Status:    string(e.Order.Status),
		BuyerName: buyerName(e.Order),
	})
}

func (h *OrderEventHandlers) onCancelled(ctx context.Context, evt sharedDomain.DomainEvent) error {
	e := evt.(*domain.OrderCancelledEvent)

	return h.stage(ctx, sharedEvents.OrderCancelled, sharedEvents.OrderCancelledEvent{
		OrderID:   e.Order.ID,
		Status:    string(e.Order.Status),
		BuyerName: buyerName(e.Order),
	})
}

func buyerName(o *domain.Order) string {
	if o.BuyerID == nil {
		return ""
	}
	return o.BuyerID.String()
}
