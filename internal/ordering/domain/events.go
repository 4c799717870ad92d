package domain

import (
	"github.com/google/uuid"
)

// Nombres estables de los eventos de dominio (en-proceso). Los handlers se
// registran contra estas constantes en el arranque.
const (
	EventOrderStarted            = "order_started"
	EventOrderAwaitingValidation = "order_awaiting_validation"
	EventOrderStockConfirmed     = "order_stock_confirmed"
	EventOrderPaid               = "order_paid"
	EventOrderShipped            = "order_shipped"
	EventOrderCancelled          = "order_cancelled"
	EventBuyerPaymentVerified    = "buyer_payment_verified"
)

// OrderStartedEvent lleva los datos de tarjeta para que el handler
// verifique (o registre) al comprador dentro de la misma transacción.
type OrderStartedEvent struct {
	Order              *Order
	UserID             string
	UserName           string
	CardType           string
	CardNumber         string
	CardSecurityNumber string
	CardHolderName     string
	CardExpiration     string
}

func (e *OrderStartedEvent) Name() string { return EventOrderStarted }

type OrderAwaitingValidationEvent struct {
	Order *Order
}

func (e *OrderAwaitingValidationEvent) Name() string { return EventOrderAwaitingValidation }

type OrderStockConfirmedEvent struct {
	Order *Order
}

func (e *OrderStockConfirmedEvent) Name() string { return EventOrderStockConfirmed }

type OrderPaidEvent struct {
	Order *Order
}

func (e *OrderPaidEvent) Name() string { return EventOrderPaid }

type OrderShippedEvent struct {
	Order *Order
}

func (e *OrderShippedEvent) Name() string { return EventOrderShipped }

type OrderCancelledEvent struct {
	Order *Order
}

func (e *OrderCancelledEvent) Name() string { return EventOrderCancelled }

type BuyerPaymentVerifiedEvent struct {
	Buyer   *Buyer
	Payment PaymentMethod
	OrderID uuid.UUID
}

func (e *BuyerPaymentVerifiedEvent) Name() string { return EventBuyerPaymentVerified }
