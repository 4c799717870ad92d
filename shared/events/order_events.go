package events

import (
	"github.com/google/uuid"
)

// Las constantes de tipo son la routing key exacta en el broker:
// un consumidor solo recibe los tipos a los que se vinculó explícitamente.
const (
	OrderStarted              = "ordering.started"
	GracePeriodConfirmed      = "ordering.grace_period_confirmed"
	OrderAwaitingValidation   = "ordering.awaiting_validation"
	StockConfirmed            = "ordering.stock_confirmed"
	StockRejected             = "ordering.stock_rejected"
	OrderStockStatusConfirmed = "ordering.status_stock_confirmed"
	PaymentSucceeded          = "ordering.payment_succeeded"
	PaymentFailed             = "ordering.payment_failed"
	OrderPaid                 = "ordering.paid"
	OrderShipped              = "ordering.shipped"
	OrderCancelled            = "ordering.cancelled"
	BuyerPaymentVerified      = "ordering.buyer_payment_verified"
)

// Estos son contratos de integración, NO entidades del dominio.
// Se definen planos para intercambio entre contextos.

type OrderStartedEvent struct {
	OrderID            uuid.UUID `json:"order_id"`
	UserID             string    `json:"user_id"`
	UserName           string    `json:"user_name"`
	CardType           string    `json:"card_type"`
	CardNumber         string    `json:"card_number"`
	CardHolderName     string    `json:"card_holder_name"`
	CardExpiration     string    `json:"card_expiration"`
	CardSecurityNumber string    `json:"card_security_number"`
}

type GracePeriodConfirmedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

type StockItem struct {
	ProductID int `json:"product_id"`
	Units     int `json:"units"`
}

type OrderAwaitingValidationEvent struct {
	OrderID    uuid.UUID   `json:"order_id"`
	Status     string      `json:"status"`
	BuyerName  string      `json:"buyer_name"`
	StockItems []StockItem `json:"stock_items"`
}

type StockConfirmedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

type RejectedStockItem struct {
	ProductID   int    `json:"product_id"`
	ProductName string `json:"product_name"`
}

type StockRejectedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	RejectedItems []RejectedStockItem `json:"rejected_items"`
}

type OrderStockStatusConfirmedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	BuyerName string    `json:"buyer_name"`
}

type PaymentSucceededEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

type PaymentFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
}

type OrderPaidEvent struct {
	OrderID   uuid.UUID   `json:"order_id"`
	Status    string      `json:"status"`
	BuyerName string      `json:"buyer_name"`
	Lines     []StockItem `json:"lines"`
}

type OrderShippedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	BuyerName string    `json:"buyer_name"`
}

type OrderCancelledEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	Status    string    `json:"status"`
	BuyerName string    `json:"buyer_name"`
}

type BuyerPaymentVerifiedEvent struct {
	BuyerID         uuid.UUID `json:"buyer_id"`
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
	OrderID         uuid.UUID `json:"order_id"`
}
