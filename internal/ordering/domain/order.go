package domain

import (
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/google/uuid"
)

// Estados del pedido. El estado solo avanza según la tabla de transiciones;
// los métodos de transición son la única vía legal de mutarlo.
type OrderStatus string

const (
	StatusSubmitted          OrderStatus = "submitted"
	StatusAwaitingValidation OrderStatus = "awaiting_validation"
	StatusStockConfirmed     OrderStatus = "stock_confirmed"
	StatusPaid               OrderStatus = "paid"
	StatusShipped            OrderStatus = "shipped"
	StatusCancelled          OrderStatus = "cancelled"
)

// StatusChangeError nombra la transición ilegal from→to. Debe abortar la
// transacción que la intentó.
type StatusChangeError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *StatusChangeError) Error() string {
	return fmt.Sprintf("not possible to change order status from %s to %s", e.From, e.To)
}

// Address es un value object: se compara por valor, no tiene identidad.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code"`
}

// OrderItem es una línea del pedido. Invariantes: units > 0 y el descuento
// no supera el subtotal de la línea.
type OrderItem struct {
	ProductID   int     `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	Units       int     `json:"units"`
	PictureURL  string  `json:"picture_url"`
}

func newOrderItem(productID int, name string, unitPrice, discount float64, units int, pictureURL string) (OrderItem, error) {
	if units <= 0 {
		return OrderItem{}, ErrInvalidUnits
	}
	if unitPrice*float64(units) < discount {
		return OrderItem{}, ErrInvalidDiscount
	}
	return OrderItem{
		ProductID:   productID,
		ProductName: name,
		UnitPrice:   unitPrice,
		Discount:    discount,
		Units:       units,
		PictureURL:  pictureURL,
	}, nil
}

// Order es el agregado raíz del workflow de pedidos.
type Order struct {
	sharedDomain.Entity

	ID          uuid.UUID   `json:"id"`
	OrderDate   time.Time   `json:"order_date"`
	Address     Address     `json:"address"`
	BuyerID     *uuid.UUID  `json:"buyer_id,omitempty"`
	PaymentID   *uuid.UUID  `json:"payment_id,omitempty"`
	Status      OrderStatus `json:"status"`
	Items       []OrderItem `json:"items"`
	Description string      `json:"description"`
}

// NewOrder crea el pedido en estado submitted y apila OrderStarted con los
// datos de tarjeta necesarios para verificar al comprador.
func NewOrder(userID, userName string, address Address, cardType, cardNumber, cardSecurityNumber, cardHolderName, cardExpiration string) *Order {
	o := &Order{
		ID:        uuid.New(),
		OrderDate: time.Now().UTC(),
		Address:   address,
		Status:    StatusSubmitted,
	}
	o.Raise(&OrderStartedEvent{
		Order:              o,
		UserID:             userID,
		UserName:           userName,
		CardType:           cardType,
		CardNumber:         cardNumber,
		CardSecurityNumber: cardSecurityNumber,
		CardHolderName:     cardHolderName,
		CardExpiration:     cardExpiration,
	})
	return o
}

// AddItem añade una línea antes del checkout, fusionando por producto:
// si el producto ya está, gana el descuento más alto y las unidades se suman.
func (o *Order) AddItem(productID int, name string, unitPrice, discount float64, units int, pictureURL string) error {
	if o.Status != StatusSubmitted {
		return ErrOrderClosedForItems
	}
	if units <= 0 {
		return ErrInvalidUnits
	}

	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			merged := o.Items[i]
			merged.Units += units
			if discount > merged.Discount {
				merged.Discount = discount
			}
			// La línea fusionada respeta el mismo invariante que una nueva.
			if merged.UnitPrice*float64(merged.Units) < merged.Discount {
				return ErrInvalidDiscount
			}
			o.Items[i] = merged
			return nil
		}
	}

	item, err := newOrderItem(productID, name, unitPrice, discount, units, pictureURL)
	if err != nil {
		return err
	}
	o.Items = append(o.Items, item)
	return nil
}

// SetBuyer enlaza el comprador y el método de pago verificados.
func (o *Order) SetBuyer(buyerID, paymentID uuid.UUID) {
	o.BuyerID = &buyerID
	o.PaymentID = &paymentID
}

// SetAwaitingValidation avanza desde submitted cuando el periodo de gracia
// se confirma. Si el pedido ya no está en submitted (p. ej. lo cancelaron
// antes: gana el primero que escribe) la llamada es un no-op.
func (o *Order) SetAwaitingValidation() bool {
	if o.Status != StatusSubmitted {
		return false
	}
	o.Status = StatusAwaitingValidation
	o.Raise(&OrderAwaitingValidationEvent{Order: o})
	return true
}

// SetStockConfirmed avanza desde awaiting_validation cuando el stock está
// confirmado para todas las líneas.
func (o *Order) SetStockConfirmed() bool {
	if o.Status != StatusAwaitingValidation {
		return false
	}
	o.Status = StatusStockConfirmed
	o.Description = "All the items were confirmed with available stock."
	o.Raise(&OrderStockConfirmedEvent{Order: o})
	return true
}

// SetStockRejected cancela desde awaiting_validation dejando en la
// descripción los nombres de los productos sin stock.
func (o *Order) SetStockRejected(rejectedProductIDs []int) bool {
	if o.Status != StatusAwaitingValidation {
		return false
	}

	var names []string
	for _, item := range o.Items {
		for _, id := range rejectedProductIDs {
			if item.ProductID == id {
				names = append(names, item.ProductName)
			}
		}
	}

	o.Status = StatusCancelled
	o.Description = fmt.Sprintf("The product items don't have stock: (%s).", strings.Join(names, ", "))
	return true
}

// SetPaid avanza desde stock_confirmed cuando llega el pago.
func (o *Order) SetPaid() bool {
	if o.Status != StatusStockConfirmed {
		return false
	}
	o.Status = StatusPaid
	o.Description = "The payment was performed at a simulated \"American Bank checking bank account ending on XX35071\""
	o.Raise(&OrderPaidEvent{Order: o})
	return true
}

// Ship despacha el pedido. Solo es legal exactamente desde paid.
func (o *Order) Ship() error {
	if o.Status != StatusPaid {
		return &StatusChangeError{From: o.Status, To: StatusShipped}
	}
	o.Status = StatusShipped
	o.Description = "The order was shipped."
	o.Raise(&OrderShippedEvent{Order: o})
	return nil
}

// Cancel anula el pedido. Falla si ya está pagado o enviado.
func (o *Order) Cancel() error {
	if o.Status == StatusPaid || o.Status == StatusShipped {
		return &StatusChangeError{From: o.Status, To: StatusCancelled}
	}
	o.Status = StatusCancelled
	o.Description = "The order was cancelled."
	o.Raise(&OrderCancelledEvent{Order: o})
	return nil
}

// Total del pedido con descuentos por línea aplicados.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.UnitPrice*float64(item.Units) - item.Discount
	}
	return total
}

// PartitionKey agrupa los eventos de un mismo pedido en la misma partición.
func (o *Order) PartitionKey() string {
	return o.ID.String()
}
