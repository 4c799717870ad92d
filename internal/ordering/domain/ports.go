package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ---------- Errores de dominio ----------
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrBuyerNotFound       = errors.New("buyer not found")
	ErrInvalidUnits        = errors.New("invalid number of units")
	ErrInvalidDiscount     = errors.New("the total of the order item is lower than applied discount")
	ErrInvalidBuyer        = errors.New("invalid buyer identity")
	ErrOrderClosedForItems = errors.New("order already left submitted, no more items can be added")
)

// ---------- Interfaces (Ports) ----------

// OrderRepository persiste el agregado Order. Las escrituras participan en
// la transacción activa del contexto: el commit lo decide el unit of work.
type OrderRepository interface {
	// Save inserta o actualiza el pedido completo (cabecera + líneas).
	Save(ctx context.Context, o *Order) error

	// Debe devolver ErrOrderNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListStaleSubmitted devuelve los ids de pedidos aún en submitted con
	// order_date anterior a olderThan. Lo usa el watchdog del periodo de gracia.
	ListStaleSubmitted(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
}

// BuyerRepository persiste compradores y sus métodos de pago.
type BuyerRepository interface {
	// Debe devolver ErrBuyerNotFound si no existe.
	GetByIdentity(ctx context.Context, identityGUID string) (*Buyer, error)

	Save(ctx context.Context, b *Buyer) error
}

// OrderCache es la cache de lectura de pedidos (cache-aside).
type OrderCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error
	Delete(ctx context.Context, key string) error
}

// CacheKeyByID forma una key consistente para cache usando ID.
func CacheKeyByID(id uuid.UUID) string {
	return fmt.Sprintf("order:id:%s", id.String())
}
