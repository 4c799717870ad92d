package application

import (
	"context"
	"time"

	"github.com/davicafu/ordelab/internal/ordering/domain"
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedUtils "github.com/davicafu/ordelab/shared/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------- Comandos ----------

type OrderItemDTO struct {
	ProductID   int
	ProductName string
	UnitPrice   float64
	Discount    float64
	Units       int
	PictureURL  string
}

type CreateOrderCommand struct {
	UserID             string
	UserName           string
	Address            domain.Address
	CardType           string
	CardNumber         string
	CardSecurityNumber string
	CardHolderName     string
	CardExpiration     string
	Items              []OrderItemDTO
}

type CancelOrderCommand struct{ OrderID uuid.UUID }

type ShipOrderCommand struct{ OrderID uuid.UUID }

type SetAwaitingValidationCommand struct{ OrderID uuid.UUID }

type SetStockConfirmedCommand struct{ OrderID uuid.UUID }

type SetStockRejectedCommand struct {
	OrderID  uuid.UUID
	Rejected []int // product ids sin stock
}

type SetPaidCommand struct{ OrderID uuid.UUID }

// OrderService implementa los casos de uso del workflow de pedidos.
// Cada comando corre dentro del unit of work: mutar el agregado, despachar
// sus eventos de dominio, commit y publicación post-commit.
type OrderService struct {
	uow    *UnitOfWork
	orders domain.OrderRepository
	cache  domain.OrderCache
	log    *zap.Logger
}

func NewOrderService(uow *UnitOfWork, orders domain.OrderRepository, cache domain.OrderCache, log *zap.Logger) *OrderService {
	return &OrderService{
		uow:    uow,
		orders: orders,
		cache:  cache,
		log:    log,
	}
}

// CreateOrder arranca el workflow: pedido en submitted con sus líneas
// fusionadas. La verificación del comprador la hace el handler del evento
// OrderStarted dentro de la misma transacción.
func (s *OrderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (bool, error) {
	err := s.uow.Execute(ctx, func(ctx context.Context) error {
		order := domain.NewOrder(cmd.UserID, cmd.UserName, cmd.Address,
			cmd.CardType, cmd.CardNumber, cmd.CardSecurityNumber, cmd.CardHolderName, cmd.CardExpiration)

		for _, item := range cmd.Items {
			if err := order.AddItem(item.ProductID, item.ProductName, item.UnitPrice, item.Discount, item.Units, item.PictureURL); err != nil {
				return err
			}
		}

		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}
		Track(ctx, order)

		s.log.Info("Pedido creado",
			zap.String("order_id", order.ID.String()),
			zap.Int("items", len(order.Items)),
		)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// CancelOrder anula el pedido si aún no está pagado ni enviado.
func (s *OrderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (bool, error) {
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		return o.Cancel()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// ShipOrder despacha un pedido pagado.
func (s *OrderService) ShipOrder(ctx context.Context, cmd ShipOrderCommand) (bool, error) {
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		return o.Ship()
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetAwaitingValidation lo dispara el fin del periodo de gracia. Si el
// pedido ya salió de submitted la llamada queda en no-op.
func (s *OrderService) SetAwaitingValidation(ctx context.Context, cmd SetAwaitingValidationCommand) (bool, error) {
	var changed bool
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		changed = o.SetAwaitingValidation()
		return nil
	})
	return changed, err
}

func (s *OrderService) SetStockConfirmed(ctx context.Context, cmd SetStockConfirmedCommand) (bool, error) {
	var changed bool
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		changed = o.SetStockConfirmed()
		return nil
	})
	return changed, err
}

func (s *OrderService) SetStockRejected(ctx context.Context, cmd SetStockRejectedCommand) (bool, error) {
	var changed bool
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		changed = o.SetStockRejected(cmd.Rejected)
		return nil
	})
	return changed, err
}

func (s *OrderService) SetPaid(ctx context.Context, cmd SetPaidCommand) (bool, error) {
	var changed bool
	err := s.mutate(ctx, cmd.OrderID, func(o *domain.Order) error {
		changed = o.SetPaid()
		return nil
	})
	return changed, err
}

// mutate es el esqueleto común: cargar, transicionar, guardar, trackear.
func (s *OrderService) mutate(ctx context.Context, orderID uuid.UUID, fn func(o *domain.Order) error) error {
	return s.uow.Execute(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := fn(order); err != nil {
			return err
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return err
		}
		Track(ctx, order)

		if s.cache != nil {
			go func(id uuid.UUID) {
				ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()
				_ = s.cache.Delete(ctxCache, domain.CacheKeyByID(id))
			}(order.ID)
		}
		return nil
	})
}

// GetOrder obtiene un pedido (primero intenta desde cache).
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if s.cache != nil {
		var o domain.Order
		if ok, _ := s.cache.Get(ctx, domain.CacheKeyByID(id), &o); ok {
			return &o, nil
		}
	}

	var order *domain.Order
	err := sharedUtils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var err error
		order, err = s.orders.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		go func(o *domain.Order) {
			ctxCache, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_ = s.cache.Set(ctxCache, domain.CacheKeyByID(o.ID), o, 60)
		}(order)
	}

	return order, nil
}

// ---------- Comandos identificados ----------

// IdentifiedOrderCommands expone cada comando envuelto con la puerta de
// idempotencia. Todo comando disparado desde fuera (HTTP o evento de
// integración entrante) pasa por aquí con su request id.
type IdentifiedOrderCommands struct {
	CreateOrder           func(ctx context.Context, requestID uuid.UUID, cmd CreateOrderCommand) (bool, error)
	CancelOrder           func(ctx context.Context, requestID uuid.UUID, cmd CancelOrderCommand) (bool, error)
	ShipOrder             func(ctx context.Context, requestID uuid.UUID, cmd ShipOrderCommand) (bool, error)
	SetAwaitingValidation func(ctx context.Context, requestID uuid.UUID, cmd SetAwaitingValidationCommand) (bool, error)
	SetStockConfirmed     func(ctx context.Context, requestID uuid.UUID, cmd SetStockConfirmedCommand) (bool, error)
	SetStockRejected      func(ctx context.Context, requestID uuid.UUID, cmd SetStockRejectedCommand) (bool, error)
	SetPaid               func(ctx context.Context, requestID uuid.UUID, cmd SetPaidCommand) (bool, error)
}

// NewIdentifiedOrderCommands construye los decoradores. El resultado
// duplicado de todos estos comandos es "éxito": cancelar, enviar o pagar
// dos veces es un no-op seguro.
func NewIdentifiedOrderCommands(log *zap.Logger, store sharedDomain.ClientRequestStore, svc *OrderService) *IdentifiedOrderCommands {
	asSuccess := func(CreateOrderCommand) bool { return true }
	return &IdentifiedOrderCommands{
		CreateOrder: Identified(log, store, "create_order", asSuccess, svc.CreateOrder),
		CancelOrder: Identified(log, store, "cancel_order",
			func(CancelOrderCommand) bool { return true }, svc.CancelOrder),
		ShipOrder: Identified(log, store, "ship_order",
			func(ShipOrderCommand) bool { return true }, svc.ShipOrder),
		SetAwaitingValidation: Identified(log, store, "set_awaiting_validation",
			func(SetAwaitingValidationCommand) bool { return true }, svc.SetAwaitingValidation),
		SetStockConfirmed: Identified(log, store, "set_stock_confirmed",
			func(SetStockConfirmedCommand) bool { return true }, svc.SetStockConfirmed),
		SetStockRejected: Identified(log, store, "set_stock_rejected",
			func(SetStockRejectedCommand) bool { return true }, svc.SetStockRejected),
		SetPaid: Identified(log, store, "set_paid",
			func(SetPaidCommand) bool { return true }, svc.SetPaid),
	}
}
