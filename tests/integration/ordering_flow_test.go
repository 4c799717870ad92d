package integration

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/ordelab/internal/infra/events"
	"github.com/davicafu/ordelab/internal/ordering/application"
	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
	inboundEvents "github.com/davicafu/ordelab/internal/ordering/infra/inbound/events"
	"github.com/davicafu/ordelab/internal/ordering/infra/outbound/db/sqlite"
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
)

// orderingStack levanta el servicio completo en memoria: SQLite como base,
// el bus en memoria como broker y el cableado real de producción (unit of
// work, outbox, dedup, consumidor y watchdog).
type orderingStack struct {
	db       *sql.DB
	bus      *events.InMemoryEventBus
	orders   orderingDomain.OrderRepository
	commands *application.IdentifiedOrderCommands
	watchdog *application.GracePeriodWatchdog
}

func setupOrderingStack(t *testing.T, ctx context.Context, grace time.Duration) *orderingStack {
	t.Helper()
	log := zap.NewNop()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ordering_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.InitSQLite(db))

	registry := sharedEvents.NewOrderingRegistry()
	orderRepo := sqlite.NewOrderRepoSQLite(db)
	buyerRepo := sqlite.NewBuyerRepoSQLite(db)
	outboxRepo := sqlite.NewOutboxRepoSQLite(db, registry)
	dedupRepo := sqlite.NewClientRequestRepoSQLite(db)

	bus := events.NewInMemoryEventBus(registry, log)

	dispatcher := application.NewDomainDispatcher(log)
	uow := application.NewUnitOfWork(db, dispatcher, outboxRepo, bus, log)
	application.NewOrderEventHandlers(orderRepo, buyerRepo, outboxRepo, log).Register(dispatcher)

	service := application.NewOrderService(uow, orderRepo, nil, log)
	commands := application.NewIdentifiedOrderCommands(log, dedupRepo, service)

	subscriber := bus.Queue("ordering")
	inboundEvents.NewOrderConsumer(commands, log).Register(subscriber)
	subscriber.Start(ctx)
	t.Cleanup(func() { subscriber.Close() })

	watchdog := application.NewGracePeriodWatchdog(orderRepo, bus, grace, time.Hour, log)

	return &orderingStack{
		db:       db,
		bus:      bus,
		orders:   orderRepo,
		commands: commands,
		watchdog: watchdog,
	}
}

func newCreateOrderCommand() application.CreateOrderCommand {
	return application.CreateOrderCommand{
		UserID:   "user-42",
		UserName: "Ada Lovelace",
		Address: orderingDomain.Address{
			Street: "Calle Mayor 1", City: "Madrid", Country: "ES", ZipCode: "28001",
		},
		CardType:           "visa",
		CardNumber:         "4111111111111111",
		CardSecurityNumber: "123",
		CardHolderName:     "Ada Lovelace",
		CardExpiration:     "12/28",
		Items: []application.OrderItemDTO{
			{ProductID: 1, ProductName: "Taza", UnitPrice: 10.0, Units: 2},
			{ProductID: 2, ProductName: "Vaso", UnitPrice: 5.0, Units: 1},
		},
	}
}

// createdOrderID recupera el id del pedido recién creado: todavía en
// submitted, así que aparece en la consulta del watchdog con corte futuro.
func createdOrderID(t *testing.T, ctx context.Context, stack *orderingStack) uuid.UUID {
	t.Helper()
	ids, err := stack.orders.ListStaleSubmitted(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	return ids[0]
}

func (s *orderingStack) orderStatus(t *testing.T, ctx context.Context, id uuid.UUID) orderingDomain.OrderStatus {
	t.Helper()
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return ""
	}
	return order.Status
}

// publishInbound simula a otro servicio (catálogo, pagos) publicando en el bus.
func publishInbound(t *testing.T, ctx context.Context, stack *orderingStack, eventType string, payload interface{}) sharedEvents.IntegrationEvent {
	t.Helper()
	envelope, err := sharedEvents.NewIntegrationEvent(eventType, payload)
	require.NoError(t, err)
	require.NoError(t, stack.bus.Publish(ctx, envelope))
	return envelope
}

func (s *orderingStack) outboxStates(t *testing.T) map[string]string {
	t.Helper()
	rows, err := s.db.Query(`SELECT event_type, state FROM outbox`)
	require.NoError(t, err)
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var eventType, state string
		require.NoError(t, rows.Scan(&eventType, &state))
		states[eventType] = state
	}
	require.NoError(t, rows.Err())
	return states
}

func TestOrderingFlow_DelSubmittedAlPaid(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// grace = 0: el watchdog considera vencido cualquier pedido en submitted.
	stack := setupOrderingStack(t, ctx, 0)

	// ARRANGE + ACT: crear el pedido por el camino de producción.
	created, err := stack.commands.CreateOrder(ctx, uuid.New(), newCreateOrderCommand())
	require.NoError(t, err)
	assert.True(t, created)

	orderID := createdOrderID(t, ctx, stack)

	// La creación verifica al comprador y lo enlaza en la misma transacción.
	order, err := stack.orders.GetByID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, orderingDomain.StatusSubmitted, order.Status)
	assert.NotNil(t, order.BuyerID)

	// Fin del periodo de gracia: submitted → awaiting_validation.
	stack.watchdog.RunOnce(ctx)
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusAwaitingValidation
	}, 2*time.Second, 10*time.Millisecond)

	// Catálogo confirma stock: awaiting_validation → stock_confirmed.
	publishInbound(t, ctx, stack, sharedEvents.StockConfirmed,
		sharedEvents.StockConfirmedEvent{OrderID: orderID})
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusStockConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	// Pagos confirma el cobro: stock_confirmed → paid.
	publishInbound(t, ctx, stack, sharedEvents.PaymentSucceeded,
		sharedEvents.PaymentSucceededEvent{OrderID: orderID})
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusPaid
	}, 2*time.Second, 10*time.Millisecond)

	// Cada transición dejó su entrada en el outbox, publicada tras el commit.
	states := stack.outboxStates(t)
	for _, eventType := range []string{
		sharedEvents.OrderStarted,
		sharedEvents.BuyerPaymentVerified,
		sharedEvents.OrderAwaitingValidation,
		sharedEvents.OrderStockStatusConfirmed,
		sharedEvents.OrderPaid,
	} {
		assert.Equal(t, string(sharedDomain.OutboxPublished), states[eventType], eventType)
	}
}

func TestOrderingFlow_RedeliveryDelMismoSobreEsNoOp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack := setupOrderingStack(t, ctx, 0)

	_, err := stack.commands.CreateOrder(ctx, uuid.New(), newCreateOrderCommand())
	require.NoError(t, err)
	orderID := createdOrderID(t, ctx, stack)

	stack.watchdog.RunOnce(ctx)
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusAwaitingValidation
	}, 2*time.Second, 10*time.Millisecond)

	envelope := publishInbound(t, ctx, stack, sharedEvents.StockConfirmed,
		sharedEvents.StockConfirmedEvent{OrderID: orderID})
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusStockConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	// El broker redelivera el MISMO sobre: el id de petición ya está
	// registrado y el comando se descarta en la puerta de idempotencia.
	require.NoError(t, stack.bus.Publish(ctx, envelope))

	assert.Eventually(t, func() bool {
		var count int
		err := stack.db.QueryRow(`SELECT COUNT(*) FROM client_requests WHERE id=?`,
			envelope.ID.String()).Scan(&count)
		return err == nil && count == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, orderingDomain.StatusStockConfirmed, stack.orderStatus(t, ctx, orderID))
}

func TestOrderingFlow_StockRechazadoCancelaSinEventoDeCancelacion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack := setupOrderingStack(t, ctx, 0)

	_, err := stack.commands.CreateOrder(ctx, uuid.New(), newCreateOrderCommand())
	require.NoError(t, err)
	orderID := createdOrderID(t, ctx, stack)

	stack.watchdog.RunOnce(ctx)
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusAwaitingValidation
	}, 2*time.Second, 10*time.Millisecond)

	publishInbound(t, ctx, stack, sharedEvents.StockRejected, sharedEvents.StockRejectedEvent{
		OrderID: orderID,
		RejectedItems: []sharedEvents.RejectedStockItem{
			{ProductID: 1, ProductName: "Taza"},
		},
	})

	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	order, err := stack.orders.GetByID(ctx, orderID)
	require.NoError(t, err)
	assert.Contains(t, order.Description, "Taza")

	// El rechazo de stock cancela sin emitir ordering.cancelled.
	states := stack.outboxStates(t)
	_, emitted := states[sharedEvents.OrderCancelled]
	assert.False(t, emitted)
}

func TestOrderingFlow_TransicionIlegalNoSeObservaComoExito(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack := setupOrderingStack(t, ctx, 0)

	_, err := stack.commands.CreateOrder(ctx, uuid.New(), newCreateOrderCommand())
	require.NoError(t, err)
	orderID := createdOrderID(t, ctx, stack)

	// Enviar un pedido aún en submitted viola el orden del workflow. La
	// puerta de idempotencia se traga el error del handler, pero el caller
	// debe ver el valor por defecto (fracaso), nunca el resultado duplicado.
	shipped, err := stack.commands.ShipOrder(ctx, uuid.New(), application.ShipOrderCommand{OrderID: orderID})
	assert.NoError(t, err)
	assert.False(t, shipped)
	assert.Equal(t, orderingDomain.StatusSubmitted, stack.orderStatus(t, ctx, orderID))

	// Lo mismo al cancelar un pedido ya pagado.
	stack.watchdog.RunOnce(ctx)
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusAwaitingValidation
	}, 2*time.Second, 10*time.Millisecond)
	publishInbound(t, ctx, stack, sharedEvents.StockConfirmed,
		sharedEvents.StockConfirmedEvent{OrderID: orderID})
	publishInbound(t, ctx, stack, sharedEvents.PaymentSucceeded,
		sharedEvents.PaymentSucceededEvent{OrderID: orderID})
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusPaid
	}, 2*time.Second, 10*time.Millisecond)

	cancelled, err := stack.commands.CancelOrder(ctx, uuid.New(), application.CancelOrderCommand{OrderID: orderID})
	assert.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, orderingDomain.StatusPaid, stack.orderStatus(t, ctx, orderID))
}

func TestOrderingFlow_PagoFallidoCancelaElPedido(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stack := setupOrderingStack(t, ctx, 0)

	_, err := stack.commands.CreateOrder(ctx, uuid.New(), newCreateOrderCommand())
	require.NoError(t, err)
	orderID := createdOrderID(t, ctx, stack)

	stack.watchdog.RunOnce(ctx)
	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusAwaitingValidation
	}, 2*time.Second, 10*time.Millisecond)

	publishInbound(t, ctx, stack, sharedEvents.PaymentFailed,
		sharedEvents.PaymentFailedEvent{OrderID: orderID})

	assert.Eventually(t, func() bool {
		return stack.orderStatus(t, ctx, orderID) == orderingDomain.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	states := stack.outboxStates(t)
	assert.Equal(t, string(sharedDomain.OutboxPublished), states[sharedEvents.OrderCancelled])
}
