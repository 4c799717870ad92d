package application

import (
	"context"
	"time"

	"github.com/davicafu/ordelab/internal/ordering/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
	"go.uber.org/zap"
)

// GracePeriodWatchdog es el disparador de respaldo del workflow: un bucle
// de polling que saca de submitted a los pedidos que nadie canceló dentro
// de la ventana de gracia, publicando GracePeriodConfirmed con solo el id.
// Compite con cualquier cancelación en vuelo; gana el primero que escribe
// gracias a las guardas del agregado.
type GracePeriodWatchdog struct {
	orders    domain.OrderRepository
	publisher sharedBus.EventPublisher
	grace     time.Duration
	interval  time.Duration
	log       *zap.Logger
}

func NewGracePeriodWatchdog(
	orders domain.OrderRepository,
	publisher sharedBus.EventPublisher,
	grace time.Duration,
	interval time.Duration,
	log *zap.Logger,
) *GracePeriodWatchdog {
	return &GracePeriodWatchdog{
		orders:    orders,
		publisher: publisher,
		grace:     grace,
		interval:  interval,
		log:       log,
	}
}

// Start inicia el bucle de polling. La cancelación se observa en el borde
// de cada iteración, nunca a mitad de consulta.
func (w *GracePeriodWatchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🕐 Watchdog del periodo de gracia iniciado",
		zap.Duration("grace", w.grace),
		zap.Duration("interval", w.interval),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Watchdog detenido.")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce hace una pasada: pedidos aún en submitted más viejos que la
// ventana de gracia → un GracePeriodConfirmed por pedido.
func (w *GracePeriodWatchdog) RunOnce(ctx context.Context) {
	olderThan := time.Now().UTC().Add(-w.grace)

	ids, err := w.orders.ListStaleSubmitted(ctx, olderThan)
	if err != nil {
		w.log.Warn("⚠️ Error consultando pedidos en periodo de gracia", zap.Error(err))
		return
	}

	for _, id := range ids {
		envelope, err := sharedEvents.NewIntegrationEvent(
			sharedEvents.GracePeriodConfirmed,
			sharedEvents.GracePeriodConfirmedEvent{OrderID: id},
		)
		if err != nil {
			w.log.Error("Error serializando GracePeriodConfirmed", zap.Error(err))
			continue
		}

		if err := w.publisher.Publish(ctx, envelope); err != nil {
			w.log.Warn("⚠️ No se pudo publicar GracePeriodConfirmed",
				zap.String("order_id", id.String()),
				zap.Error(err),
			)
			continue
		}

		w.log.Info("✅ Periodo de gracia confirmado", zap.String("order_id", id.String()))
	}
}
