package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
)

// OutboxSource es lo que el relayer necesita del store: las entradas que
// se quedaron en not_published (el proceso cayó entre el commit y la
// publicación) y las marcas de estado. Las published_failed no se
// reintentan desde aquí: su replay es decisión del operador.
type OutboxSource interface {
	ListUnpublishedBefore(ctx context.Context, olderThan time.Time, limit int) ([]sharedDomain.OutboxEntry, error)
	MarkInProgress(ctx context.Context, eventID uuid.UUID) error
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID) error
}

// Worker re-publica las entradas de outbox huérfanas de forma periódica.
type Worker struct {
	repo      OutboxSource
	publisher sharedBus.EventPublisher
	eventLog  sharedDomain.PublishedEventLog // opcional, best-effort
	interval  time.Duration
	margin    time.Duration // edad mínima para considerar huérfana una entrada
	batchSize int
	log       *zap.Logger
}

func NewOutboxWorker(
	repo OutboxSource,
	publisher sharedBus.EventPublisher,
	eventLog sharedDomain.PublishedEventLog,
	interval time.Duration,
	margin time.Duration,
	batchSize int,
	log *zap.Logger,
) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		eventLog:  eventLog,
		interval:  interval,
		margin:    margin,
		batchSize: batchSize,
		log:       log,
	}
}

// Start inicia el bucle de polling del worker.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox relayer iniciado",
		zap.Duration("interval", w.interval),
		zap.Duration("margin", w.margin),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox relayer detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica un lote de entradas huérfanas. El margen evita
// pisar publicaciones en curso del camino normal post-commit.
func (w *Worker) ProcessBatch(ctx context.Context) {
	entries, err := w.repo.ListUnpublishedBefore(ctx, time.Now().UTC().Add(-w.margin), w.batchSize)
	if err != nil {
		w.log.Warn("⚠️ Error al obtener entradas pendientes", zap.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}
	w.log.Info(fmt.Sprintf("📬 %d entradas huérfanas para re-publicar", len(entries)))

	var published []sharedDomain.OutboxEntry
	for _, entry := range entries {
		if w.publishAndMark(ctx, entry) {
			published = append(published, entry)
		}
	}

	if w.eventLog != nil && len(published) > 0 {
		if err := w.eventLog.LogBatch(ctx, published); err != nil {
			w.log.Warn("⚠️ No se pudo volcar el lote a analítica", zap.Error(err))
		}
	}
}

func (w *Worker) publishAndMark(ctx context.Context, entry sharedDomain.OutboxEntry) bool {
	if err := w.repo.MarkInProgress(ctx, entry.EventID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar la entrada en curso",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}

	if err := w.publisher.Publish(ctx, entry.Envelope()); err != nil {
		w.log.Warn("⚠️ No se pudo publicar el evento",
			zap.String("event_id", entry.EventID.String()),
			zap.String("event_type", entry.EventType),
			zap.Error(err),
		)
		if err := w.repo.MarkFailed(ctx, entry.EventID); err != nil {
			w.log.Warn("⚠️ No se pudo marcar la entrada como fallida",
				zap.String("event_id", entry.EventID.String()),
				zap.Error(err),
			)
		}
		return false
	}

	if err := w.repo.MarkPublished(ctx, entry.EventID); err != nil {
		w.log.Warn("⚠️ No se pudo marcar la entrada como publicada",
			zap.String("event_id", entry.EventID.String()),
			zap.Error(err),
		)
		return false
	}

	w.log.Info("✅ Evento re-publicado y marcado", zap.String("event_id", entry.EventID.String()))
	return true
}
