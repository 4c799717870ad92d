package application

import (
	"context"
	"database/sql"
	"fmt"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
	"github.com/davicafu/ordelab/shared/platform/persistence"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// session acompaña a una transacción: su id (que agrupa las entradas del
// outbox) y los agregados cuyos eventos hay que despachar antes del commit.
type session struct {
	transactionID uuid.UUID
	tracked       []sharedDomain.EventCarrier
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) (*session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session)
	return s, ok
}

// Track registra un agregado en la sesión activa. Fuera de un unit of work
// es un no-op: no hay eventos que despachar porque no hay transacción.
func Track(ctx context.Context, agg sharedDomain.EventCarrier) {
	if s, ok := sessionFrom(ctx); ok {
		s.tracked = append(s.tracked, agg)
	}
}

// TransactionID expone el id de la transacción activa para las entradas
// del outbox.
func TransactionID(ctx context.Context) (uuid.UUID, bool) {
	if s, ok := sessionFrom(ctx); ok {
		return s.transactionID, true
	}
	return uuid.Nil, false
}

// UnitOfWork envuelve cada comando entrante en una transacción: ejecuta el
// handler, despacha los eventos de dominio apilados ANTES del commit (sus
// handlers escriben en el outbox sobre la misma transacción), hace commit y
// solo entonces publica las entradas del outbox de esa transacción.
type UnitOfWork struct {
	db         *sql.DB
	dispatcher *DomainDispatcher
	outbox     sharedDomain.OutboxStore
	publisher  sharedBus.EventPublisher
	log        *zap.Logger
}

func NewUnitOfWork(
	db *sql.DB,
	dispatcher *DomainDispatcher,
	outbox sharedDomain.OutboxStore,
	publisher sharedBus.EventPublisher,
	log *zap.Logger,
) *UnitOfWork {
	return &UnitOfWork{
		db:         db,
		dispatcher: dispatcher,
		outbox:     outbox,
		publisher:  publisher,
		log:        log,
	}
}

// Execute corre el comando dentro de la transacción. Si ya hay una sesión
// activa en el contexto (llamada re-entrante) ejecuta el handler tal cual:
// nada de transacciones anidadas.
func (u *UnitOfWork) Execute(ctx context.Context, cmd func(ctx context.Context) error) error {
	if _, ok := sessionFrom(ctx); ok {
		return cmd(ctx)
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	s := &session{transactionID: uuid.New()}
	txCtx := context.WithValue(persistence.WithTx(ctx, tx), sessionKey{}, s)

	if err := cmd(txCtx); err != nil {
		tx.Rollback()
		return err
	}

	if err := u.dispatchStaged(txCtx, s); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	// Publicación post-commit: ya sin transacción en el contexto.
	u.publishPending(ctx, s.transactionID)
	return nil
}

// dispatchStaged recoge los eventos apilados en los agregados de la sesión,
// los limpia (para no re-despachar) y los entrega a sus handlers. Un handler
// puede apilar eventos nuevos, de ahí el bucle hasta vaciar.
func (u *UnitOfWork) dispatchStaged(ctx context.Context, s *session) error {
	for {
		var staged []sharedDomain.DomainEvent
		for _, agg := range s.tracked {
			staged = append(staged, agg.DomainEvents()...)
			agg.ClearDomainEvents()
		}
		if len(staged) == 0 {
			return nil
		}
		for _, evt := range staged {
			if err := u.dispatcher.Dispatch(ctx, evt); err != nil {
				return err
			}
		}
	}
}

// publishPending recupera las entradas not_published de la transacción y
// las publica una a una, marcando cada una in_progress → published/failed.
// Un fallo de publicación no deshace nada: el commit de negocio ya ocurrió
// y la entrada queda para reconciliación.
func (u *UnitOfWork) publishPending(ctx context.Context, transactionID uuid.UUID) {
	entries, err := u.outbox.RetrievePendingForTransaction(ctx, transactionID)
	if err != nil {
		u.log.Error("No se pudieron recuperar las entradas pendientes del outbox",
			zap.String("transaction_id", transactionID.String()),
			zap.Error(err),
		)
		return
	}

	for _, entry := range entries {
		if err := u.outbox.MarkInProgress(ctx, entry.EventID); err != nil {
			u.log.Warn("No se pudo marcar la entrada como in_progress",
				zap.String("event_id", entry.EventID.String()),
				zap.Error(err),
			)
			continue
		}

		if err := u.publisher.Publish(ctx, entry.Envelope()); err != nil {
			u.log.Error("⚠️ Fallo publicando evento de integración",
				zap.String("event_id", entry.EventID.String()),
				zap.String("event_type", entry.EventType),
				zap.Error(err),
			)
			if markErr := u.outbox.MarkFailed(ctx, entry.EventID); markErr != nil {
				u.log.Warn("No se pudo marcar la entrada como published_failed",
					zap.String("event_id", entry.EventID.String()),
					zap.Error(markErr),
				)
			}
			continue
		}

		if err := u.outbox.MarkPublished(ctx, entry.EventID); err != nil {
			u.log.Warn("No se pudo marcar la entrada como published",
				zap.String("event_id", entry.EventID.String()),
				zap.Error(err),
			)
		}
	}
}
