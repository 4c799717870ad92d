package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	sharedEvents "github.com/davicafu/ordelab/shared/events"
	"github.com/davicafu/ordelab/shared/platform/persistence"
	"github.com/google/uuid"
)

// OutboxRepoPostgres implementa el store del outbox. La escritura exige la
// transacción del comando (esa es la garantía de atomicidad del patrón);
// las marcas de estado son actualizaciones independientes post-commit.
type OutboxRepoPostgres struct {
	db       *sql.DB
	registry *sharedEvents.Registry
}

func NewOutboxRepoPostgres(db *sql.DB, registry *sharedEvents.Registry) *OutboxRepoPostgres {
	return &OutboxRepoPostgres{db: db, registry: registry}
}

// SaveEvent inserta la entrada en la transacción abierta del contexto.
// Sin transacción activa se rechaza: una escritura de outbox fuera del
// commit de negocio rompería la atomicidad que el patrón promete.
func (r *OutboxRepoPostgres) SaveEvent(ctx context.Context, entry sharedDomain.OutboxEntry) error {
	tx, ok := persistence.TxFrom(ctx)
	if !ok {
		return fmt.Errorf("outbox write requires an open transaction")
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (event_id, event_type, content, state, times_sent, creation_time, transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.EventID, entry.EventType, []byte(entry.Content), string(entry.State),
		entry.TimesSent, entry.CreationTime, entry.TransactionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return nil
}

func (r *OutboxRepoPostgres) MarkInProgress(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxInProgress, true)
}

func (r *OutboxRepoPostgres) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxPublished, false)
}

func (r *OutboxRepoPostgres) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxPublishedFailed, false)
}

func (r *OutboxRepoPostgres) setState(ctx context.Context, eventID uuid.UUID, state sharedDomain.OutboxState, bumpSent bool) error {
	query := `UPDATE outbox SET state=$1 WHERE event_id=$2`
	if bumpSent {
		query = `UPDATE outbox SET state=$1, times_sent=times_sent+1 WHERE event_id=$2`
	}

	res, err := r.db.ExecContext(ctx, query, string(state), eventID)
	if err != nil {
		return fmt.Errorf("failed to update outbox state: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("outbox entry not found: %s", eventID)
	}
	return nil
}

// RetrievePendingForTransaction devuelve las entradas not_published de la
// transacción, en orden de creación. Un tipo sin decodificador registrado
// es un desajuste de esquema y se reporta como error, no se silencia.
func (r *OutboxRepoPostgres) RetrievePendingForTransaction(ctx context.Context, transactionID uuid.UUID) ([]sharedDomain.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, event_type, content, state, times_sent, creation_time, transaction_id
		 FROM outbox WHERE transaction_id=$1 AND state=$2 ORDER BY creation_time`,
		transactionID, string(sharedDomain.OutboxNotPublished),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []sharedDomain.OutboxEntry
	for rows.Next() {
		var entry sharedDomain.OutboxEntry
		var state string
		var content []byte
		if err := rows.Scan(&entry.EventID, &entry.EventType, &content, &state,
			&entry.TimesSent, &entry.CreationTime, &entry.TransactionID); err != nil {
			return nil, err
		}
		entry.State = sharedDomain.OutboxState(state)
		entry.Content = content

		if _, err := r.registry.Decode(entry.EventType, entry.Content); err != nil {
			return nil, fmt.Errorf("outbox entry %s: %w", entry.EventID, err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// ListUnpublishedBefore alimenta al relayer: entradas que siguen en
// not_published pasado un margen (p. ej. el proceso cayó entre el commit y
// la publicación). Las published_failed NO entran: su replay es del operador.
func (r *OutboxRepoPostgres) ListUnpublishedBefore(ctx context.Context, olderThan time.Time, limit int) ([]sharedDomain.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, event_type, content, state, times_sent, creation_time, transaction_id
		 FROM outbox WHERE state=$1 AND creation_time < $2 ORDER BY creation_time LIMIT $3`,
		string(sharedDomain.OutboxNotPublished), olderThan, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []sharedDomain.OutboxEntry
	for rows.Next() {
		var entry sharedDomain.OutboxEntry
		var state string
		var content []byte
		if err := rows.Scan(&entry.EventID, &entry.EventType, &content, &state,
			&entry.TimesSent, &entry.CreationTime, &entry.TransactionID); err != nil {
			return nil, err
		}
		entry.State = sharedDomain.OutboxState(state)
		entry.Content = content
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Verificación estática
var _ sharedDomain.OutboxStore = (*OutboxRepoPostgres)(nil)
