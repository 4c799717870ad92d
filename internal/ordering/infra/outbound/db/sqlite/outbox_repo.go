package sqlite

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

// OutboxRepoSQLite replica el contrato del outbox sobre SQLite. Igual que
// en Postgres, la escritura exige la transacción del comando.
type OutboxRepoSQLite struct {
	db       *sql.DB
	registry *sharedEvents.Registry
}

func NewOutboxRepoSQLite(db *sql.DB, registry *sharedEvents.Registry) *OutboxRepoSQLite {
	return &OutboxRepoSQLite{db: db, registry: registry}
}

func (r *OutboxRepoSQLite) SaveEvent(ctx context.Context, entry sharedDomain.OutboxEntry) error {
	tx, ok := persistence.TxFrom(ctx)
	if !ok {
		return fmt.Errorf("outbox write requires an open transaction")
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (event_id, event_type, content, state, times_sent, creation_time, transaction_id)
		 VALUES (?,?,?,?,?,?,?)`,
		entry.EventID.String(), entry.EventType, string(entry.Content), string(entry.State),
		entry.TimesSent, entry.CreationTime, entry.TransactionID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}
	return nil
}

func (r *OutboxRepoSQLite) MarkInProgress(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxInProgress, true)
}

func (r *OutboxRepoSQLite) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxPublished, false)
}

func (r *OutboxRepoSQLite) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	return r.setState(ctx, eventID, sharedDomain.OutboxPublishedFailed, false)
}

func (r *OutboxRepoSQLite) setState(ctx context.Context, eventID uuid.UUID, state sharedDomain.OutboxState, bumpSent bool) error {
	query := `UPDATE outbox SET state=? WHERE event_id=?`
	if bumpSent {
		query = `UPDATE outbox SET state=?, times_sent=times_sent+1 WHERE event_id=?`
	}

	res, err := r.db.ExecContext(ctx, query, string(state), eventID.String())
	if err != nil {
		return fmt.Errorf("failed to update outbox state: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("outbox entry not found: %s", eventID)
	}
	return nil
}

func (r *OutboxRepoSQLite) RetrievePendingForTransaction(ctx context.Context, transactionID uuid.UUID) ([]sharedDomain.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, event_type, content, state, times_sent, creation_time, transaction_id
		 FROM outbox WHERE transaction_id=? AND state=? ORDER BY creation_time`,
		transactionID.String(), string(sharedDomain.OutboxNotPublished),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	// Un tipo sin decodificador registrado es un desajuste de esquema y se
	// reporta como error, no se silencia.
	for _, entry := range entries {
		if _, err := r.registry.Decode(entry.EventType, entry.Content); err != nil {
			return nil, fmt.Errorf("outbox entry %s: %w", entry.EventID, err)
		}
	}
	return entries, nil
}

// ListUnpublishedBefore alimenta al relayer: entradas que siguen en
// not_published pasado un margen. Las published_failed NO entran: su
// replay es del operador.
func (r *OutboxRepoSQLite) ListUnpublishedBefore(ctx context.Context, olderThan time.Time, limit int) ([]sharedDomain.OutboxEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT event_id, event_type, content, state, times_sent, creation_time, transaction_id
		 FROM outbox WHERE state=? AND creation_time < ? ORDER BY creation_time LIMIT ?`,
		string(sharedDomain.OutboxNotPublished), olderThan, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]sharedDomain.OutboxEntry, error) {
	var entries []sharedDomain.OutboxEntry
	for rows.Next() {
		var entry sharedDomain.OutboxEntry
		var idStr, txStr, state, content string
		if err := rows.Scan(&idStr, &entry.EventType, &content, &state,
			&entry.TimesSent, &entry.CreationTime, &txStr); err != nil {
			return nil, err
		}

		eventID, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}
		transactionID, err := uuid.Parse(txStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in outbox row: %w", err)
		}

		entry.EventID = eventID
		entry.TransactionID = transactionID
		entry.State = sharedDomain.OutboxState(state)
		entry.Content = []byte(content)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Verificación estática
var _ sharedDomain.OutboxStore = (*OutboxRepoSQLite)(nil)
