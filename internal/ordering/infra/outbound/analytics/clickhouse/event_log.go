package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// EventLogRepo vuelca a ClickHouse los eventos ya publicados para
// analítica (volumen por tipo, reintentos, latencia commit→publish).
type EventLogRepo struct {
	db *sql.DB
}

// NewEventLogRepo es el constructor.
func NewEventLogRepo(addr string, dbName string) (*EventLogRepo, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: dbName,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
	})

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping clickhouse: %w", err)
	}

	return &EventLogRepo{db: conn}, nil
}

// LogBatch inserta un lote de entradas. ClickHouse funciona mejor con
// inserciones en lotes, así que el caller agrupa antes de llamar.
func (r *EventLogRepo) LogBatch(ctx context.Context, entries []sharedDomain.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO events_log (event_id, event_type, content, state, times_sent, creation_time, transaction_id, event_time)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	eventTime := time.Now()
	for _, entry := range entries {
		if _, err := stmt.ExecContext(
			ctx,
			entry.EventID,
			entry.EventType,
			string(entry.Content),
			string(entry.State),
			entry.TimesSent,
			entry.CreationTime,
			entry.TransactionID,
			eventTime,
		); err != nil {
			// Si un registro falla, rollback de todo el lote.
			tx.Rollback()
			return fmt.Errorf("failed to exec statement for event %s: %w", entry.EventID, err)
		}
	}

	return tx.Commit()
}

// PublishLagByType devuelve la latencia media commit→publish por tipo de
// evento en la ventana pedida.
func (r *EventLogRepo) PublishLagByType(ctx context.Context, start, end time.Time) (map[string]time.Duration, error) {
	query := `
		SELECT
			event_type,
			avg(event_time - creation_time) AS avg_lag_seconds
		FROM events_log
		WHERE event_time BETWEEN ? AND ?
		GROUP BY event_type
		ORDER BY event_type
	`
	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lags := make(map[string]time.Duration)
	for rows.Next() {
		var eventType string
		var avgSeconds sql.NullFloat64
		if err := rows.Scan(&eventType, &avgSeconds); err != nil {
			return nil, err
		}
		if avgSeconds.Valid {
			lags[eventType] = time.Duration(avgSeconds.Float64 * float64(time.Second))
		}
	}
	return lags, rows.Err()
}

// InitSchema crea la tabla en ClickHouse si no existe. Particionada por
// mes y ordenada por los campos habituales de consulta.
func (r *EventLogRepo) InitSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS events_log (
			event_id       UUID,
			event_type     String,
			content        String,
			state          String,
			times_sent     UInt32,
			creation_time  DateTime64(3),
			transaction_id UUID,
			event_time     DateTime64(3)
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_time)
		ORDER BY (event_type, event_time);
	`
	_, err := r.db.Exec(query)
	return err
}

// Verificación estática de la interfaz.
var _ sharedDomain.PublishedEventLog = (*EventLogRepo)(nil)
