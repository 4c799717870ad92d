package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/davicafu/ordelab/shared/events"
	"github.com/google/uuid"
)

// Estados del ciclo de publicación de una entrada del outbox.
// Una entrada nunca se borra: es la pista de auditoría del bus.
type OutboxState string

const (
	OutboxNotPublished    OutboxState = "not_published"
	OutboxInProgress      OutboxState = "in_progress"
	OutboxPublished       OutboxState = "published"
	OutboxPublishedFailed OutboxState = "published_failed"
)

// OutboxEntry representa un evento de integración pendiente de publicar,
// escrito en la MISMA transacción que el cambio de negocio que lo produjo.
// TransactionID agrupa las entradas de ese commit.
type OutboxEntry struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Content       json.RawMessage `json:"content"`
	State         OutboxState     `json:"state"`
	TimesSent     int             `json:"times_sent"`
	CreationTime  time.Time       `json:"creation_time"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// NewOutboxEntry construye la entrada a partir del sobre ya serializado.
func NewOutboxEntry(evt events.IntegrationEvent, transactionID uuid.UUID) OutboxEntry {
	return OutboxEntry{
		EventID:       evt.ID,
		EventType:     evt.Type,
		Content:       evt.Data,
		State:         OutboxNotPublished,
		TimesSent:     0,
		CreationTime:  evt.OccurredAt,
		TransactionID: transactionID,
	}
}

// Envelope reconstruye el sobre de integración para publicarlo.
func (e OutboxEntry) Envelope() events.IntegrationEvent {
	return events.IntegrationEvent{
		ID:         e.EventID,
		Type:       e.EventType,
		OccurredAt: e.CreationTime,
		Data:       e.Content,
	}
}

// OutboxStore define el contrato de la tabla outbox de cada servicio.
//
// SaveEvent escribe usando la transacción ya abierta en el ctx: si el insert
// falla, falla la transacción entera (sin escrituras parciales). Los Mark*
// son actualizaciones independientes post-commit; MarkInProgress incrementa
// times_sent. RetrievePendingForTransaction devuelve las entradas
// not_published de esa transacción ordenadas por creation_time, con el
// payload ya validado contra el registro de tipos conocidos.
type OutboxStore interface {
	SaveEvent(ctx context.Context, entry OutboxEntry) error
	MarkInProgress(ctx context.Context, eventID uuid.UUID) error
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID) error
	RetrievePendingForTransaction(ctx context.Context, transactionID uuid.UUID) ([]OutboxEntry, error)
}

// PublishedEventLog recibe lotes de entradas ya publicadas para analítica.
// Es best-effort: un fallo aquí no afecta a la publicación.
type PublishedEventLog interface {
	LogBatch(ctx context.Context, entries []OutboxEntry) error
}
