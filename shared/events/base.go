package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Base de todos los eventos de integración que viajan entre servicios.
// El sobre es inmutable una vez construido: la identidad es el ID.
type IntegrationEvent struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"` // contenido específico del evento
}

// MarshalBody serializa el sobre completo para el cuerpo del mensaje.
func (e IntegrationEvent) MarshalBody() ([]byte, error) {
	return json.Marshal(e)
}

// NewIntegrationEvent serializa el payload y construye el sobre.
// Un error aquí es un fallo de esquema, no algo transitorio: no se reintenta.
func NewIntegrationEvent(eventType string, payload interface{}) (IntegrationEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return IntegrationEvent{}, err
	}
	return IntegrationEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, nil
}
