package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRequestAlreadyExists lo devuelve Create cuando la PK ya está en la
// tabla: dos envíos duplicados que corren a la vez pierden la carrera en el
// insert, y el perdedor debe tratarlo como "ya existe", no como fallo.
var ErrRequestAlreadyExists = errors.New("client request already exists")

// ClientRequest registra un identificador de petición ya procesado.
// Solo se inserta, nunca se actualiza.
type ClientRequest struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// ClientRequestStore es la puerta de idempotencia de los comandos.
type ClientRequestStore interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Create(ctx context.Context, id uuid.UUID, name string) error
}
