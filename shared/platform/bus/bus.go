package bus

import (
	"context"
	"fmt"

	"github.com/davicafu/ordelab/shared/events"
)

// EventPublisher publica un sobre de integración en el broker.
// La routing key es el Type del sobre, coincidencia exacta.
type EventPublisher interface {
	Publish(ctx context.Context, evt events.IntegrationEvent) error
}

// HandlerFunc procesa un evento ya decodificado a su tipo concreto.
// Varios handlers por tipo se ejecutan en secuencia, nunca en paralelo.
type HandlerFunc func(ctx context.Context, evt interface{}) error

// Subscriber declara la cola durable del servicio y sus vinculaciones.
// Start arranca el consumo en goroutines propias (las APIs de broker
// bloquean, nunca en el hilo de la petición); Close deja de aceptar
// entregas nuevas sin cancelar handlers en vuelo.
type Subscriber interface {
	Bind(eventType string, handlers ...HandlerFunc)
	Start(ctx context.Context)
	Close() error
}

// Typed adapta un handler fuertemente tipado al contrato del bus.
func Typed[T any](fn func(ctx context.Context, evt T) error) HandlerFunc {
	return func(ctx context.Context, evt interface{}) error {
		typed, ok := evt.(T)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", evt)
		}
		return fn(ctx, typed)
	}
}
