package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
)

// InMemoryEventBus replica la semántica del broker real sin broker: colas
// con nombre, vinculadas por tipo de evento con coincidencia exacta, cada
// una con su goroutine de consumo y la misma política de ack fail-open.
// Se usa en tests y como modo degradado cuando no hay Kafka.
type InMemoryEventBus struct {
	registry *sharedEvents.Registry
	log      *zap.Logger

	mu     sync.RWMutex
	queues map[string]*InMemoryQueue
}

func NewInMemoryEventBus(registry *sharedEvents.Registry, log *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: registry,
		log:      log,
		queues:   make(map[string]*InMemoryQueue),
	}
}

// Queue declara (o recupera) una cola con nombre del bus.
func (b *InMemoryEventBus) Queue(name string) *InMemoryQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	if q, ok := b.queues[name]; ok {
		return q
	}
	q := &InMemoryQueue{
		name:     name,
		registry: b.registry,
		log:      b.log,
		handlers: make(map[string][]sharedBus.HandlerFunc),
		ch:       make(chan sharedEvents.IntegrationEvent, 64),
	}
	b.queues[name] = q
	return q
}

// Publish entrega el sobre SOLO a las colas vinculadas a ese tipo exacto.
func (b *InMemoryEventBus) Publish(ctx context.Context, evt sharedEvents.IntegrationEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, q := range b.queues {
		if err := q.enqueue(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// InMemoryQueue imita la cola durable de un servicio consumidor.
type InMemoryQueue struct {
	name     string
	registry *sharedEvents.Registry
	log      *zap.Logger

	mu       sync.RWMutex
	handlers map[string][]sharedBus.HandlerFunc
	started  bool
	closed   bool
	done     chan struct{}
	ch       chan sharedEvents.IntegrationEvent
}

// enqueue encola si la cola está vinculada al tipo y sigue abierta.
func (q *InMemoryQueue) enqueue(ctx context.Context, evt sharedEvents.IntegrationEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil
	}
	if _, ok := q.handlers[evt.Type]; !ok {
		return nil
	}
	select {
	case q.ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Bind(eventType string, handlers ...sharedBus.HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[eventType] = append(q.handlers[eventType], handlers...)
}

// Start arranca el bucle de consumo en su goroutine.
func (q *InMemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.done = make(chan struct{})
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-q.ch:
				if !ok {
					return
				}
				q.deliver(ctx, evt)
			}
		}
	}()
}

// deliver decodifica y ejecuta los handlers en secuencia; los errores se
// registran y el mensaje se da por consumido igualmente.
func (q *InMemoryQueue) deliver(ctx context.Context, evt sharedEvents.IntegrationEvent) {
	q.mu.RLock()
	handlers := q.handlers[evt.Type]
	q.mu.RUnlock()

	decoded, err := q.registry.Decode(evt.Type, evt.Data)
	if err != nil {
		q.log.Error("Error decodificando evento",
			zap.String("queue", q.name),
			zap.String("event_type", evt.Type),
			zap.Error(err),
		)
		return
	}

	// El sobre viaja en el contexto, igual que en el consumidor de Kafka.
	msgCtx := sharedEvents.WithEnvelope(ctx, evt)

	for _, handler := range handlers {
		if err := handler(msgCtx, decoded); err != nil {
			q.log.Warn("El handler del evento falló; el mensaje se confirma igualmente",
				zap.String("queue", q.name),
				zap.String("event_type", evt.Type),
				zap.Error(err),
			)
		}
	}
}

// Close deja de aceptar entregas nuevas y espera a vaciar el bucle.
// Los handlers en vuelo terminan solos.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.ch)
	q.mu.Unlock()

	if started {
		<-q.done
	}
	return nil
}

// Verificación estática
var (
	_ sharedBus.EventPublisher = (*InMemoryEventBus)(nil)
	_ sharedBus.Subscriber     = (*InMemoryQueue)(nil)
)
