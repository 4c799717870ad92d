package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
)

// KafkaSubscriber es el "oído" del servicio: una cola durable (consumer
// group) vinculada a un topic por cada tipo de evento registrado. Todo el
// consumo corre en goroutines de fondo porque las llamadas al broker
// bloquean.
//
// Política de ack documentada: el offset se confirma procese o no procese
// el handler (fail-open). Un error de handler se registra y se sigue; la
// mitigación recomendada (dead-letter) queda fuera de este diseño.
type KafkaSubscriber struct {
	brokers   []string
	busName   string
	queueName string
	registry  *sharedEvents.Registry
	log       *zap.Logger

	mu       sync.Mutex
	handlers map[string][]sharedBus.HandlerFunc
	readers  []*kafka.Reader
	started  bool
}

func NewKafkaSubscriber(brokers []string, busName, queueName string, registry *sharedEvents.Registry, log *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{
		brokers:   brokers,
		busName:   busName,
		queueName: queueName,
		registry:  registry,
		handlers:  make(map[string][]sharedBus.HandlerFunc),
		log:       log,
	}
}

// Bind vincula la cola al tipo de evento. Admite varios handlers por tipo;
// se ejecutan en secuencia por mensaje.
func (s *KafkaSubscriber) Bind(eventType string, handlers ...sharedBus.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventType] = append(s.handlers[eventType], handlers...)
}

// Start abre un reader por vinculación y arranca su bucle de consumo.
func (s *KafkaSubscriber) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for eventType := range s.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  s.brokers,
			GroupID:  s.queueName,
			Topic:    TopicFor(s.busName, eventType),
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		s.readers = append(s.readers, reader)

		s.log.Info("🎧 Vinculación de cola creada",
			zap.String("queue", s.queueName),
			zap.String("routing_key", eventType),
		)

		go s.consumeLoop(ctx, reader)
	}
}

func (s *KafkaSubscriber) consumeLoop(ctx context.Context, reader *kafka.Reader) {
	for {
		// FetchMessage bloquea; el commit del offset es manual. Un reader
		// cerrado devuelve io.EOF: ahí termina el bucle, no se reintenta.
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.log.Info("Consumidor detenido.", zap.String("topic", reader.Config().Topic))
				return
			}
			s.log.Error("Error leyendo mensaje de Kafka", zap.Error(err))
			continue
		}

		s.handleMessage(ctx, msg)

		// Ack pase lo que pase: política fail-open documentada.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			s.log.Warn("No se pudo confirmar el offset", zap.Error(err))
		}
	}
}

func (s *KafkaSubscriber) handleMessage(ctx context.Context, msg kafka.Message) {
	var envelope sharedEvents.IntegrationEvent
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		s.log.Error("Cuerpo de mensaje ilegible: desajuste de esquema",
			zap.String("topic", msg.Topic),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	handlers := s.handlers[envelope.Type]
	s.mu.Unlock()

	if len(handlers) == 0 || !s.registry.Known(envelope.Type) {
		s.log.Warn("Tipo de evento desconocido, se confirma sin procesar",
			zap.String("event_type", envelope.Type),
		)
		return
	}

	decoded, err := s.registry.Decode(envelope.Type, envelope.Data)
	if err != nil {
		s.log.Error("Error decodificando evento: desajuste de esquema",
			zap.String("event_type", envelope.Type),
			zap.String("event_id", envelope.ID.String()),
			zap.Error(err),
		)
		return
	}

	// Recuperar el contexto de traza que viajó en los headers y dejar el
	// sobre accesible para los handlers (id de petición idempotente).
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{headers: &msg.Headers})
	msgCtx = sharedEvents.WithEnvelope(msgCtx, envelope)

	for _, handler := range handlers {
		if err := handler(msgCtx, decoded); err != nil {
			s.log.Warn("El handler del evento falló; el mensaje se confirma igualmente",
				zap.String("event_type", envelope.Type),
				zap.String("event_id", envelope.ID.String()),
				zap.Error(err),
			)
		}
	}
}

// Close deja de aceptar entregas nuevas. Los handlers en vuelo no se
// cancelan.
func (s *KafkaSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, reader := range s.readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.readers = nil
	return firstErr
}

// Verificación estática
var _ sharedBus.Subscriber = (*KafkaSubscriber)(nil)
