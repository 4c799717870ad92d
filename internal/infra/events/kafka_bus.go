package events

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/ordelab/shared/events"
	sharedBus "github.com/davicafu/ordelab/shared/platform/bus"
)

// TopicFor traduce la routing key (el tipo del evento, coincidencia exacta)
// al topic del "exchange" compartido del despliegue.
func TopicFor(busName, eventType string) string {
	return busName + "." + eventType
}

// KafkaEventBus publica eventos de integración: un topic por tipo, cuerpo
// JSON UTF-8, mensaje durable (acks de todas las réplicas) y reintentos con
// backoff exponencial acotado SOLO ante errores de transporte. Los fallos de
// serialización o de aplicación no se reintentan.
type KafkaEventBus struct {
	writer     *kafka.Writer
	busName    string
	retryCount int
	tracer     trace.Tracer
	log        *zap.Logger
}

func NewKafkaEventBus(brokers []string, busName string, retryCount int, log *zap.Logger) *KafkaEventBus {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaEventBus{
		writer:     writer,
		busName:    busName,
		retryCount: retryCount,
		tracer:     otel.Tracer("ordelab/eventbus"),
		log:        log,
	}
}

func (b *KafkaEventBus) Publish(ctx context.Context, evt sharedEvents.IntegrationEvent) error {
	ctx, span := b.tracer.Start(ctx, evt.Type+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.message.id", evt.ID.String()),
			attribute.String("messaging.destination.name", TopicFor(b.busName, evt.Type)),
		),
	)
	defer span.End()

	body, err := evt.MarshalBody()
	if err != nil {
		// Desajuste de esquema: debe sonar fuerte, nunca reintentarse.
		span.SetStatus(codes.Error, "marshal failed")
		span.RecordError(err)
		return err
	}

	msg := kafka.Message{
		Topic: TopicFor(b.busName, evt.Type),
		Key:   []byte(evt.ID.String()),
		Value: body,
	}

	// El contexto de traza viaja en los headers del mensaje.
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{headers: &msg.Headers})

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = time.Second
	expo.Multiplier = 2

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if werr := b.writer.WriteMessages(ctx, msg); werr != nil {
			if isTransient(werr) {
				b.log.Warn("⚠️ Broker inalcanzable, reintentando publicación",
					zap.String("event_id", evt.ID.String()),
					zap.Error(werr),
				)
				return struct{}{}, werr
			}
			return struct{}{}, backoff.Permanent(werr)
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(b.retryCount)))

	if err != nil {
		span.SetStatus(codes.Error, "publish failed")
		span.RecordError(err)
		b.log.Error("Error publicando en Kafka",
			zap.String("event_id", evt.ID.String()),
			zap.String("event_type", evt.Type),
			zap.Error(err),
		)
		return err
	}

	b.log.Debug("Evento publicado",
		zap.String("event_id", evt.ID.String()),
		zap.String("event_type", evt.Type),
	)
	return nil
}

func (b *KafkaEventBus) Close() error {
	return b.writer.Close()
}

// isTransient distingue los fallos de transporte (broker caído, conexión
// reseteada) de los errores de aplicación.
func isTransient(err error) bool {
	var kafkaErr kafka.Error
	if errors.As(err, &kafkaErr) {
		return kafkaErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

// headerCarrier adapta los headers de kafka al propagador de otel.
type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// Verificación estática
var _ sharedBus.EventPublisher = (*KafkaEventBus)(nil)
