package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownEventType indica una routing key sin decodificador registrado.
var ErrUnknownEventType = errors.New("unknown event type")

// DecodeFunc convierte el payload crudo en el tipo concreto del evento.
type DecodeFunc func(data []byte) (interface{}, error)

// Registry mapea el nombre estable de cada tipo de evento a su decodificador.
// El registro es explícito en el arranque: nada de reflection ni descubrimiento
// mágico, así el mapa es verificable de un vistazo.
type Registry struct {
	decoders map[string]DecodeFunc
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]DecodeFunc)}
}

func (r *Registry) Register(eventType string, decode DecodeFunc) {
	r.decoders[eventType] = decode
}

// Known responde si el tipo tiene decodificador registrado.
func (r *Registry) Known(eventType string) bool {
	_, ok := r.decoders[eventType]
	return ok
}

// Decode materializa el payload al tipo concreto registrado para eventType.
// Un fallo de unmarshal es un desajuste de esquema entre publicador y
// suscriptor: debe sonar fuerte, nunca reintentarse.
func (r *Registry) Decode(eventType string, data []byte) (interface{}, error) {
	decode, ok := r.decoders[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}
	return decode(data)
}

// Types devuelve los tipos registrados en orden estable.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DecoderFor construye el DecodeFunc de un contrato concreto.
func DecoderFor[T any]() DecodeFunc {
	return func(data []byte) (interface{}, error) {
		var evt T
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	}
}

// NewOrderingRegistry registra todos los contratos del workflow de pedidos.
func NewOrderingRegistry() *Registry {
	r := NewRegistry()
	r.Register(OrderStarted, DecoderFor[OrderStartedEvent]())
	r.Register(GracePeriodConfirmed, DecoderFor[GracePeriodConfirmedEvent]())
	r.Register(OrderAwaitingValidation, DecoderFor[OrderAwaitingValidationEvent]())
	r.Register(StockConfirmed, DecoderFor[StockConfirmedEvent]())
	r.Register(StockRejected, DecoderFor[StockRejectedEvent]())
	r.Register(OrderStockStatusConfirmed, DecoderFor[OrderStockStatusConfirmedEvent]())
	r.Register(PaymentSucceeded, DecoderFor[PaymentSucceededEvent]())
	r.Register(PaymentFailed, DecoderFor[PaymentFailedEvent]())
	r.Register(OrderPaid, DecoderFor[OrderPaidEvent]())
	r.Register(OrderShipped, DecoderFor[OrderShippedEvent]())
	r.Register(OrderCancelled, DecoderFor[OrderCancelledEvent]())
	r.Register(BuyerPaymentVerified, DecoderFor[BuyerPaymentVerifiedEvent]())
	return r
}
