package application

import (
	"context"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"go.uber.org/zap"
)

// DomainHandler procesa un evento de dominio dentro de la transacción
// abierta. Puede escribir en el outbox y apilar nuevos eventos.
type DomainHandler func(ctx context.Context, evt sharedDomain.DomainEvent) error

// DomainDispatcher es un registro explícito nombre → handlers. Nada de
// descubrimiento por reflection: todo se registra en el arranque y los
// handlers de un evento corren en secuencia.
type DomainDispatcher struct {
	handlers map[string][]DomainHandler
	log      *zap.Logger
}

func NewDomainDispatcher(log *zap.Logger) *DomainDispatcher {
	return &DomainDispatcher{
		handlers: make(map[string][]DomainHandler),
		log:      log,
	}
}

func (d *DomainDispatcher) Register(eventName string, h DomainHandler) {
	d.handlers[eventName] = append(d.handlers[eventName], h)
}

// Dispatch entrega el evento a todos sus handlers. El primer error corta y
// debe abortar la transacción del unit of work.
func (d *DomainDispatcher) Dispatch(ctx context.Context, evt sharedDomain.DomainEvent) error {
	hs, ok := d.handlers[evt.Name()]
	if !ok {
		d.log.Debug("Evento de dominio sin handlers", zap.String("event", evt.Name()))
		return nil
	}
	for _, h := range hs {
		if err := h(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}
