package domain

// DomainEvent es una notificación en-proceso de que un agregado cambió de
// estado. Se consume de forma síncrona dentro de la misma transacción,
// antes del commit.
type DomainEvent interface {
	Name() string
}

// EventCarrier lo implementa todo agregado que acumula eventos de dominio.
type EventCarrier interface {
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// Entity es la base embebible de los agregados: cada transición apila
// exactamente un evento, y la lista se vacía tras el despacho para no
// re-despachar.
type Entity struct {
	events []DomainEvent
}

func (e *Entity) Raise(evt DomainEvent) {
	e.events = append(e.events, evt)
}

func (e *Entity) DomainEvents() []DomainEvent {
	return e.events
}

func (e *Entity) ClearDomainEvents() {
	e.events = nil
}
