package events

import "context"

type envelopeKey struct{}

// WithEnvelope cuelga del contexto el sobre del evento en curso. Los
// consumidores lo ponen antes de invocar handlers para que estos puedan
// usar el id del evento como id de petición idempotente.
func WithEnvelope(ctx context.Context, evt IntegrationEvent) context.Context {
	return context.WithValue(ctx, envelopeKey{}, evt)
}

// EnvelopeFrom recupera el sobre del evento en curso, si lo hay.
func EnvelopeFrom(ctx context.Context) (IntegrationEvent, bool) {
	evt, ok := ctx.Value(envelopeKey{}).(IntegrationEvent)
	return evt, ok
}
