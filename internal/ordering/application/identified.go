package application

import (
	"context"
	"errors"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Identified envuelve un handler de comando con la puerta de idempotencia:
// si el request id ya se vio, devuelve el resultado "duplicado" sin repetir
// efectos; si no, lo registra primero y ejecuta el handler real. Dos envíos
// duplicados compitiendo se resuelven por la PK del store: el que pierde el
// insert también recibe el resultado duplicado.
//
// Ojo: un error del handler real se registra y se traga, devolviendo el
// valor cero del resultado en vez de propagarse. Es el comportamiento
// heredado del sistema original: el resultado duplicado queda reservado
// para la ruta ya-visto; un fallo real nunca se promociona a éxito.
func Identified[C any, R any](
	log *zap.Logger,
	store sharedDomain.ClientRequestStore,
	name string,
	duplicate func(cmd C) R,
	handler func(ctx context.Context, cmd C) (R, error),
) func(ctx context.Context, requestID uuid.UUID, cmd C) (R, error) {
	return func(ctx context.Context, requestID uuid.UUID, cmd C) (R, error) {
		var zero R

		exists, err := store.Exists(ctx, requestID)
		if err != nil {
			return zero, err
		}
		if exists {
			log.Info("Comando duplicado ignorado",
				zap.String("command", name),
				zap.String("request_id", requestID.String()),
			)
			return duplicate(cmd), nil
		}

		if err := store.Create(ctx, requestID, name); err != nil {
			if errors.Is(err, sharedDomain.ErrRequestAlreadyExists) {
				// Perdimos la carrera contra otro envío idéntico.
				return duplicate(cmd), nil
			}
			return zero, err
		}

		result, err := handler(ctx, cmd)
		if err != nil {
			log.Warn("El handler del comando falló; se devuelve el resultado por defecto",
				zap.String("command", name),
				zap.String("request_id", requestID.String()),
				zap.Error(err),
			)
			return zero, nil
		}
		return result, nil
	}
}
