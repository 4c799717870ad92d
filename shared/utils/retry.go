package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry ejecuta fn con reintentos acotados y backoff exponencial.
// El contexto cancela la espera entre intentos.
func Retry(ctx context.Context, attempts int, initial time.Duration, fn func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initial

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(attempts)))
	return err
}
