package persistence

import (
	"context"
	"database/sql"
)

// Querier es lo mínimo que un adapter SQL necesita para leer/escribir,
// satisfecho tanto por *sql.DB como por *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type txKey struct{}

// WithTx cuelga la transacción abierta del contexto para que los adapters
// escriban dentro de ella sin acoplarse al unit of work.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFrom recupera la transacción activa, si la hay.
func TxFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok
}

// QuerierFrom devuelve la transacción activa o, en su defecto, el pool.
func QuerierFrom(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}
