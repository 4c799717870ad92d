package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/davicafu/ordelab/shared/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ClientRequestRepoPostgres es la tabla de dedup de comandos. La PK es la
// guarda frente a duplicados concurrentes: el insert que pierde la carrera
// recibe ErrRequestAlreadyExists.
type ClientRequestRepoPostgres struct {
	db *sql.DB
}

func NewClientRequestRepoPostgres(db *sql.DB) *ClientRequestRepoPostgres {
	return &ClientRequestRepoPostgres{db: db}
}

func (r *ClientRequestRepoPostgres) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q := persistence.QuerierFrom(ctx, r.db)
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM client_requests WHERE id=$1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *ClientRequestRepoPostgres) Create(ctx context.Context, id uuid.UUID, name string) error {
	q := persistence.QuerierFrom(ctx, r.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO client_requests (id, name, time) VALUES ($1, $2, $3)`,
		id, name, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sharedDomain.ErrRequestAlreadyExists
		}
		return fmt.Errorf("failed to insert client request: %w", err)
	}
	return nil
}

// Verificación estática
var _ sharedDomain.ClientRequestStore = (*ClientRequestRepoPostgres)(nil)
