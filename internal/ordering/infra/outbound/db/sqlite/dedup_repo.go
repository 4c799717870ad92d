package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/davicafu/ordelab/shared/platform/persistence"
	"github.com/google/uuid"
)

// ClientRequestRepoSQLite es la tabla de dedup de comandos en modo local.
type ClientRequestRepoSQLite struct {
	db *sql.DB
}

func NewClientRequestRepoSQLite(db *sql.DB) *ClientRequestRepoSQLite {
	return &ClientRequestRepoSQLite{db: db}
}

func (r *ClientRequestRepoSQLite) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q := persistence.QuerierFrom(ctx, r.db)
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM client_requests WHERE id=?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *ClientRequestRepoSQLite) Create(ctx context.Context, id uuid.UUID, name string) error {
	q := persistence.QuerierFrom(ctx, r.db)
	_, err := q.ExecContext(ctx,
		`INSERT INTO client_requests (id, name, time) VALUES (?,?,?)`,
		id.String(), name, time.Now().UTC(),
	)
	if err != nil {
		// modernc.org/sqlite no expone un tipo de error propio para la
		// violación de PK, así que toca mirar el mensaje.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return sharedDomain.ErrRequestAlreadyExists
		}
		return fmt.Errorf("failed to insert client request: %w", err)
	}
	return nil
}

// Verificación estática
var _ sharedDomain.ClientRequestStore = (*ClientRequestRepoSQLite)(nil)
