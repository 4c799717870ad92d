package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
	"github.com/davicafu/ordelab/shared/platform/persistence"
	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OrderRepoPostgres persiste el agregado Order (cabecera + líneas) y los
// compradores. Todas las escrituras usan la transacción activa del
// contexto: el commit es del unit of work, no del repo.
type OrderRepoPostgres struct {
	db *sql.DB
}

func NewOrderRepoPostgres(db *sql.DB) *OrderRepoPostgres {
	return &OrderRepoPostgres{db: db}
}

// Save inserta o actualiza el pedido completo. Las líneas se reescriben:
// el agregado es la fuente de verdad de su composición.
func (r *OrderRepoPostgres) Save(ctx context.Context, o *orderingDomain.Order) error {
	q := persistence.QuerierFrom(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO orders (id, order_date, street, city, state, country, zip_code, buyer_id, payment_id, status, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			buyer_id = EXCLUDED.buyer_id,
			payment_id = EXCLUDED.payment_id,
			status = EXCLUDED.status,
			description = EXCLUDED.description`,
		o.ID, o.OrderDate, o.Address.Street, o.Address.City, o.Address.State,
		o.Address.Country, o.Address.ZipCode, o.BuyerID, o.PaymentID, string(o.Status), o.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id=$1`, o.ID); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	for _, item := range o.Items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, unit_price, discount, units, picture_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, item.ProductID, item.ProductName, item.UnitPrice, item.Discount, item.Units, item.PictureURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *OrderRepoPostgres) GetByID(ctx context.Context, id uuid.UUID) (*orderingDomain.Order, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	var o orderingDomain.Order
	var status string
	row := q.QueryRowContext(ctx,
		`SELECT id, order_date, street, city, state, country, zip_code, buyer_id, payment_id, status, description
		 FROM orders WHERE id=$1`, id)
	if err := row.Scan(&o.ID, &o.OrderDate, &o.Address.Street, &o.Address.City, &o.Address.State,
		&o.Address.Country, &o.Address.ZipCode, &o.BuyerID, &o.PaymentID, &status, &o.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, orderingDomain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	o.Status = orderingDomain.OrderStatus(status)

	rows, err := q.QueryContext(ctx,
		`SELECT product_id, product_name, unit_price, discount, units, picture_url
		 FROM order_items WHERE order_id=$1 ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item orderingDomain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice, &item.Discount, &item.Units, &item.PictureURL); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}

	return &o, rows.Err()
}

// ListStaleSubmitted devuelve los pedidos aún en submitted anteriores a
// olderThan. El watchdog solo necesita los ids.
func (r *OrderRepoPostgres) ListStaleSubmitted(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	rows, err := q.QueryContext(ctx,
		`SELECT id FROM orders WHERE status=$1 AND order_date < $2 ORDER BY order_date`,
		string(orderingDomain.StatusSubmitted), olderThan,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ------------------ Compradores ------------------

type BuyerRepoPostgres struct {
	db *sql.DB
}

func NewBuyerRepoPostgres(db *sql.DB) *BuyerRepoPostgres {
	return &BuyerRepoPostgres{db: db}
}

func (r *BuyerRepoPostgres) GetByIdentity(ctx context.Context, identityGUID string) (*orderingDomain.Buyer, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	var b orderingDomain.Buyer
	row := q.QueryRowContext(ctx,
		`SELECT id, identity_guid, name FROM buyers WHERE identity_guid=$1`, identityGUID)
	if err := row.Scan(&b.ID, &b.IdentityGUID, &b.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, orderingDomain.ErrBuyerNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, alias, card_type, card_number, security_number, card_holder_name, expiration
		 FROM payment_methods WHERE buyer_id=$1`, b.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pm orderingDomain.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.Alias, &pm.CardType, &pm.CardNumber, &pm.SecurityNumber, &pm.CardHolderName, &pm.Expiration); err != nil {
			return nil, err
		}
		b.PaymentMethods = append(b.PaymentMethods, pm)
	}

	return &b, rows.Err()
}

func (r *BuyerRepoPostgres) Save(ctx context.Context, b *orderingDomain.Buyer) error {
	q := persistence.QuerierFrom(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO buyers (id, identity_guid, name) VALUES ($1, $2, $3)
		 ON CONFLICT (identity_guid) DO UPDATE SET name = EXCLUDED.name`,
		b.ID, b.IdentityGUID, b.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert buyer: %w", err)
	}

	for _, pm := range b.PaymentMethods {
		_, err := q.ExecContext(ctx,
			`INSERT INTO payment_methods (id, buyer_id, alias, card_type, card_number, security_number, card_holder_name, expiration)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO NOTHING`,
			pm.ID, b.ID, pm.Alias, pm.CardType, pm.CardNumber, pm.SecurityNumber, pm.CardHolderName, pm.Expiration,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment method: %w", err)
		}
	}

	return nil
}

// ------------------ Inicialización ------------------

func InitPostgres(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			order_date TIMESTAMP NOT NULL,
			street TEXT NOT NULL,
			city TEXT NOT NULL,
			state TEXT NOT NULL,
			country TEXT NOT NULL,
			zip_code TEXT NOT NULL,
			buyer_id UUID,
			payment_id UUID,
			status TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id UUID NOT NULL REFERENCES orders(id),
			product_id INTEGER NOT NULL,
			product_name TEXT NOT NULL,
			unit_price DOUBLE PRECISION NOT NULL,
			discount DOUBLE PRECISION NOT NULL,
			units INTEGER NOT NULL,
			picture_url TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (order_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS buyers (
			id UUID PRIMARY KEY,
			identity_guid TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payment_methods (
			id UUID PRIMARY KEY,
			buyer_id UUID NOT NULL REFERENCES buyers(id),
			alias TEXT NOT NULL,
			card_type TEXT NOT NULL,
			card_number TEXT NOT NULL,
			security_number TEXT NOT NULL,
			card_holder_name TEXT NOT NULL,
			expiration TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			event_id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			content JSONB NOT NULL,
			state TEXT NOT NULL DEFAULT 'not_published',
			times_sent INTEGER NOT NULL DEFAULT 0,
			creation_time TIMESTAMP NOT NULL,
			transaction_id UUID NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS client_requests (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			time TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Verificación estática
var (
	_ orderingDomain.OrderRepository = (*OrderRepoPostgres)(nil)
	_ orderingDomain.BuyerRepository = (*BuyerRepoPostgres)(nil)
)
