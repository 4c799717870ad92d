package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"

	orderingDomain "github.com/davicafu/ordelab/internal/ordering/domain"
	"github.com/davicafu/ordelab/shared/platform/persistence"
)

// OrderRepoSQLite es el adaptador local (modo desarrollo y tests). Mismo
// contrato que el de Postgres; los UUID viajan como TEXT.
type OrderRepoSQLite struct {
	db *sql.DB
}

func NewOrderRepoSQLite(db *sql.DB) *OrderRepoSQLite {
	return &OrderRepoSQLite{db: db}
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func parseNullableUUID(s sql.NullString) (*uuid.UUID, error) {
	if !s.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	return &id, nil
}

// Save inserta o actualiza el pedido completo. Las líneas se reescriben:
// el agregado es la fuente de verdad de su composición.
func (r *OrderRepoSQLite) Save(ctx context.Context, o *orderingDomain.Order) error {
	q := persistence.QuerierFrom(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO orders (id, order_date, street, city, state, country, zip_code, buyer_id, payment_id, status, description)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT (id) DO UPDATE SET
			buyer_id = excluded.buyer_id,
			payment_id = excluded.payment_id,
			status = excluded.status,
			description = excluded.description`,
		o.ID.String(), o.OrderDate, o.Address.Street, o.Address.City, o.Address.State,
		o.Address.Country, o.Address.ZipCode, nullableUUID(o.BuyerID), nullableUUID(o.PaymentID),
		string(o.Status), o.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id=?`, o.ID.String()); err != nil {
		return fmt.Errorf("failed to clear order items: %w", err)
	}

	for _, item := range o.Items {
		_, err := q.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, unit_price, discount, units, picture_url)
			 VALUES (?,?,?,?,?,?,?)`,
			o.ID.String(), item.ProductID, item.ProductName, item.UnitPrice, item.Discount, item.Units, item.PictureURL,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *OrderRepoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*orderingDomain.Order, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	var o orderingDomain.Order
	var idStr, status string
	var buyerID, paymentID sql.NullString
	row := q.QueryRowContext(ctx,
		`SELECT id, order_date, street, city, state, country, zip_code, buyer_id, payment_id, status, description
		 FROM orders WHERE id=?`, id.String())
	if err := row.Scan(&idStr, &o.OrderDate, &o.Address.Street, &o.Address.City, &o.Address.State,
		&o.Address.Country, &o.Address.ZipCode, &buyerID, &paymentID, &status, &o.Description); err != nil {
		if err == sql.ErrNoRows {
			return nil, orderingDomain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	o.ID = parsedID
	o.Status = orderingDomain.OrderStatus(status)
	if o.BuyerID, err = parseNullableUUID(buyerID); err != nil {
		return nil, err
	}
	if o.PaymentID, err = parseNullableUUID(paymentID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT product_id, product_name, unit_price, discount, units, picture_url
		 FROM order_items WHERE order_id=? ORDER BY product_id`, id.String())
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
func (r *OrderRepoSQLite) ListStaleSubmitted(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	rows, err := q.QueryContext(ctx,
		`SELECT id FROM orders WHERE status=? AND order_date < ? ORDER BY order_date`,
		string(orderingDomain.StatusSubmitted), olderThan,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ------------------ Compradores ------------------

type BuyerRepoSQLite struct {
	db *sql.DB
}

func NewBuyerRepoSQLite(db *sql.DB) *BuyerRepoSQLite {
	return &BuyerRepoSQLite{db: db}
}

func (r *BuyerRepoSQLite) GetByIdentity(ctx context.Context, identityGUID string) (*orderingDomain.Buyer, error) {
	q := persistence.QuerierFrom(ctx, r.db)

	var b orderingDomain.Buyer
	var idStr string
	row := q.QueryRowContext(ctx,
		`SELECT id, identity_guid, name FROM buyers WHERE identity_guid=?`, identityGUID)
	if err := row.Scan(&idStr, &b.IdentityGUID, &b.Name); err != nil {
		if err == sql.ErrNoRows {
			return nil, orderingDomain.ErrBuyerNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	parsedID, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid UUID in DB: %w", err)
	}
	b.ID = parsedID

	rows, err := q.QueryContext(ctx,
		`SELECT id, alias, card_type, card_number, security_number, card_holder_name, expiration
		 FROM payment_methods WHERE buyer_id=?`, b.ID.String())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pm orderingDomain.PaymentMethod
		var pmIDStr string
		if err := rows.Scan(&pmIDStr, &pm.Alias, &pm.CardType, &pm.CardNumber, &pm.SecurityNumber, &pm.CardHolderName, &pm.Expiration); err != nil {
			return nil, err
		}
		pmID, err := uuid.Parse(pmIDStr)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID in DB: %w", err)
		}
		pm.ID = pmID
		b.PaymentMethods = append(b.PaymentMethods, pm)
	}

	return &b, rows.Err()
}

func (r *BuyerRepoSQLite) Save(ctx context.Context, b *orderingDomain.Buyer) error {
	q := persistence.QuerierFrom(ctx, r.db)

	_, err := q.ExecContext(ctx,
		`INSERT INTO buyers (id, identity_guid, name) VALUES (?,?,?)
		 ON CONFLICT (identity_guid) DO UPDATE SET name = excluded.name`,
		b.ID.String(), b.IdentityGUID, b.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert buyer: %w", err)
	}

	for _, pm := range b.PaymentMethods {
		_, err := q.ExecContext(ctx,
			`INSERT INTO payment_methods (id, buyer_id, alias, card_type, card_number, security_number, card_holder_name, expiration)
			 VALUES (?,?,?,?,?,?,?,?)
			 ON CONFLICT (id) DO NOTHING`,
			pm.ID.String(), b.ID.String(), pm.Alias, pm.CardType, pm.CardNumber, pm.SecurityNumber, pm.CardHolderName, pm.Expiration,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment method: %w", err)
		}
	}

	return nil
}

// ------------------ Inicialización de DB ------------------

// InitSQLite crea el esquema completo si no existe.
func InitSQLite(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			order_date DATETIME NOT NULL,
			street TEXT NOT NULL,
			city TEXT NOT NULL,
			state TEXT NOT NULL,
			country TEXT NOT NULL,
			zip_code TEXT NOT NULL,
			buyer_id TEXT,
			payment_id TEXT,
			status TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL REFERENCES orders(id),
			product_id INTEGER NOT NULL,
			product_name TEXT NOT NULL,
			unit_price REAL NOT NULL,
			discount REAL NOT NULL,
			units INTEGER NOT NULL,
			picture_url TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (order_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS buyers (
			id TEXT PRIMARY KEY,
			identity_guid TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payment_methods (
			id TEXT PRIMARY KEY,
			buyer_id TEXT NOT NULL REFERENCES buyers(id),
			alias TEXT NOT NULL,
			card_type TEXT NOT NULL,
			card_number TEXT NOT NULL,
			security_number TEXT NOT NULL,
			card_holder_name TEXT NOT NULL,
			expiration TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			event_id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			content TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'not_published',
			times_sent INTEGER NOT NULL DEFAULT 0,
			creation_time DATETIME NOT NULL,
			transaction_id TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS client_requests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			time DATETIME NOT NULL
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
	_ orderingDomain.OrderRepository = (*OrderRepoSQLite)(nil)
	_ orderingDomain.BuyerRepository = (*BuyerRepoSQLite)(nil)
)
