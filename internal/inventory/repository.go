package inventory

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/platform/db"
)

// A nil expiration sorts and conflicts as this sentinel so the
// (product, location, expiration) key stays unique and FEFO order puts
// non-expiring batches last.
const noExpirySentinel = "9999-12-31"

// Repository persists stock levels and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// NewTxStore wraps an existing transaction so other engines can share it.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) BatchesForUpdate(ctx context.Context, productID, locationID int64) ([]StockLevel, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, product_id, location_id, expiration, quantity, updated_at
FROM stock_levels
WHERE product_id=$1 AND location_id=$2
ORDER BY COALESCE(expiration, $3::date) ASC, id ASC
FOR UPDATE`, productID, locationID, noExpirySentinel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []StockLevel
	for rows.Next() {
		var b StockLevel
		if err := rows.Scan(&b.ID, &b.ProductID, &b.LocationID, &b.Expiration, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *txStore) AddQuantity(ctx context.Context, productID, locationID int64, expiration *time.Time, quantity int64) error {
	// Unique expression index on (product_id, location_id,
	// COALESCE(expiration, '9999-12-31')) backs the conflict target.
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_levels (product_id, location_id, expiration, quantity, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (product_id, location_id, COALESCE(expiration, '9999-12-31'::date))
DO UPDATE SET quantity = stock_levels.quantity + EXCLUDED.quantity, updated_at = NOW()`, productID, locationID, expiration, quantity)
	return err
}

func (s *txStore) TakeQuantity(ctx context.Context, productID, locationID int64, expiration *time.Time, quantity int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE stock_levels
SET quantity = quantity - $4, updated_at = NOW()
WHERE product_id=$1 AND location_id=$2
  AND COALESCE(expiration, $5::date) = COALESCE($3, $5::date)
  AND quantity >= $4`, productID, locationID, expiration, quantity, noExpirySentinel)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_movements (movement_type, product_id, location_id, expiration, quantity, ref_type, ref_id, actor_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, string(m.Type), m.ProductID, m.LocationID, m.Expiration, m.Quantity, m.RefType, m.RefID, nullInt(m.ActorID), m.OccurredAt)
	return err
}

// Available sums all batch rows for a product at a location.
func (r *Repository) Available(ctx context.Context, productID, locationID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_levels WHERE product_id=$1 AND location_id=$2`, productID, locationID).Scan(&qty)
	return qty, err
}

// Levels lists batch rows for a product at a location in FEFO order.
func (r *Repository) Levels(ctx context.Context, productID, locationID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, location_id, expiration, quantity, updated_at
FROM stock_levels WHERE product_id=$1 AND location_id=$2
ORDER BY COALESCE(expiration, $3::date) ASC, id ASC`, productID, locationID, noExpirySentinel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []StockLevel
	for rows.Next() {
		var b StockLevel
		if err := rows.Scan(&b.ID, &b.ProductID, &b.LocationID, &b.Expiration, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, b)
	}
	return levels, rows.Err()
}

// LowStock reports products at or below their reorder point at a location.
func (r *Repository) LowStock(ctx context.Context, orgID, locationID int64) ([]LowStockRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, COALESCE(SUM(sl.quantity), 0) AS on_hand, p.reorder_point, p.reorder_qty
FROM products p
LEFT JOIN stock_levels sl ON sl.product_id = p.id AND sl.location_id = $2
WHERE p.org_id = $1 AND p.is_active
GROUP BY p.id, p.sku, p.name, p.reorder_point, p.reorder_qty
HAVING COALESCE(SUM(sl.quantity), 0) <= p.reorder_point
ORDER BY p.name ASC`, orgID, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []LowStockRow
	for rows.Next() {
		var row LowStockRow
		if err := rows.Scan(&row.ProductID, &row.SKU, &row.Name, &row.OnHand, &row.ReorderPoint, &row.ReorderQty); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// ExpiringSoon reports batches whose expiration falls inside each product's
// alert window.
func (r *Repository) ExpiringSoon(ctx context.Context, orgID, locationID int64, asOf time.Time) ([]ExpiringRow, error) {
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, sl.expiration, sl.quantity
FROM stock_levels sl
JOIN products p ON p.id = sl.product_id
WHERE p.org_id = $1 AND sl.location_id = $2 AND p.tracks_expiry
  AND sl.quantity > 0 AND sl.expiration IS NOT NULL
  AND sl.expiration <= ($3::date + p.expiry_alert_days)
ORDER BY sl.expiration ASC`, orgID, locationID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []ExpiringRow
	for rows.Next() {
		var row ExpiringRow
		if err := rows.Scan(&row.ProductID, &row.SKU, &row.Name, &row.Expiration, &row.Quantity); err != nil {
			return nil, err
		}
		row.DaysLeft = int(row.Expiration.Sub(asOf).Hours() / 24)
		result = append(result, row)
	}
	return result, rows.Err()
}

// Movements lists the stock movement audit trail.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, movement_type, product_id, location_id, expiration, quantity, ref_type, ref_id, COALESCE(actor_id, 0), occurred_at
FROM stock_movements
WHERE product_id=$1 AND location_id=$2
  AND occurred_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY occurred_at ASC, id ASC
LIMIT $5`, filter.ProductID, filter.LocationID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Type, &m.ProductID, &m.LocationID, &m.Expiration, &m.Quantity, &m.RefType, &m.RefID, &m.ActorID, &m.OccurredAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
