package procurement

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository persists purchase orders and receivings in PostgreSQL.
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
		return fn(ctx, &txStore{tx: tx})
	})
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) OrderForUpdate(ctx context.Context, orderID int64) (Order, error) {
	var o Order
	err := s.tx.QueryRow(ctx, `SELECT id, org_id, po_number, supplier_id, location_id, status, total, created_by, created_at, updated_at
FROM purchase_orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.OrgID, &o.Number, &o.SupplierID, &o.LocationID, &o.Status, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func (s *txStore) ItemsForUpdate(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, order_id, product_id, ordered_qty, received_qty, unit_cost
FROM purchase_order_items WHERE order_id=$1 ORDER BY id ASC FOR UPDATE`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *txStore) AdjustItemReceived(ctx context.Context, itemID, delta int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE purchase_order_items
SET received_qty = received_qty + $2
WHERE id=$1 AND received_qty + $2 >= 0 AND received_qty + $2 <= ordered_qty`, itemID, delta)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *txStore) UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, string(status))
	return err
}

func (s *txStore) InsertOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO purchase_orders (org_id, po_number, supplier_id, location_id, status, total, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		order.OrgID, order.Number, order.SupplierID, order.LocationID, string(order.Status), order.Total, order.CreatedBy).Scan(&id)
	return id, err
}

func (s *txStore) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO purchase_order_items (order_id, product_id, ordered_qty, received_qty, unit_cost)
VALUES ($1,$2,$3,0,$4) RETURNING id`,
		item.OrderID, item.ProductID, item.OrderedQty, item.UnitCost).Scan(&id)
	return id, err
}

func (s *txStore) InsertReceiving(ctx context.Context, rec Receiving) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO receivings (order_id, receiving_number, voided, received_by, received_at)
VALUES ($1,$2,false,$3,$4) RETURNING id`,
		rec.OrderID, rec.Number, rec.ReceivedBy, rec.ReceivedAt).Scan(&id)
	return id, err
}

func (s *txStore) InsertReceivingLine(ctx context.Context, line ReceivingLine) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO receiving_lines (receiving_id, order_item_id, product_id, quantity, expiration)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		line.ReceivingID, line.OrderItemID, line.ProductID, line.Quantity, line.Expiration).Scan(&id)
	return id, err
}

func (s *txStore) ReceivingForUpdate(ctx context.Context, receivingID int64) (Receiving, error) {
	var rec Receiving
	err := s.tx.QueryRow(ctx, `SELECT id, order_id, receiving_number, voided, COALESCE(void_reason, ''), received_by, received_at, voided_at
FROM receivings WHERE id=$1 FOR UPDATE`, receivingID).
		Scan(&rec.ID, &rec.OrderID, &rec.Number, &rec.Voided, &rec.VoidReason, &rec.ReceivedBy, &rec.ReceivedAt, &rec.VoidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receiving{}, ErrReceivingNotFound
	}
	if err != nil {
		return Receiving{}, err
	}
	rows, err := s.tx.Query(ctx, `SELECT id, receiving_id, order_item_id, product_id, quantity, expiration
FROM receiving_lines WHERE receiving_id=$1 ORDER BY id ASC`, receivingID)
	if err != nil {
		return Receiving{}, err
	}
	defer rows.Close()
	rec.Lines, err = scanLines(rows)
	return rec, err
}

func (s *txStore) MarkVoided(ctx context.Context, receivingID int64, reason string, at time.Time) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE receivings SET voided=true, void_reason=$2, voided_at=$3
WHERE id=$1 AND NOT voided`, receivingID, reason, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *txStore) Inventory() inventory.TxStore {
	return inventory.NewTxStore(s.tx)
}

func (s *txStore) Sequences() numbering.Sequencer {
	return numbering.NewTxSequencer(s.tx)
}

// GetOrder loads one order with items.
func (r *Repository) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, po_number, supplier_id, location_id, status, total, created_by, created_at, updated_at
FROM purchase_orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.OrgID, &o.Number, &o.SupplierID, &o.LocationID, &o.Status, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, ordered_qty, received_qty, unit_cost
FROM purchase_order_items WHERE order_id=$1 ORDER BY id ASC`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	o.Items, err = scanItems(rows)
	return o, err
}

// ListOrders pages an org's orders newest first, optionally by status.
func (r *Repository) ListOrders(ctx context.Context, orgID int64, status OrderStatus, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, po_number, supplier_id, location_id, status, total, created_by, created_at, updated_at
FROM purchase_orders
WHERE org_id=$1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, orgID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.OrgID, &o.Number, &o.SupplierID, &o.LocationID, &o.Status, &o.Total, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetReceiving loads one receiving with lines.
func (r *Repository) GetReceiving(ctx context.Context, receivingID int64) (Receiving, error) {
	var rec Receiving
	err := r.pool.QueryRow(ctx, `SELECT id, order_id, receiving_number, voided, COALESCE(void_reason, ''), received_by, received_at, voided_at
FROM receivings WHERE id=$1`, receivingID).
		Scan(&rec.ID, &rec.OrderID, &rec.Number, &rec.Voided, &rec.VoidReason, &rec.ReceivedBy, &rec.ReceivedAt, &rec.VoidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receiving{}, ErrReceivingNotFound
	}
	if err != nil {
		return Receiving{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, receiving_id, order_item_id, product_id, quantity, expiration
FROM receiving_lines WHERE receiving_id=$1 ORDER BY id ASC`, receivingID)
	if err != nil {
		return Receiving{}, err
	}
	defer rows.Close()
	rec.Lines, err = scanLines(rows)
	return rec, err
}

// Receivings lists an order's receipts oldest first.
func (r *Repository) Receivings(ctx context.Context, orderID int64) ([]Receiving, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, receiving_number, voided, COALESCE(void_reason, ''), received_by, received_at, voided_at
FROM receivings WHERE order_id=$1 ORDER BY received_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Receiving
	for rows.Next() {
		var rec Receiving
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.Number, &rec.Voided, &rec.VoidReason, &rec.ReceivedBy, &rec.ReceivedAt, &rec.VoidedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanItems(rows pgx.Rows) ([]OrderItem, error) {
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.OrderedQty, &item.ReceivedQty, &item.UnitCost); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanLines(rows pgx.Rows) ([]ReceivingLine, error) {
	var lines []ReceivingLine
	for rows.Next() {
		var line ReceivingLine
		if err := rows.Scan(&line.ID, &line.ReceivingID, &line.OrderItemID, &line.ProductID, &line.Quantity, &line.Expiration); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
