package returns

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/platform/db"
	"github.com/meridian-retail/meridian/internal/sales"
)

// Repository persists returns in PostgreSQL.
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

func (s *txStore) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO returns (org_id, return_number, sale_id, refund_method, refund_total, reason, notes, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		ret.OrgID, ret.Number, ret.SaleID, string(ret.RefundMethod), ret.RefundTotal, ret.Reason, ret.Notes, ret.ActorID).Scan(&id)
	return id, err
}

func (s *txStore) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO return_lines (return_id, sale_item_id, product_id, quantity, condition, disposition, amount)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		line.ReturnID, line.SaleItemID, line.ProductID, line.Quantity, string(line.Condition), string(line.Disposition), line.Amount).Scan(&id)
	return id, err
}

func (s *txStore) ReturnedQty(ctx context.Context, saleItemID int64) (int64, error) {
	var qty int64
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM return_lines WHERE sale_item_id=$1`, saleItemID).Scan(&qty)
	return qty, err
}

func (s *txStore) Sales() sales.TxStore           { return sales.NewTxStore(s.tx) }
func (s *txStore) Inventory() inventory.TxStore   { return inventory.NewTxStore(s.tx) }
func (s *txStore) Drawer() cashdrawer.TxStore     { return cashdrawer.NewTxStore(s.tx) }
func (s *txStore) Credit() credit.TxStore         { return credit.NewTxStore(s.tx) }
func (s *txStore) Sequences() numbering.Sequencer { return numbering.NewTxSequencer(s.tx) }

// GetReturn loads one return with lines.
func (r *Repository) GetReturn(ctx context.Context, returnID int64) (Return, error) {
	var ret Return
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, return_number, sale_id, refund_method, refund_total, reason, notes, actor_id, created_at
FROM returns WHERE id=$1`, returnID).
		Scan(&ret.ID, &ret.OrgID, &ret.Number, &ret.SaleID, &ret.RefundMethod, &ret.RefundTotal, &ret.Reason, &ret.Notes, &ret.ActorID, &ret.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, ErrReturnNotFound
	}
	if err != nil {
		return Return{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, return_id, sale_item_id, product_id, quantity, condition, disposition, amount
FROM return_lines WHERE return_id=$1 ORDER BY id ASC`, returnID)
	if err != nil {
		return Return{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.ReturnID, &line.SaleItemID, &line.ProductID, &line.Quantity, &line.Condition, &line.Disposition, &line.Amount); err != nil {
			return Return{}, err
		}
		ret.Lines = append(ret.Lines, line)
	}
	return ret, rows.Err()
}

// ListBySale lists a sale's returns oldest first.
func (r *Repository) ListBySale(ctx context.Context, saleID int64) ([]Return, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, return_number, sale_id, refund_method, refund_total, reason, notes, actor_id, created_at
FROM returns WHERE sale_id=$1 ORDER BY created_at ASC, id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Return
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.OrgID, &ret.Number, &ret.SaleID, &ret.RefundMethod, &ret.RefundTotal, &ret.Reason, &ret.Notes, &ret.ActorID, &ret.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ret)
	}
	return result, rows.Err()
}
