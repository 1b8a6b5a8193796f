package sales

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
)

// Repository persists sales in PostgreSQL.
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

// NewTxStore wraps an existing transaction so the returns engine can read
// and restate sales inside its own commit.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

const saleColumns = `id, org_id, sale_number, location_id, COALESCE(customer_id, 0), cashier_id, status, method,
subtotal, discount_total, tax_total, total, amount_paid, change_due, COALESCE(invoice_id, 0), created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.OrgID, &s.Number, &s.LocationID, &s.CustomerID, &s.CashierID, &s.Status, &s.Method,
		&s.Subtotal, &s.DiscountTotal, &s.TaxTotal, &s.Total, &s.AmountPaid, &s.ChangeDue, &s.InvoiceID, &s.CreatedAt)
	return s, err
}

func (s *txStore) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO sales (org_id, sale_number, location_id, customer_id, cashier_id, status, method,
subtotal, discount_total, tax_total, total, amount_paid, change_due, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW()) RETURNING id`,
		sale.OrgID, sale.Number, sale.LocationID, nullInt(sale.CustomerID), sale.CashierID, string(sale.Status), string(sale.Method),
		sale.Subtotal, sale.DiscountTotal, sale.TaxTotal, sale.Total, sale.AmountPaid, sale.ChangeDue).Scan(&id)
	return id, err
}

func (s *txStore) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, discount, tax_rate, tax_amount, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount, item.TaxRate, item.TaxAmount, item.LineTotal).Scan(&id)
	return id, err
}

func (s *txStore) SetInvoice(ctx context.Context, saleID, invoiceID int64) error {
	_, err := s.tx.Exec(ctx, `UPDATE sales SET invoice_id=$2 WHERE id=$1`, saleID, invoiceID)
	return err
}

func (s *txStore) SaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	sale, err := scanSale(s.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	return sale, err
}

func (s *txStore) ItemsBySale(ctx context.Context, saleID int64) ([]Item, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, discount, tax_rate, tax_amount, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *txStore) UpdateStatus(ctx context.Context, saleID int64, status Status) error {
	_, err := s.tx.Exec(ctx, `UPDATE sales SET status=$2 WHERE id=$1`, saleID, string(status))
	return err
}

func (s *txStore) Inventory() inventory.TxStore {
	return inventory.NewTxStore(s.tx)
}

func (s *txStore) Credit() credit.TxStore {
	return credit.NewTxStore(s.tx)
}

func (s *txStore) Drawer() cashdrawer.TxStore {
	return cashdrawer.NewTxStore(s.tx)
}

func (s *txStore) Sequences() numbering.Sequencer {
	return numbering.NewTxSequencer(s.tx)
}

// GetSale loads one sale with items.
func (r *Repository) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, saleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return Sale{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, discount, tax_rate, tax_amount, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id ASC`, saleID)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	sale.Items, err = scanItems(rows)
	return sale, err
}

// ListSales pages a location's sales newest first.
func (r *Repository) ListSales(ctx context.Context, orgID, locationID int64, limit, offset int) ([]Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sales
WHERE org_id=$1 AND ($2 = 0 OR location_id = $2)
ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, orgID, locationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.Discount, &item.TaxRate, &item.TaxAmount, &item.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
