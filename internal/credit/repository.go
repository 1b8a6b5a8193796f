package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/ledger"
	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository persists customers, credit transactions, invoices and payments
// in PostgreSQL.
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

// NewTxStore wraps an existing transaction so checkout and returns can post
// ledger entries inside the same commit as stock and sale rows.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) CustomerForUpdate(ctx context.Context, customerID int64) (Customer, error) {
	var c Customer
	err := s.tx.QueryRow(ctx, `SELECT id, org_id, name, COALESCE(email, ''), credit_limit, current_balance, created_at, updated_at
FROM customers WHERE id=$1 FOR UPDATE`, customerID).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.CreditLimit, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

func (s *txStore) UpdateBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	_, err := s.tx.Exec(ctx, `UPDATE customers SET current_balance=$2, updated_at=NOW() WHERE id=$1`, customerID, balance)
	return err
}

func (s *txStore) InsertTransaction(ctx context.Context, customerID int64, entry ledger.Entry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO credit_transactions (customer_id, transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		customerID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.RefType, entry.RefID, entry.OccurredAt).Scan(&id)
	return id, err
}

func (s *txStore) InsertInvoice(ctx context.Context, invoice Invoice) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO invoices (org_id, invoice_number, customer_id, sale_id, total, balance_due, status, due_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		invoice.OrgID, invoice.Number, invoice.CustomerID, nullInt(invoice.SaleID), invoice.Total, invoice.BalanceDue, string(invoice.Status), invoice.DueAt).Scan(&id)
	return id, err
}

func (s *txStore) OpenInvoicesForUpdate(ctx context.Context, customerID int64) ([]Invoice, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, org_id, invoice_number, customer_id, COALESCE(sale_id, 0), total, balance_due, status, due_at, created_at
FROM invoices
WHERE customer_id=$1 AND balance_due > 0
ORDER BY created_at ASC, id ASC
FOR UPDATE`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func (s *txStore) SettleInvoice(ctx context.Context, invoiceID int64, balanceDue decimal.Decimal, status InvoiceStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE invoices SET balance_due=$2, status=$3 WHERE id=$1`, invoiceID, balanceDue, string(status))
	return err
}

func (s *txStore) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO payments (customer_id, invoice_id, amount, method, reference, paid_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		payment.CustomerID, nullInt(payment.InvoiceID), payment.Amount, payment.Method, payment.Reference, payment.PaidAt).Scan(&id)
	return id, err
}

// GetCustomer loads one customer without locking.
func (r *Repository) GetCustomer(ctx context.Context, customerID int64) (Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, name, COALESCE(email, ''), credit_limit, current_balance, created_at, updated_at
FROM customers WHERE id=$1`, customerID).
		Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.CreditLimit, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	return c, err
}

// ListCustomers pages customers for an org.
func (r *Repository) ListCustomers(ctx context.Context, orgID int64, limit, offset int) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, name, COALESCE(email, ''), credit_limit, current_balance, created_at, updated_at
FROM customers WHERE org_id=$1 ORDER BY name ASC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.CreditLimit, &c.CurrentBalance, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// CreateCustomer inserts a customer with a zero opening balance.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (org_id, name, email, credit_limit, current_balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,0,NOW(),NOW()) RETURNING id`, c.OrgID, c.Name, c.Email, c.CreditLimit).Scan(&id)
	return id, err
}

// Transactions lists a customer's ledger oldest first.
func (r *Repository) Transactions(ctx context.Context, customerID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at
FROM credit_transactions WHERE customer_id=$1 ORDER BY occurred_at ASC, id ASC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.RefType, &t.RefID, &t.OccurredAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Invoices lists a customer's invoices newest first.
func (r *Repository) Invoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, invoice_number, customer_id, COALESCE(sale_id, 0), total, balance_due, status, due_at, created_at
FROM invoices WHERE customer_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// MarkOverdue flips SENT and PARTIAL invoices past their due date to OVERDUE.
// Run by the background scanner; returns the number of rows flipped.
func (r *Repository) MarkOverdue(ctx context.Context, orgID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status='OVERDUE'
WHERE org_id=$1 AND status IN ('SENT','PARTIAL') AND balance_due > 0 AND due_at < NOW()`, orgID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanInvoices(rows pgx.Rows) ([]Invoice, error) {
	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.OrgID, &inv.Number, &inv.CustomerID, &inv.SaleID, &inv.Total, &inv.BalanceDue, &inv.Status, &inv.DueAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
