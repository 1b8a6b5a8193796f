package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/ledger"
)

// TxStore exposes the credit ledger operations available inside a
// transaction. Balance mutations always pair a customer row update with an
// appended transaction row built by the ledger package, so the chain
// invariant holds by construction.
type TxStore interface {
	// CustomerForUpdate locks and returns the customer row.
	CustomerForUpdate(ctx context.Context, customerID int64) (Customer, error)
	// UpdateBalance persists the new running balance.
	UpdateBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error
	// InsertTransaction appends one immutable ledger row.
	InsertTransaction(ctx context.Context, customerID int64, entry ledger.Entry) (int64, error)
	// InsertInvoice persists a new invoice and returns its id.
	InsertInvoice(ctx context.Context, invoice Invoice) (int64, error)
	// OpenInvoicesForUpdate locks the customer's unpaid invoices ordered
	// oldest first.
	OpenInvoicesForUpdate(ctx context.Context, customerID int64) ([]Invoice, error)
	// SettleInvoice updates an invoice's balance due and status.
	SettleInvoice(ctx context.Context, invoiceID int64, balanceDue decimal.Decimal, status InvoiceStatus) error
	// InsertPayment persists an immutable payment row.
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
}

// Ref identifies the document a ledger entry belongs to.
type Ref struct {
	Type string
	ID   string
}

// ApplyCredit increases the customer balance for a credit sale, enforcing the
// credit limit against the projected balance. Callable from any caller-owned
// transaction so checkout commits stock, sale and ledger together.
func ApplyCredit(ctx context.Context, tx TxStore, customerID int64, amount decimal.Decimal, ref Ref) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}
	customer, err := tx.CustomerForUpdate(ctx, customerID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if err := CheckLimit(customer.CurrentBalance, customer.CreditLimit, amount); err != nil {
		return ledger.Entry{}, err
	}
	return post(ctx, tx, customer, string(TransactionCredit), amount, ref)
}

// Allocation records how much of a payment settled one invoice.
type Allocation struct {
	InvoiceID int64           `json:"invoice_id"`
	Number    string          `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
}

// PaymentResult is the outcome of applying a payment.
type PaymentResult struct {
	Entry       ledger.Entry
	Allocations []Allocation
	Unapplied   decimal.Decimal
}

// ApplyPayment records money received from a customer, allocating it across
// open invoices oldest first. One aggregate PAYMENT ledger entry is written
// for the whole amount; per-invoice payment rows carry the split. Any amount
// beyond the open invoices still reduces the balance (prepayment).
func ApplyPayment(ctx context.Context, tx TxStore, customerID int64, amount decimal.Decimal, method, reference string) (PaymentResult, error) {
	if !amount.IsPositive() {
		return PaymentResult{}, ErrInvalidAmount
	}
	customer, err := tx.CustomerForUpdate(ctx, customerID)
	if err != nil {
		return PaymentResult{}, err
	}
	invoices, err := tx.OpenInvoicesForUpdate(ctx, customerID)
	if err != nil {
		return PaymentResult{}, fmt.Errorf("credit: lock invoices: %w", err)
	}

	now := time.Now().UTC()
	remaining := amount
	var allocations []Allocation
	for _, inv := range invoices {
		if remaining.IsZero() {
			break
		}
		applied := decimal.Min(remaining, inv.BalanceDue)
		due := inv.BalanceDue.Sub(applied)
		status := InvoicePartial
		if due.IsZero() {
			status = InvoicePaid
		}
		if err := tx.SettleInvoice(ctx, inv.ID, due, status); err != nil {
			return PaymentResult{}, fmt.Errorf("credit: settle invoice %s: %w", inv.Number, err)
		}
		if _, err := tx.InsertPayment(ctx, Payment{
			CustomerID: customerID,
			InvoiceID:  inv.ID,
			Amount:     applied,
			Method:     method,
			Reference:  reference,
			PaidAt:     now,
		}); err != nil {
			return PaymentResult{}, fmt.Errorf("credit: insert payment: %w", err)
		}
		allocations = append(allocations, Allocation{InvoiceID: inv.ID, Number: inv.Number, Amount: applied})
		remaining = remaining.Sub(applied)
	}
	if remaining.IsPositive() {
		// Prepayment with no invoice to land on.
		if _, err := tx.InsertPayment(ctx, Payment{
			CustomerID: customerID,
			Amount:     remaining,
			Method:     method,
			Reference:  reference,
			PaidAt:     now,
		}); err != nil {
			return PaymentResult{}, fmt.Errorf("credit: insert payment: %w", err)
		}
	}

	entry, err := post(ctx, tx, customer, string(TransactionPayment), amount.Neg(), Ref{Type: "PAYMENT", ID: reference})
	if err != nil {
		return PaymentResult{}, err
	}
	return PaymentResult{Entry: entry, Allocations: allocations, Unapplied: remaining}, nil
}

// ApplyAdjustment moves the balance by a signed amount without cash movement,
// used by returns against credit sales and manual corrections. Adjustments
// bypass the credit limit: they only ever correct an existing exposure.
func ApplyAdjustment(ctx context.Context, tx TxStore, customerID int64, amount decimal.Decimal, ref Ref) (ledger.Entry, error) {
	customer, err := tx.CustomerForUpdate(ctx, customerID)
	if err != nil {
		return ledger.Entry{}, err
	}
	return post(ctx, tx, customer, string(TransactionAdjustment), amount, ref)
}

func post(ctx context.Context, tx TxStore, customer Customer, entryType string, amount decimal.Decimal, ref Ref) (ledger.Entry, error) {
	entry, err := ledger.Next(customer.CurrentBalance, entryType, amount, ref.Type, ref.ID, time.Now().UTC())
	if err != nil {
		return ledger.Entry{}, err
	}
	if _, err := tx.InsertTransaction(ctx, customer.ID, entry); err != nil {
		return ledger.Entry{}, fmt.Errorf("credit: insert transaction: %w", err)
	}
	if err := tx.UpdateBalance(ctx, customer.ID, entry.BalanceAfter); err != nil {
		return ledger.Entry{}, fmt.Errorf("credit: update balance: %w", err)
	}
	return entry, nil
}
