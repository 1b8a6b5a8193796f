// Package credit owns the customer credit ledger: running balances, the
// append-only CreditTransaction trail, invoices for credit sales and FIFO
// payment application.
package credit

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// Status derives from balance versus limit. It is computed, never stored
// authoritatively; the same thresholds guard credit sales at write time.
type Status string

const (
	StatusGood    Status = "GOOD"
	StatusWarning Status = "WARNING"
	StatusBlocked Status = "BLOCKED"
)

// warningThreshold is the fraction of the credit limit where status moves
// from GOOD to WARNING.
var warningThreshold = decimal.NewFromFloat(0.8)

// StatusOf derives credit status: GOOD below 80% of the limit, WARNING from
// 80% up to the limit, BLOCKED at or past the limit.
func StatusOf(balance, limit decimal.Decimal) Status {
	if limit.IsZero() {
		if balance.IsPositive() {
			return StatusBlocked
		}
		return StatusGood
	}
	if balance.GreaterThanOrEqual(limit) {
		return StatusBlocked
	}
	if balance.GreaterThanOrEqual(limit.Mul(warningThreshold)) {
		return StatusWarning
	}
	return StatusGood
}

// CheckLimit rejects a credit sale whose projected balance would exceed the
// customer's limit. Overrides by an authorised role are a policy hook owned
// by the caller.
func CheckLimit(balance, limit, amount decimal.Decimal) error {
	if balance.Add(amount).GreaterThan(limit) {
		return ErrLimitExceeded
	}
	return nil
}

// Customer is the aggregate root for credit transactions.
type Customer struct {
	ID             int64           `json:"id"`
	OrgID          int64           `json:"org_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TransactionType enumerates ledger entry kinds. CREDIT increases the
// balance, PAYMENT decreases it against money received, ADJUSTMENT decreases
// or increases it without cash movement (e.g. returns on credit sales).
type TransactionType string

const (
	TransactionCredit     TransactionType = "CREDIT"
	TransactionPayment    TransactionType = "PAYMENT"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Transaction is one append-only credit ledger row.
type Transaction struct {
	ID            int64           `json:"id"`
	CustomerID    int64           `json:"customer_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"` // signed
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	RefType       string          `json:"ref_type"`
	RefID         string          `json:"ref_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// InvoiceStatus lifecycle for credit-sale invoices.
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "DRAFT"
	InvoiceSent    InvoiceStatus = "SENT"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// Invoice is created for credit sales. BalanceDue always equals Total minus
// the sum of non-voided payments linked to it.
type Invoice struct {
	ID         int64           `json:"id"`
	OrgID      int64           `json:"org_id"`
	Number     string          `json:"number"`
	CustomerID int64           `json:"customer_id"`
	SaleID     int64           `json:"sale_id,omitempty"`
	Total      decimal.Decimal `json:"total"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     InvoiceStatus   `json:"status"`
	DueAt      time.Time       `json:"due_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Payment is an immutable settlement row. Reversals are new compensating
// entries, never mutations.
type Payment struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	InvoiceID  int64           `json:"invoice_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	PaidAt     time.Time       `json:"paid_at"`
}

var (
	// ErrLimitExceeded indicates a credit sale would push the balance past
	// the customer's limit.
	ErrLimitExceeded = errors.New("credit: limit exceeded")
	// ErrCustomerNotFound indicates the customer does not exist.
	ErrCustomerNotFound = fmt.Errorf("credit: customer %w", shared.ErrNotFound)
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("credit: amount must be positive")
)
