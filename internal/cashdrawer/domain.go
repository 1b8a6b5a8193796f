// Package cashdrawer owns drawer sessions at physical registers: opening
// floats, the append-only cash transaction chain, pause/resume, expense
// disbursements and close-out with discrepancy.
package cashdrawer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus lifecycle for a drawer session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionPaused SessionStatus = "PAUSED"
	SessionClosed SessionStatus = "CLOSED"
)

// Session is one cashier shift at one register. At most one non-closed
// session may exist per location; a partial unique index backs that rule.
type Session struct {
	ID            int64           `json:"id"`
	OrgID         int64           `json:"org_id"`
	LocationID    int64           `json:"location_id"`
	CashierID     int64           `json:"cashier_id"`
	Status        SessionStatus   `json:"status"`
	OpeningFloat  decimal.Decimal `json:"opening_float"`
	ExpectedCash  decimal.Decimal `json:"expected_cash"`
	ClosingActual decimal.Decimal `json:"closing_actual"`
	Discrepancy   decimal.Decimal `json:"discrepancy"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// TransactionType enumerates drawer cash movements. Non-cash tenders never
// appear here; they land in the settlements table so the cash chain stays
// reconcilable against the physical drawer.
type TransactionType string

const (
	TransactionSaleCashIn     TransactionType = "SALE_CASH_IN"
	TransactionRefundCashOut  TransactionType = "REFUND_CASH_OUT"
	TransactionExpenseCashOut TransactionType = "EXPENSE_CASH_OUT"
)

// Transaction is one append-only drawer cash row with balance chaining.
type Transaction struct {
	ID            int64           `json:"id"`
	SessionID     int64           `json:"session_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"` // signed
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	RefType       string          `json:"ref_type"`
	RefID         string          `json:"ref_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Settlement records a non-cash tender taken during a session, kept apart
// from the cash chain.
type Settlement struct {
	ID         int64           `json:"id"`
	SessionID  int64           `json:"session_id"`
	Method     string          `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	RefType    string          `json:"ref_type"`
	RefID      string          `json:"ref_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Expense is a cash disbursement from the drawer, numbered per org.
type Expense struct {
	ID          int64           `json:"id"`
	OrgID       int64           `json:"org_id"`
	SessionID   int64           `json:"session_id"`
	Number      string          `json:"number"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	ActorID     int64           `json:"actor_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ShiftReport summarises a session for close-out review.
type ShiftReport struct {
	Session      Session                    `json:"session"`
	CashIn       decimal.Decimal            `json:"cash_in"`
	CashOut      decimal.Decimal            `json:"cash_out"`
	ByType       map[string]decimal.Decimal `json:"by_type"`
	Settlements  map[string]decimal.Decimal `json:"settlements"`
	Transactions []Transaction              `json:"transactions"`
}

var (
	// ErrSessionOpen indicates the location already has a non-closed session.
	ErrSessionOpen = errors.New("cashdrawer: location already has an open session")
	// ErrNoOpenSession indicates no open session exists where one is required.
	ErrNoOpenSession = errors.New("cashdrawer: no open session")
	// ErrSessionNotOpen rejects postings to a paused or closed session.
	ErrSessionNotOpen = errors.New("cashdrawer: session is not open")
	// ErrSessionClosed rejects lifecycle transitions on a closed session.
	ErrSessionClosed = errors.New("cashdrawer: session already closed")
	// ErrInvalidAmount rejects non-positive amounts.
	ErrInvalidAmount = errors.New("cashdrawer: amount must be positive")
)
