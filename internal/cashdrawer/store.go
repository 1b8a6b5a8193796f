package cashdrawer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/ledger"
	"github.com/meridian-retail/meridian/internal/numbering"
)

// TxStore exposes drawer operations available inside a transaction. Expected
// cash mutations always pair a session update with an appended transaction
// row built by the ledger package.
type TxStore interface {
	// OpenSessionForUpdate locks the location's open session. Returns
	// ErrNoOpenSession when the location has none.
	OpenSessionForUpdate(ctx context.Context, locationID int64) (Session, error)
	// SessionForUpdate locks one session by id.
	SessionForUpdate(ctx context.Context, sessionID int64) (Session, error)
	// InsertSession persists a new session. The partial unique index on
	// non-closed sessions per location surfaces as ErrSessionOpen.
	InsertSession(ctx context.Context, session Session) (int64, error)
	// UpdateStatus moves a session between OPEN and PAUSED.
	UpdateStatus(ctx context.Context, sessionID int64, status SessionStatus) error
	// UpdateExpectedCash persists the running expected cash figure.
	UpdateExpectedCash(ctx context.Context, sessionID int64, expected decimal.Decimal) error
	// CloseSession finalises the session with the counted amount.
	CloseSession(ctx context.Context, sessionID int64, actual, discrepancy decimal.Decimal, closedAt time.Time) error
	// InsertTransaction appends one immutable cash chain row.
	InsertTransaction(ctx context.Context, sessionID int64, entry ledger.Entry) (int64, error)
	// InsertSettlement records a non-cash tender outside the cash chain.
	InsertSettlement(ctx context.Context, settlement Settlement) (int64, error)
	// InsertExpense persists a numbered expense row.
	InsertExpense(ctx context.Context, expense Expense) (int64, error)
	// Sequences allocates document numbers inside this transaction.
	Sequences() numbering.Sequencer
}

// Ref identifies the document a drawer movement belongs to.
type Ref struct {
	Type string
	ID   string
}

// direction maps transaction types to the sign applied to the cash chain.
var direction = map[TransactionType]bool{
	TransactionSaleCashIn:     true,
	TransactionRefundCashOut:  false,
	TransactionExpenseCashOut: false,
}

// PostCash appends a cash movement to the location's open session and rolls
// expected cash forward. Amount is always positive; the type carries the
// direction. Callable from any caller-owned transaction so checkout and
// returns commit drawer rows with the rest of their work.
func PostCash(ctx context.Context, tx TxStore, locationID int64, txType TransactionType, amount decimal.Decimal, ref Ref) (ledger.Entry, error) {
	if !amount.IsPositive() {
		return ledger.Entry{}, ErrInvalidAmount
	}
	session, err := tx.OpenSessionForUpdate(ctx, locationID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if session.Status != SessionOpen {
		return ledger.Entry{}, ErrSessionNotOpen
	}
	signed := amount
	if inbound, ok := direction[txType]; !ok {
		return ledger.Entry{}, fmt.Errorf("cashdrawer: unknown transaction type %q", txType)
	} else if !inbound {
		signed = amount.Neg()
	}
	entry, err := ledger.Next(session.ExpectedCash, string(txType), signed, ref.Type, ref.ID, time.Now().UTC())
	if err != nil {
		return ledger.Entry{}, err
	}
	if _, err := tx.InsertTransaction(ctx, session.ID, entry); err != nil {
		return ledger.Entry{}, fmt.Errorf("cashdrawer: insert transaction: %w", err)
	}
	if err := tx.UpdateExpectedCash(ctx, session.ID, entry.BalanceAfter); err != nil {
		return ledger.Entry{}, fmt.Errorf("cashdrawer: update expected cash: %w", err)
	}
	return entry, nil
}

// RecordSettlement notes a non-cash tender against the location's open
// session. The cash chain is untouched.
func RecordSettlement(ctx context.Context, tx TxStore, locationID int64, method string, amount decimal.Decimal, ref Ref) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	session, err := tx.OpenSessionForUpdate(ctx, locationID)
	if err != nil {
		return err
	}
	if session.Status != SessionOpen {
		return ErrSessionNotOpen
	}
	_, err = tx.InsertSettlement(ctx, Settlement{
		SessionID:  session.ID,
		Method:     method,
		Amount:     amount,
		RefType:    ref.Type,
		RefID:      ref.ID,
		OccurredAt: time.Now().UTC(),
	})
	return err
}
