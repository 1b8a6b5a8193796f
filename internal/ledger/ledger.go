// Package ledger provides running-balance primitives shared by the cash
// drawer and customer credit ledgers: apply a signed delta to a balance and
// produce an append-only entry capturing the balance before and after.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is one append-only ledger row. Entries are never mutated; reversals
// are new compensating entries.
type Entry struct {
	Type          string
	Amount        decimal.Decimal // signed delta
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	RefType       string
	RefID         string
	OccurredAt    time.Time
}

// ErrChainBroken indicates balance chaining does not hold for a sequence
// of entries.
var ErrChainBroken = errors.New("ledger: balance chain broken")

// ErrZeroAmount rejects postings that would not move the balance.
var ErrZeroAmount = errors.New("ledger: amount must be non-zero")

// Next builds the entry that applies a signed amount on top of the current
// balance. The caller persists the entry and the new balance in the same
// transaction.
func Next(balance decimal.Decimal, entryType string, amount decimal.Decimal, refType, refID string, at time.Time) (Entry, error) {
	if amount.IsZero() {
		return Entry{}, ErrZeroAmount
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Entry{
		Type:          entryType,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance.Add(amount),
		RefType:       refType,
		RefID:         refID,
		OccurredAt:    at,
	}, nil
}

// VerifyChain checks that entries ordered by creation chain correctly from
// the opening balance: balanceAfter[i] = balanceAfter[i-1] + amount[i].
func VerifyChain(opening decimal.Decimal, entries []Entry) error {
	running := opening
	for i, e := range entries {
		if !e.BalanceBefore.Equal(running) {
			return fmt.Errorf("%w: entry %d balance_before %s, want %s", ErrChainBroken, i, e.BalanceBefore, running)
		}
		running = running.Add(e.Amount)
		if !e.BalanceAfter.Equal(running) {
			return fmt.Errorf("%w: entry %d balance_after %s, want %s", ErrChainBroken, i, e.BalanceAfter, running)
		}
	}
	return nil
}
