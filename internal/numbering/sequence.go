// Package numbering allocates organisation-scoped sequential document
// numbers. Allocation is a single atomic UPDATE ... RETURNING against a
// per-organisation counter row, executed inside the transaction that creates
// the numbered document, so concurrent creations can never share a number.
package numbering

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Sequence keys. One counter row exists per (org, key).
const (
	KeySale          = "sale"
	KeyInvoice       = "invoice"
	KeyExpense       = "expense"
	KeyPurchaseOrder = "purchase_order"
	KeyReceiving     = "receiving"
	KeyReturn        = "return"
)

// Allocation is one reserved sequence value together with the org-scoped
// prefix recorded on the counter row.
type Allocation struct {
	Value  int64
	Prefix string
}

// Sequencer reserves the next sequence value for an (org, key) pair.
type Sequencer interface {
	Next(ctx context.Context, orgID int64, key, defaultPrefix string) (Allocation, error)
}

// TxSequencer allocates numbers within an existing transaction.
type TxSequencer struct {
	tx pgx.Tx
}

// NewTxSequencer wraps a transaction.
func NewTxSequencer(tx pgx.Tx) *TxSequencer {
	return &TxSequencer{tx: tx}
}

// Next reserves the next value. The counter row is created on first use with
// defaultPrefix; later calls keep whatever prefix the organisation configured.
func (s *TxSequencer) Next(ctx context.Context, orgID int64, key, defaultPrefix string) (Allocation, error) {
	var alloc Allocation
	err := s.tx.QueryRow(ctx, `INSERT INTO org_sequences (org_id, key, prefix, next_value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (org_id, key) DO UPDATE SET next_value = org_sequences.next_value + 1
RETURNING next_value, prefix`, orgID, key, defaultPrefix).Scan(&alloc.Value, &alloc.Prefix)
	if err != nil {
		return Allocation{}, fmt.Errorf("numbering: next %s for org %d: %w", key, orgID, err)
	}
	return alloc, nil
}

// Format renders an allocation as {prefix}-{zero-padded value}.
func Format(alloc Allocation) string {
	return fmt.Sprintf("%s-%06d", alloc.Prefix, alloc.Value)
}

// ExpensePrefix builds the expense counter prefix EXP-{ORG3LETTER}.
func ExpensePrefix(orgCode string) string {
	code := strings.ToUpper(orgCode)
	if len(code) > 3 {
		code = code[:3]
	}
	return "EXP-" + code
}
