// Package returns owns post-sale returns: quantity validation against what
// was sold, per-line disposition of the goods, refund settlement through the
// drawer or the credit ledger, and sale status restatement.
package returns

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// Disposition says where returned goods go. Only RETURN_TO_STOCK touches
// inventory; expiry provenance is lost at the counter, so restocked goods
// land in the non-expiring batch.
type Disposition string

const (
	DispositionRestock    Disposition = "RETURN_TO_STOCK"
	DispositionDispose    Disposition = "DISPOSE"
	DispositionQuarantine Disposition = "QUARANTINE"
)

// Condition records the state of the goods at the counter. It is kept for
// reporting alongside the disposition; the disposition alone decides what
// happens to stock.
type Condition string

const (
	ConditionGood    Condition = "GOOD"
	ConditionDamaged Condition = "DAMAGED"
	ConditionExpired Condition = "EXPIRED"
)

// RefundMethod enumerates how the refund is settled.
type RefundMethod string

const (
	RefundCash   RefundMethod = "CASH"
	RefundCredit RefundMethod = "CREDIT"
)

// Return is one immutable return document against a sale.
type Return struct {
	ID           int64           `json:"id"`
	OrgID        int64           `json:"org_id"`
	Number       string          `json:"number"`
	SaleID       int64           `json:"sale_id"`
	RefundMethod RefundMethod    `json:"refund_method"`
	RefundTotal  decimal.Decimal `json:"refund_total"`
	Reason       string          `json:"reason"`
	Notes        string          `json:"notes,omitempty"`
	ActorID      int64           `json:"actor_id"`
	Lines        []Line          `json:"lines,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Line is one returned quantity of one sold line.
type Line struct {
	ID          int64           `json:"id"`
	ReturnID    int64           `json:"return_id"`
	SaleItemID  int64           `json:"sale_item_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int64           `json:"quantity"`
	Condition   Condition       `json:"condition"`
	Disposition Disposition     `json:"disposition"`
	Amount      decimal.Decimal `json:"amount"`
}

var (
	// ErrReturnNotFound indicates the return does not exist.
	ErrReturnNotFound = fmt.Errorf("returns: return %w", shared.ErrNotFound)
	// ErrExceedsSold rejects a return of more than was sold minus what has
	// already been returned.
	ErrExceedsSold = errors.New("returns: quantity exceeds remaining sold quantity")
	// ErrInvalidDisposition rejects unknown dispositions.
	ErrInvalidDisposition = errors.New("returns: invalid disposition")
	// ErrInvalidCondition rejects unknown conditions.
	ErrInvalidCondition = errors.New("returns: invalid condition")
	// ErrInvalidRefundMethod rejects unknown refund methods.
	ErrInvalidRefundMethod = errors.New("returns: invalid refund method")
	// ErrCustomerRequired indicates a credit refund against a walk-in sale.
	ErrCustomerRequired = errors.New("returns: credit refund requires a customer sale")
	// ErrEmptyReturn rejects returns without lines.
	ErrEmptyReturn = errors.New("returns: at least one line required")
)
