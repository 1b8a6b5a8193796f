package inventory

import (
	"errors"
	"time"
)

// StockLevel is one expiration batch of a product at a location. Multiple
// batches of the same product coexist as separate rows keyed by expiration;
// a nil expiration means the batch does not expire. Rows are never deleted;
// zero-quantity batches persist for audit continuity.
type StockLevel struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"product_id"`
	LocationID int64      `json:"location_id"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Quantity   int64      `json:"quantity"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BatchConsumption records how much a movement took from one batch. The set
// returned by a FEFO decrement is the exact unit replayed by reversal logic.
type BatchConsumption struct {
	Expiration *time.Time `json:"expiration,omitempty"`
	Quantity   int64      `json:"quantity"`
}

// MovementType enumerates stock movement directions.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "IN"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "OUT"
)

// Movement is an immutable audit row written for every quantity change.
type Movement struct {
	ID         int64        `json:"id"`
	Type       MovementType `json:"type"`
	ProductID  int64        `json:"product_id"`
	LocationID int64        `json:"location_id"`
	Expiration *time.Time   `json:"expiration,omitempty"`
	Quantity   int64        `json:"quantity"` // always positive, direction in Type
	RefType    string       `json:"ref_type"`
	RefID      string       `json:"ref_id"`
	ActorID    int64        `json:"actor_id"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// LowStockRow reports a product at or below its reorder point.
type LowStockRow struct {
	ProductID    int64  `json:"product_id"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	OnHand       int64  `json:"on_hand"`
	ReorderPoint int64  `json:"reorder_point"`
	ReorderQty   int64  `json:"reorder_qty"`
}

// ExpiringRow reports a batch expiring within a product's alert window.
type ExpiringRow struct {
	ProductID  int64     `json:"product_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Expiration time.Time `json:"expiration"`
	Quantity   int64     `json:"quantity"`
	DaysLeft   int       `json:"days_left"`
}

// MovementFilter filters the movement audit trail.
type MovementFilter struct {
	ProductID  int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

var (
	// ErrInvalidQuantity rejects zero or negative quantity arguments.
	ErrInvalidQuantity = errors.New("inventory: quantity must be a positive integer")
	// ErrInsufficientStock indicates the requested decrement exceeds the
	// total available across batches. Nothing is mutated.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrBatchConflict indicates a targeted batch no longer holds the
	// quantity a reversal would subtract.
	ErrBatchConflict = errors.New("inventory: batch quantity conflict")
)
