package procurement

import (
	"context"
	"time"

	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
)

// TxStore exposes procurement operations available inside a transaction.
// Receiving and voiding mutate stock through the embedded inventory store so
// order progress, receiving records and batches commit together.
type TxStore interface {
	// OrderForUpdate locks an order header.
	OrderForUpdate(ctx context.Context, orderID int64) (Order, error)
	// ItemsForUpdate locks the order's items.
	ItemsForUpdate(ctx context.Context, orderID int64) ([]OrderItem, error)
	// AdjustItemReceived conditionally moves an item's received quantity by a
	// signed delta, refusing to leave the [0, ordered] range. Returns false
	// without mutating when the bound would be crossed.
	AdjustItemReceived(ctx context.Context, itemID, delta int64) (bool, error)
	// UpdateOrderStatus persists a recomputed order status.
	UpdateOrderStatus(ctx context.Context, orderID int64, status OrderStatus) error
	// InsertOrder persists an order header and returns its id.
	InsertOrder(ctx context.Context, order Order) (int64, error)
	// InsertItem persists one order line.
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	// InsertReceiving persists a receiving header.
	InsertReceiving(ctx context.Context, rec Receiving) (int64, error)
	// InsertReceivingLine persists one receipt line with its exact batch key.
	InsertReceivingLine(ctx context.Context, line ReceivingLine) (int64, error)
	// ReceivingForUpdate locks a receiving record with its lines.
	ReceivingForUpdate(ctx context.Context, receivingID int64) (Receiving, error)
	// MarkVoided conditionally flags a receiving as voided. Returns false
	// when it already was.
	MarkVoided(ctx context.Context, receivingID int64, reason string, at time.Time) (bool, error)
	// Inventory exposes batch operations bound to the same transaction.
	Inventory() inventory.TxStore
	// Sequences allocates document numbers inside this transaction.
	Sequences() numbering.Sequencer
}
