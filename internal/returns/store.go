package returns

import (
	"context"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/sales"
)

// TxStore exposes return persistence plus the sibling stores bound to the
// same transaction, so refund, restock and sale restatement commit together.
type TxStore interface {
	// InsertReturn persists the return header and returns its id.
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	// InsertLine persists one returned line.
	InsertLine(ctx context.Context, line Line) (int64, error)
	// ReturnedQty sums previously returned quantity for a sold line.
	ReturnedQty(ctx context.Context, saleItemID int64) (int64, error)

	// Sales exposes sale rows bound to the same transaction.
	Sales() sales.TxStore
	// Inventory exposes batch operations bound to the same transaction.
	Inventory() inventory.TxStore
	// Drawer exposes drawer operations bound to the same transaction.
	Drawer() cashdrawer.TxStore
	// Credit exposes credit ledger operations bound to the same transaction.
	Credit() credit.TxStore
	// Sequences allocates document numbers inside this transaction.
	Sequences() numbering.Sequencer
}
