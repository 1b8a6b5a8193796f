package sales

import (
	"context"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
)

// TxStore exposes sale persistence plus the sibling stores bound to the same
// transaction. Checkout touches stock, the drawer and the credit ledger
// through these accessors so the whole sale commits or rolls back as one.
type TxStore interface {
	// InsertSale persists the sale header and returns its id.
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	// InsertItem persists one sold line.
	InsertItem(ctx context.Context, item Item) (int64, error)
	// SetInvoice links the credit invoice created for this sale.
	SetInvoice(ctx context.Context, saleID, invoiceID int64) error
	// SaleForUpdate locks a sale header; the returns engine uses it to bound
	// refunds.
	SaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	// ItemsBySale lists the sold lines.
	ItemsBySale(ctx context.Context, saleID int64) ([]Item, error)
	// UpdateStatus persists a recomputed sale status.
	UpdateStatus(ctx context.Context, saleID int64, status Status) error

	// Inventory exposes batch operations bound to the same transaction.
	Inventory() inventory.TxStore
	// Credit exposes credit ledger operations bound to the same transaction.
	Credit() credit.TxStore
	// Drawer exposes drawer operations bound to the same transaction.
	Drawer() cashdrawer.TxStore
	// Sequences allocates document numbers inside this transaction.
	Sequences() numbering.Sequencer
}
