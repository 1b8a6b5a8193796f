// Package procurement owns purchase orders, goods receiving and receiving
// voids. Receiving is the only inbound stock path besides manual adjustment;
// a void reverses exactly the batches its receiving created.
package procurement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// OrderStatus lifecycle for a purchase order. PARTIAL and RECEIVED are
// recomputed from item quantities after every receiving and void.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "DRAFT"
	OrderSent      OrderStatus = "SENT"
	OrderPartial   OrderStatus = "PARTIAL"
	OrderReceived  OrderStatus = "RECEIVED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is a purchase order against one supplier for one location.
type Order struct {
	ID         int64           `json:"id"`
	OrgID      int64           `json:"org_id"`
	Number     string          `json:"number"`
	SupplierID int64           `json:"supplier_id"`
	LocationID int64           `json:"location_id"`
	Status     OrderStatus     `json:"status"`
	Total      decimal.Decimal `json:"total"`
	Items      []OrderItem     `json:"items,omitempty"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OrderItem is one line on a purchase order. ReceivedQty accumulates across
// receivings and shrinks on voids, never past OrderedQty in either direction.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	OrderedQty  int64           `json:"ordered_qty"`
	ReceivedQty int64           `json:"received_qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// Receiving is an immutable record of one goods receipt against an order.
// Voiding marks it and reverses its batches; the record itself never changes
// quantities.
type Receiving struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"order_id"`
	Number     string          `json:"number"`
	Voided     bool            `json:"voided"`
	VoidReason string          `json:"void_reason,omitempty"`
	ReceivedBy int64           `json:"received_by"`
	ReceivedAt time.Time       `json:"received_at"`
	VoidedAt   *time.Time      `json:"voided_at,omitempty"`
	Lines      []ReceivingLine `json:"lines,omitempty"`
}

// ReceivingLine records the exact batch one receipt line landed in, so a void
// can target that batch and nothing else.
type ReceivingLine struct {
	ID          int64      `json:"id"`
	ReceivingID int64      `json:"receiving_id"`
	OrderItemID int64      `json:"order_item_id"`
	ProductID   int64      `json:"product_id"`
	Quantity    int64      `json:"quantity"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}

var (
	// ErrOrderNotFound indicates the purchase order does not exist.
	ErrOrderNotFound = fmt.Errorf("procurement: order %w", shared.ErrNotFound)
	// ErrReceivingNotFound indicates the receiving record does not exist.
	ErrReceivingNotFound = fmt.Errorf("procurement: receiving %w", shared.ErrNotFound)
	// ErrOrderNotReceivable rejects receiving against DRAFT or CANCELLED orders.
	ErrOrderNotReceivable = errors.New("procurement: order is not receivable")
	// ErrOverReceipt rejects a receipt line that would push an item past its
	// ordered quantity.
	ErrOverReceipt = errors.New("procurement: received quantity exceeds ordered")
	// ErrAlreadyVoided rejects voiding a receiving twice.
	ErrAlreadyVoided = errors.New("procurement: receiving already voided")
	// ErrVoidConflict indicates a received batch was already partly consumed,
	// so the void cannot restore the prior state.
	ErrVoidConflict = errors.New("procurement: received stock already consumed")
	// ErrEmptyOrder rejects orders or receipts without lines.
	ErrEmptyOrder = errors.New("procurement: at least one line required")
)

// statusFromItems recomputes PARTIAL/RECEIVED/SENT from item progress.
func statusFromItems(items []OrderItem) OrderStatus {
	var received, any bool
	received = true
	for _, item := range items {
		if item.ReceivedQty > 0 {
			any = true
		}
		if item.ReceivedQty < item.OrderedQty {
			received = false
		}
	}
	switch {
	case received:
		return OrderReceived
	case any:
		return OrderPartial
	default:
		return OrderSent
	}
}
