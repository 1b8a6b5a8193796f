package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetOrder(ctx context.Context, orderID int64) (Order, error)
	ListOrders(ctx context.Context, orgID int64, status OrderStatus, limit, offset int) ([]Order, error)
	GetReceiving(ctx context.Context, receivingID int64) (Receiving, error)
	Receivings(ctx context.Context, orderID int64) ([]Receiving, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates purchase orders and goods receiving.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// OrderLineInput is one requested line on a new purchase order.
type OrderLineInput struct {
	ProductID int64
	Quantity  int64
	UnitCost  decimal.Decimal
}

// CreateOrderInput describes a new purchase order.
type CreateOrderInput struct {
	OrgID      int64
	SupplierID int64
	LocationID int64
	Lines      []OrderLineInput
	ActorID    int64
}

// CreateOrder numbers and persists a DRAFT purchase order with its lines.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if len(input.Lines) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
		if line.UnitCost.IsNegative() {
			return Order{}, fmt.Errorf("%w: unit cost cannot be negative", shared.ErrValidation)
		}
	}
	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeyPurchaseOrder, "PO")
		if err != nil {
			return err
		}
		total := decimal.Zero
		for _, line := range input.Lines {
			total = total.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
		}
		orderID, err = tx.InsertOrder(ctx, Order{
			OrgID:      input.OrgID,
			Number:     numbering.Format(alloc),
			SupplierID: input.SupplierID,
			LocationID: input.LocationID,
			Status:     OrderDraft,
			Total:      total.Round(2),
			CreatedBy:  input.ActorID,
		})
		if err != nil {
			return err
		}
		for _, line := range input.Lines {
			if _, err := tx.InsertItem(ctx, OrderItem{
				OrderID:    orderID,
				ProductID:  line.ProductID,
				OrderedQty: line.Quantity,
				UnitCost:   line.UnitCost,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, "po:create", orderID, input.ActorID, nil)
	return s.repo.GetOrder(ctx, orderID)
}

// SendOrder moves a DRAFT order to SENT, opening it for receiving.
func (s *Service) SendOrder(ctx context.Context, orderID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderDraft {
			return fmt.Errorf("%w: only DRAFT orders can be sent", shared.ErrValidation)
		}
		return tx.UpdateOrderStatus(ctx, orderID, OrderSent)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "po:send", orderID, actorID, nil)
	return nil
}

// CancelOrder cancels an order that has received nothing yet.
func (s *Service) CancelOrder(ctx context.Context, orderID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.OrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != OrderDraft && order.Status != OrderSent {
			return fmt.Errorf("%w: only DRAFT or SENT orders can be cancelled", shared.ErrValidation)
		}
		items, err := tx.ItemsForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.ReceivedQty > 0 {
				return fmt.Errorf("%w: order has receipts", shared.ErrValidation)
			}
		}
		return tx.UpdateOrderStatus(ctx, orderID, OrderCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "po:cancel", orderID, actorID, nil)
	return nil
}

// ReceiveLineInput is one receipt line: a quantity landing in an exact batch.
type ReceiveLineInput struct {
	OrderItemID int64
	Quantity    int64
	Expiration  *time.Time
}

// ReceiveInput describes one goods receipt against an order.
type ReceiveInput struct {
	OrgID   int64
	OrderID int64
	Lines   []ReceiveLineInput
	ActorID int64
}

// Receive posts a goods receipt: per line it advances the order item within
// its ordered bound, adds stock to the exact batch and records the batch key
// on the receiving line so a later void can reverse precisely. The order
// status is recomputed afterwards. Everything commits in one transaction.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Receiving, error) {
	if len(input.Lines) == 0 {
		return Receiving{}, ErrEmptyOrder
	}
	var receivingID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		order, err := tx.OrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status != OrderSent && order.Status != OrderPartial {
			return ErrOrderNotReceivable
		}
		items, err := tx.ItemsForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		byID := make(map[int64]OrderItem, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeyReceiving, "RCV")
		if err != nil {
			return err
		}
		number := numbering.Format(alloc)
		receivingID, err = tx.InsertReceiving(ctx, Receiving{
			OrderID:    input.OrderID,
			Number:     number,
			ReceivedBy: input.ActorID,
			ReceivedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		for _, line := range input.Lines {
			if line.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
			}
			item, ok := byID[line.OrderItemID]
			if !ok {
				return fmt.Errorf("%w: item %d not on order", shared.ErrValidation, line.OrderItemID)
			}
			ok, err := tx.AdjustItemReceived(ctx, item.ID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ErrOverReceipt
			}
			if err := inventory.Add(ctx, tx.Inventory(), item.ProductID, order.LocationID, line.Expiration, line.Quantity, inventory.Ref{
				Type: "RECEIVING", ID: number, ActorID: input.ActorID,
			}); err != nil {
				return err
			}
			if _, err := tx.InsertReceivingLine(ctx, ReceivingLine{
				ReceivingID: receivingID,
				OrderItemID: item.ID,
				ProductID:   item.ProductID,
				Quantity:    line.Quantity,
				Expiration:  line.Expiration,
			}); err != nil {
				return err
			}
		}
		return s.refreshStatus(ctx, tx, input.OrderID)
	})
	if err != nil {
		return Receiving{}, err
	}
	s.recordAudit(ctx, "po:receive", input.OrderID, input.ActorID, map[string]any{"receiving_id": receivingID})
	return s.repo.GetReceiving(ctx, receivingID)
}

// VoidReceiving reverses one receipt exactly: each recorded batch is drained
// by the received quantity and the order items step back. If any batch was
// already partly consumed the whole void fails with ErrVoidConflict and
// nothing changes.
func (s *Service) VoidReceiving(ctx context.Context, receivingID int64, reason string, actorID int64) error {
	if reason == "" {
		return fmt.Errorf("%w: reason required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		rec, err := tx.ReceivingForUpdate(ctx, receivingID)
		if err != nil {
			return err
		}
		if rec.Voided {
			return ErrAlreadyVoided
		}
		order, err := tx.OrderForUpdate(ctx, rec.OrderID)
		if err != nil {
			return err
		}
		for _, line := range rec.Lines {
			err := inventory.RemoveExact(ctx, tx.Inventory(), line.ProductID, order.LocationID, line.Expiration, line.Quantity, inventory.Ref{
				Type: "RECEIVING_VOID", ID: rec.Number, ActorID: actorID,
			})
			if errors.Is(err, inventory.ErrBatchConflict) {
				return ErrVoidConflict
			}
			if err != nil {
				return err
			}
			ok, err := tx.AdjustItemReceived(ctx, line.OrderItemID, -line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return ErrVoidConflict
			}
		}
		ok, err := tx.MarkVoided(ctx, receivingID, reason, time.Now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyVoided
		}
		return s.refreshStatus(ctx, tx, rec.OrderID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "po:void_receiving", receivingID, actorID, map[string]any{"reason": reason})
	return nil
}

func (s *Service) refreshStatus(ctx context.Context, tx TxStore, orderID int64) error {
	items, err := tx.ItemsForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	return tx.UpdateOrderStatus(ctx, orderID, statusFromItems(items))
}

// GetOrder loads one order with items.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// ListOrders pages an org's orders, optionally by status.
func (s *Service) ListOrders(ctx context.Context, orgID int64, status OrderStatus, limit, offset int) ([]Order, error) {
	return s.repo.ListOrders(ctx, orgID, status, limit, offset)
}

// GetReceiving loads one receiving with lines.
func (s *Service) GetReceiving(ctx context.Context, receivingID int64) (Receiving, error) {
	return s.repo.GetReceiving(ctx, receivingID)
}

// ListReceivings lists an order's receipts.
func (s *Service) ListReceivings(ctx context.Context, orderID int64) ([]Receiving, error) {
	return s.repo.Receivings(ctx, orderID)
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    shared.OrgFromContext(ctx).ID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
