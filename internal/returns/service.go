package returns

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/sales"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetReturn(ctx context.Context, returnID int64) (Return, error)
	ListBySale(ctx context.Context, saleID int64) ([]Return, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the returns engine.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// LineInput is one requested return line.
type LineInput struct {
	SaleItemID  int64
	Quantity    int64
	Condition   Condition
	Disposition Disposition
}

// CreateInput describes a return request against one sale.
type CreateInput struct {
	OrgID        int64
	SaleID       int64
	RefundMethod RefundMethod
	Reason       string
	Notes        string
	Lines        []LineInput
	ActorID      int64
}

// Create executes the whole return in one transaction: bound each line by
// what remains returnable, value the refund from the sold line's unit price
// and tax, settle through the drawer or the customer's credit ledger, apply
// dispositions and restate the sale status.
//
// The refund values quantity at the line's unit price plus tax; a line-level
// discount is not prorated back out.
func (s *Service) Create(ctx context.Context, input CreateInput) (Return, error) {
	if len(input.Lines) == 0 {
		return Return{}, ErrEmptyReturn
	}
	if input.RefundMethod != RefundCash && input.RefundMethod != RefundCredit {
		return Return{}, ErrInvalidRefundMethod
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Return{}, fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
		switch line.Disposition {
		case DispositionRestock, DispositionDispose, DispositionQuarantine:
		default:
			return Return{}, ErrInvalidDisposition
		}
		switch line.Condition {
		case ConditionGood, ConditionDamaged, ConditionExpired:
		default:
			return Return{}, ErrInvalidCondition
		}
	}

	var returnID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		sale, err := tx.Sales().SaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		if input.RefundMethod == RefundCredit && sale.CustomerID == 0 {
			return ErrCustomerRequired
		}
		items, err := tx.Sales().ItemsBySale(ctx, input.SaleID)
		if err != nil {
			return err
		}
		byID := make(map[int64]sales.Item, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeyReturn, "RET")
		if err != nil {
			return err
		}
		number := numbering.Format(alloc)

		refundTotal := decimal.Zero
		returned := make(map[int64]int64, len(items)) // sale item -> total returned after this document
		lines := make([]Line, 0, len(input.Lines))
		for _, line := range input.Lines {
			item, ok := byID[line.SaleItemID]
			if !ok {
				return fmt.Errorf("%w: item %d not on sale", shared.ErrValidation, line.SaleItemID)
			}
			already, err := tx.ReturnedQty(ctx, line.SaleItemID)
			if err != nil {
				return err
			}
			if already+line.Quantity > item.Quantity {
				return ErrExceedsSold
			}
			returned[line.SaleItemID] = already + line.Quantity

			priced, err := sales.PriceLine(item.ProductID, line.Quantity, item.UnitPrice, decimal.Zero, item.TaxRate)
			if err != nil {
				return err
			}
			refundTotal = refundTotal.Add(priced.LineTotal)
			lines = append(lines, Line{
				SaleItemID:  line.SaleItemID,
				ProductID:   item.ProductID,
				Quantity:    line.Quantity,
				Condition:   line.Condition,
				Disposition: line.Disposition,
				Amount:      priced.LineTotal,
			})
		}

		returnID, err = tx.InsertReturn(ctx, Return{
			OrgID:        input.OrgID,
			Number:       number,
			SaleID:       input.SaleID,
			RefundMethod: input.RefundMethod,
			RefundTotal:  refundTotal,
			Reason:       input.Reason,
			Notes:        input.Notes,
			ActorID:      input.ActorID,
		})
		if err != nil {
			return err
		}
		for _, line := range lines {
			line.ReturnID = returnID
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
			if line.Disposition == DispositionRestock {
				if err := inventory.Add(ctx, tx.Inventory(), line.ProductID, sale.LocationID, nil, line.Quantity, inventory.Ref{
					Type: "RETURN", ID: number, ActorID: input.ActorID,
				}); err != nil {
					return err
				}
			}
		}

		switch input.RefundMethod {
		case RefundCash:
			// Without an open session the return still completes; it just
			// leaves no drawer row.
			if _, err := cashdrawer.PostCash(ctx, tx.Drawer(), sale.LocationID, cashdrawer.TransactionRefundCashOut, refundTotal, cashdrawer.Ref{Type: "RETURN", ID: number}); err != nil && !errors.Is(err, cashdrawer.ErrNoOpenSession) {
				return err
			}
		case RefundCredit:
			if _, err := credit.ApplyAdjustment(ctx, tx.Credit(), sale.CustomerID, refundTotal.Neg(), credit.Ref{Type: "RETURN", ID: number}); err != nil {
				return err
			}
		}

		for _, item := range items {
			if _, ok := returned[item.ID]; !ok {
				already, err := tx.ReturnedQty(ctx, item.ID)
				if err != nil {
					return err
				}
				returned[item.ID] = already
			}
		}
		return tx.Sales().UpdateStatus(ctx, sale.ID, saleStatusAfter(items, returned))
	})
	if err != nil {
		return Return{}, err
	}
	s.recordAudit(ctx, returnID, input)
	return s.repo.GetReturn(ctx, returnID)
}

// saleStatusAfter restates the sale: RETURNED once every sold unit has come
// back, PARTIALLY_RETURNED otherwise.
func saleStatusAfter(items []sales.Item, returned map[int64]int64) sales.Status {
	for _, item := range items {
		if returned[item.ID] < item.Quantity {
			return sales.StatusPartiallyReturned
		}
	}
	return sales.StatusReturned
}

// GetReturn loads one return with lines.
func (s *Service) GetReturn(ctx context.Context, returnID int64) (Return, error) {
	return s.repo.GetReturn(ctx, returnID)
}

// ListBySale lists a sale's returns oldest first.
func (s *Service) ListBySale(ctx context.Context, saleID int64) ([]Return, error) {
	return s.repo.ListBySale(ctx, saleID)
}

func (s *Service) recordAudit(ctx context.Context, returnID int64, input CreateInput) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    input.OrgID,
		ActorID:  input.ActorID,
		Action:   "sale:return",
		Entity:   "return",
		EntityID: fmt.Sprintf("%d", returnID),
		Meta: map[string]any{
			"sale_id":       input.SaleID,
			"refund_method": string(input.RefundMethod),
			"reason":        input.Reason,
		},
	})
}
