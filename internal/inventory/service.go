package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Available(ctx context.Context, productID, locationID int64) (int64, error)
	Levels(ctx context.Context, productID, locationID int64) ([]StockLevel, error)
	LowStock(ctx context.Context, orgID, locationID int64) ([]LowStockRow, error)
	ExpiringSoon(ctx context.Context, orgID, locationID int64, asOf time.Time) ([]ExpiringRow, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone inventory operations. Checkout, receiving
// and returns drive the same Add/RemoveFEFO/RemoveExact operations inside
// their own transactions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AdjustmentInput describes a manual stock adjustment.
type AdjustmentInput struct {
	ProductID  int64
	LocationID int64
	Expiration *time.Time
	Quantity   int64
	Reason     string
	ActorID    int64
}

// Increment adds stock to the exact (product, location, expiration) batch.
func (s *Service) Increment(ctx context.Context, input AdjustmentInput) error {
	if input.ProductID == 0 || input.LocationID == 0 {
		return fmt.Errorf("%w: product and location required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return Add(ctx, tx, input.ProductID, input.LocationID, input.Expiration, input.Quantity, Ref{
			Type: "ADJUSTMENT", ID: input.Reason, ActorID: input.ActorID,
		})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "stock:increment", input)
	return nil
}

// DecrementFEFO removes stock first-expired-first-out and returns the
// per-batch consumption set.
func (s *Service) DecrementFEFO(ctx context.Context, input AdjustmentInput) ([]BatchConsumption, error) {
	if input.ProductID == 0 || input.LocationID == 0 {
		return nil, fmt.Errorf("%w: product and location required", shared.ErrValidation)
	}
	var plan []BatchConsumption
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		plan, err = RemoveFEFO(ctx, tx, input.ProductID, input.LocationID, input.Quantity, Ref{
			Type: "ADJUSTMENT", ID: input.Reason, ActorID: input.ActorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, "stock:decrement", input)
	return plan, nil
}

// DecrementExact removes stock from one specific batch.
func (s *Service) DecrementExact(ctx context.Context, input AdjustmentInput) error {
	if input.ProductID == 0 || input.LocationID == 0 {
		return fmt.Errorf("%w: product and location required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		return RemoveExact(ctx, tx, input.ProductID, input.LocationID, input.Expiration, input.Quantity, Ref{
			Type: "ADJUSTMENT", ID: input.Reason, ActorID: input.ActorID,
		})
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "stock:decrement_exact", input)
	return nil
}

// GetAvailable sums all batches for a product at a location.
func (s *Service) GetAvailable(ctx context.Context, productID, locationID int64) (int64, error) {
	return s.repo.Available(ctx, productID, locationID)
}

// GetLevels lists batch rows in FEFO order.
func (s *Service) GetLevels(ctx context.Context, productID, locationID int64) ([]StockLevel, error) {
	return s.repo.Levels(ctx, productID, locationID)
}

// LowStock reports products at or below reorder point.
func (s *Service) LowStock(ctx context.Context, orgID, locationID int64) ([]LowStockRow, error) {
	return s.repo.LowStock(ctx, orgID, locationID)
}

// ExpiringSoon reports batches inside their product's alert window.
func (s *Service) ExpiringSoon(ctx context.Context, orgID, locationID int64) ([]ExpiringRow, error) {
	return s.repo.ExpiringSoon(ctx, orgID, locationID, time.Now().UTC())
}

// GetMovements lists the movement audit trail.
func (s *Service) GetMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.ProductID == 0 || filter.LocationID == 0 {
		return nil, fmt.Errorf("%w: product and location required", shared.ErrValidation)
	}
	return s.repo.Movements(ctx, filter)
}

func (s *Service) recordAudit(ctx context.Context, action string, input AdjustmentInput) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    shared.OrgFromContext(ctx).ID,
		ActorID:  input.ActorID,
		Action:   action,
		Entity:   "stock_level",
		EntityID: fmt.Sprintf("%d:%d", input.ProductID, input.LocationID),
		Meta: map[string]any{
			"product_id":  input.ProductID,
			"location_id": input.LocationID,
			"quantity":    input.Quantity,
			"reason":      input.Reason,
		},
	})
}
