package inventory

import (
	"context"
	"fmt"
	"time"
)

// TxStore exposes the batch operations available inside a transaction.
// StockLevel rows are mutated only through these operations; quantity
// changes are single conditional UPDATE statements, never read-then-write.
type TxStore interface {
	// BatchesForUpdate locks and returns all batches for a product at a
	// location, ordered by expiration ascending with non-expiring last.
	BatchesForUpdate(ctx context.Context, productID, locationID int64) ([]StockLevel, error)
	// AddQuantity upserts quantity onto the batch keyed by the exact
	// (product, location, expiration) triple. A single statement, so the
	// key can never gain a second row.
	AddQuantity(ctx context.Context, productID, locationID int64, expiration *time.Time, quantity int64) error
	// TakeQuantity conditionally subtracts from one batch. Returns false
	// without mutating when the batch holds less than requested.
	TakeQuantity(ctx context.Context, productID, locationID int64, expiration *time.Time, quantity int64) (bool, error)
	// InsertMovement appends an immutable movement audit row.
	InsertMovement(ctx context.Context, m Movement) error
}

// Ref identifies the document a stock change belongs to.
type Ref struct {
	Type    string
	ID      string
	ActorID int64
}

// Add increments the batch for the exact (product, location, expiration) key,
// creating it on first receipt, and records the inbound movement. Usable from
// any caller-owned transaction.
func Add(ctx context.Context, tx TxStore, productID, locationID int64, expiration *time.Time, quantity int64, ref Ref) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := tx.AddQuantity(ctx, productID, locationID, expiration, quantity); err != nil {
		return fmt.Errorf("inventory: add quantity: %w", err)
	}
	return tx.InsertMovement(ctx, Movement{
		Type:       MovementIn,
		ProductID:  productID,
		LocationID: locationID,
		Expiration: expiration,
		Quantity:   quantity,
		RefType:    ref.Type,
		RefID:      ref.ID,
		ActorID:    ref.ActorID,
		OccurredAt: time.Now().UTC(),
	})
}

// RemoveFEFO decrements stock first-expired-first-out and returns the exact
// per-batch consumption set applied. When total stock is short nothing is
// mutated and ErrInsufficientStock is returned.
func RemoveFEFO(ctx context.Context, tx TxStore, productID, locationID, quantity int64, ref Ref) ([]BatchConsumption, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	batches, err := tx.BatchesForUpdate(ctx, productID, locationID)
	if err != nil {
		return nil, fmt.Errorf("inventory: lock batches: %w", err)
	}
	plan, err := PlanFEFO(batches, quantity)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for _, take := range plan {
		ok, err := tx.TakeQuantity(ctx, productID, locationID, take.Expiration, take.Quantity)
		if err != nil {
			return nil, fmt.Errorf("inventory: take quantity: %w", err)
		}
		if !ok {
			// Batches are locked, so a short batch here means the plan
			// and the rows diverged. Abort the transaction.
			return nil, ErrBatchConflict
		}
		if err := tx.InsertMovement(ctx, Movement{
			Type:       MovementOut,
			ProductID:  productID,
			LocationID: locationID,
			Expiration: take.Expiration,
			Quantity:   take.Quantity,
			RefType:    ref.Type,
			RefID:      ref.ID,
			ActorID:    ref.ActorID,
			OccurredAt: now,
		}); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// RemoveExact decrements one specific batch, used by reversal paths that must
// restore a prior state. Fails with ErrBatchConflict when the batch has since
// been consumed below the requested quantity; it never borrows from other
// batches.
func RemoveExact(ctx context.Context, tx TxStore, productID, locationID int64, expiration *time.Time, quantity int64, ref Ref) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	ok, err := tx.TakeQuantity(ctx, productID, locationID, expiration, quantity)
	if err != nil {
		return fmt.Errorf("inventory: take quantity: %w", err)
	}
	if !ok {
		return ErrBatchConflict
	}
	return tx.InsertMovement(ctx, Movement{
		Type:       MovementOut,
		ProductID:  productID,
		LocationID: locationID,
		Expiration: expiration,
		Quantity:   quantity,
		RefType:    ref.Type,
		RefID:      ref.ID,
		ActorID:    ref.ActorID,
		OccurredAt: time.Now().UTC(),
	})
}
