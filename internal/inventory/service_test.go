package inventory

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	batches   map[string]*StockLevel
	movements []Movement
}

func newMemoryStore() *memoryStore {
	return &memoryStore{batches: make(map[string]*StockLevel)}
}

func batchKey(productID, locationID int64, expiration *time.Time) string {
	exp := "none"
	if expiration != nil {
		exp = expiration.Format("2006-01-02")
	}
	return fmt.Sprintf("%d:%d:%s", productID, locationID, exp)
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) BatchesForUpdate(_ context.Context, productID, locationID int64) ([]StockLevel, error) {
	var batches []StockLevel
	for _, b := range m.batches {
		if b.ProductID == productID && b.LocationID == locationID {
			batches = append(batches, *b)
		}
	}
	sort.Slice(batches, func(i, j int) bool {
		bi, bj := batches[i].Expiration, batches[j].Expiration
		if bi == nil {
			return false
		}
		if bj == nil {
			return true
		}
		return bi.Before(*bj)
	})
	return batches, nil
}

func (m *memoryStore) AddQuantity(_ context.Context, productID, locationID int64, expiration *time.Time, quantity int64) error {
	key := batchKey(productID, locationID, expiration)
	if b, ok := m.batches[key]; ok {
		b.Quantity += quantity
		return nil
	}
	m.batches[key] = &StockLevel{ProductID: productID, LocationID: locationID, Expiration: expiration, Quantity: quantity}
	return nil
}

func (m *memoryStore) TakeQuantity(_ context.Context, productID, locationID int64, expiration *time.Time, quantity int64) (bool, error) {
	b, ok := m.batches[batchKey(productID, locationID, expiration)]
	if !ok || b.Quantity < quantity {
		return false, nil
	}
	b.Quantity -= quantity
	return true, nil
}

func (m *memoryStore) InsertMovement(_ context.Context, movement Movement) error {
	m.movements = append(m.movements, movement)
	return nil
}

func (m *memoryStore) Available(_ context.Context, productID, locationID int64) (int64, error) {
	var total int64
	for _, b := range m.batches {
		if b.ProductID == productID && b.LocationID == locationID {
			total += b.Quantity
		}
	}
	return total, nil
}

func (m *memoryStore) Levels(ctx context.Context, productID, locationID int64) ([]StockLevel, error) {
	return m.BatchesForUpdate(ctx, productID, locationID)
}

func (m *memoryStore) LowStock(context.Context, int64, int64) ([]LowStockRow, error) {
	return nil, nil
}

func (m *memoryStore) ExpiringSoon(context.Context, int64, int64, time.Time) ([]ExpiringRow, error) {
	return nil, nil
}

func (m *memoryStore) Movements(context.Context, MovementFilter) ([]Movement, error) {
	return m.movements, nil
}

func mustDate(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return &parsed
}

func TestIncrementUpsertsExactBatch(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()
	exp := mustDate(t, "2026-09-15")

	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: exp, Quantity: 10, Reason: "receipt"}))
	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: exp, Quantity: 5, Reason: "receipt"}))

	levels, err := svc.GetLevels(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	require.Equal(t, int64(15), levels[0].Quantity)
}

func TestDecrementFEFOSpansBatches(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: mustDate(t, "2026-09-01"), Quantity: 5, Reason: "r"}))
	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: mustDate(t, "2026-10-01"), Quantity: 8, Reason: "r"}))
	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 20, Reason: "r"}))

	plan, err := svc.DecrementFEFO(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 12, Reason: "issue"})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, int64(5), plan[0].Quantity)
	require.Equal(t, int64(7), plan[1].Quantity)

	available, err := svc.GetAvailable(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(21), available)
}

func TestDecrementFEFOInsufficientLeavesBatchesUntouched(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: mustDate(t, "2026-09-01"), Quantity: 5, Reason: "r"}))
	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 2, Reason: "r"}))

	_, err := svc.DecrementFEFO(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 10, Reason: "issue"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	available, err := svc.GetAvailable(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), available)
}

func TestDecrementExactConflicts(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()
	exp := mustDate(t, "2026-09-01")

	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: exp, Quantity: 5, Reason: "r"}))

	err := svc.DecrementExact(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: exp, Quantity: 8, Reason: "void"})
	require.ErrorIs(t, err, ErrBatchConflict)

	require.NoError(t, svc.DecrementExact(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Expiration: exp, Quantity: 5, Reason: "void"}))
	available, err := svc.GetAvailable(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), available)
}

func TestMovementTrailRecordsDirection(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Increment(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 4, Reason: "r"}))
	_, err := svc.DecrementFEFO(ctx, AdjustmentInput{ProductID: 1, LocationID: 1, Quantity: 3, Reason: "issue"})
	require.NoError(t, err)

	require.Len(t, store.movements, 2)
	require.Equal(t, MovementIn, store.movements[0].Type)
	require.Equal(t, MovementOut, store.movements[1].Type)
	require.Equal(t, int64(3), store.movements[1].Quantity)
}
