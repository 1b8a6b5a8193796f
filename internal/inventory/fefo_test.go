package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return &parsed
}

func TestPlanFEFOConsumesEarliestFirst(t *testing.T) {
	batches := []StockLevel{
		{Expiration: datePtr(t, "2026-09-01"), Quantity: 5},
		{Expiration: datePtr(t, "2026-10-01"), Quantity: 8},
		{Expiration: nil, Quantity: 20},
	}

	plan, err := PlanFEFO(batches, 3)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, int64(3), plan[0].Quantity)
	require.Equal(t, batches[0].Expiration, plan[0].Expiration)
}

func TestPlanFEFOSpillsIntoNextBatch(t *testing.T) {
	batches := []StockLevel{
		{Expiration: datePtr(t, "2026-09-01"), Quantity: 5},
		{Expiration: datePtr(t, "2026-10-01"), Quantity: 8},
		{Expiration: nil, Quantity: 20},
	}

	plan, err := PlanFEFO(batches, 12)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Equal(t, int64(5), plan[0].Quantity)
	require.Equal(t, int64(7), plan[1].Quantity)
	require.Equal(t, batches[1].Expiration, plan[1].Expiration)
}

func TestPlanFEFOReachesUndatedBatchLast(t *testing.T) {
	batches := []StockLevel{
		{Expiration: datePtr(t, "2026-09-01"), Quantity: 5},
		{Expiration: nil, Quantity: 20},
	}

	plan, err := PlanFEFO(batches, 10)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	require.Nil(t, plan[1].Expiration)
	require.Equal(t, int64(5), plan[1].Quantity)
}

func TestPlanFEFOInsufficientStock(t *testing.T) {
	batches := []StockLevel{
		{Expiration: datePtr(t, "2026-09-01"), Quantity: 5},
		{Expiration: nil, Quantity: 2},
	}

	_, err := PlanFEFO(batches, 8)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestPlanFEFORejectsNonPositiveQuantity(t *testing.T) {
	_, err := PlanFEFO(nil, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = PlanFEFO(nil, -4)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestPlanFEFOSkipsEmptyBatches(t *testing.T) {
	batches := []StockLevel{
		{Expiration: datePtr(t, "2026-09-01"), Quantity: 0},
		{Expiration: datePtr(t, "2026-10-01"), Quantity: 4},
	}

	plan, err := PlanFEFO(batches, 4)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	require.Equal(t, batches[1].Expiration, plan[0].Expiration)
}
