package inventory

// PlanFEFO selects the per-batch consumption set for a decrement, consuming
// from the earliest-expiring batch first and spilling into the next batch
// when one is exhausted. Batches must be ordered by expiration ascending with
// non-expiring batches last (the order BatchesForUpdate returns).
//
// The plan is computed before any row is mutated: when the total across
// batches is short the whole request fails with ErrInsufficientStock and the
// caller mutates nothing.
func PlanFEFO(batches []StockLevel, quantity int64) ([]BatchConsumption, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	var available int64
	for _, b := range batches {
		available += b.Quantity
	}
	if available < quantity {
		return nil, ErrInsufficientStock
	}

	remaining := quantity
	var plan []BatchConsumption
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.Quantity <= 0 {
			continue
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, BatchConsumption{Expiration: b.Expiration, Quantity: take})
		remaining -= take
	}
	return plan, nil
}
