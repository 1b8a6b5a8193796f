package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNextChainsBalances(t *testing.T) {
	opening := decimal.NewFromInt(100)

	first, err := Next(opening, "SALE_CASH_IN", decimal.NewFromInt(250), "sale", "SAL-000001", time.Time{})
	require.NoError(t, err)
	require.True(t, first.BalanceBefore.Equal(decimal.NewFromInt(100)))
	require.True(t, first.BalanceAfter.Equal(decimal.NewFromInt(350)))
	require.False(t, first.OccurredAt.IsZero())

	second, err := Next(first.BalanceAfter, "EXPENSE_CASH_OUT", decimal.NewFromInt(-30), "expense", "EXP-MER-000001", time.Time{})
	require.NoError(t, err)
	require.True(t, second.BalanceAfter.Equal(decimal.NewFromInt(320)))

	require.NoError(t, VerifyChain(opening, []Entry{first, second}))
}

func TestNextRejectsZeroAmount(t *testing.T) {
	_, err := Next(decimal.Zero, "ADJUSTMENT", decimal.Zero, "", "", time.Time{})
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestVerifyChainDetectsBreak(t *testing.T) {
	opening := decimal.Zero
	good, err := Next(opening, "CREDIT", decimal.NewFromInt(50), "sale", "1", time.Time{})
	require.NoError(t, err)

	bad := good
	bad.BalanceAfter = decimal.NewFromInt(60)
	require.ErrorIs(t, VerifyChain(opening, []Entry{bad}), ErrChainBroken)

	skipped := good
	skipped.BalanceBefore = decimal.NewFromInt(5)
	skipped.BalanceAfter = decimal.NewFromInt(55)
	require.ErrorIs(t, VerifyChain(opening, []Entry{good, skipped, skipped}), ErrChainBroken)
}
