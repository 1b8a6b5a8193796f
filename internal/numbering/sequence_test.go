package numbering

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "INV-000042", Format(Allocation{Value: 42, Prefix: "INV"}))
	require.Equal(t, "SAL-000001", Format(Allocation{Value: 1, Prefix: "SAL"}))
	require.Equal(t, "EXP-MER-001234", Format(Allocation{Value: 1234, Prefix: "EXP-MER"}))
}

func TestExpensePrefix(t *testing.T) {
	require.Equal(t, "EXP-MER", ExpensePrefix("meridian"))
	require.Equal(t, "EXP-AB", ExpensePrefix("ab"))
}
