package credit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/ledger"
)

type memoryStore struct {
	customers    map[int64]*Customer
	transactions []Transaction
	invoices     []*Invoice
	payments     []Payment
	nextID       int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{customers: make(map[int64]*Customer), nextID: 1}
}

func (m *memoryStore) addCustomer(id int64, limit, balance string) {
	m.customers[id] = &Customer{
		ID:             id,
		CreditLimit:    dec(limit),
		CurrentBalance: dec(balance),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) CustomerForUpdate(_ context.Context, customerID int64) (Customer, error) {
	c, ok := m.customers[customerID]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return *c, nil
}

func (m *memoryStore) UpdateBalance(_ context.Context, customerID int64, balance decimal.Decimal) error {
	m.customers[customerID].CurrentBalance = balance
	return nil
}

func (m *memoryStore) InsertTransaction(_ context.Context, customerID int64, entry ledger.Entry) (int64, error) {
	m.nextID++
	m.transactions = append(m.transactions, Transaction{
		ID:            m.nextID,
		CustomerID:    customerID,
		Type:          TransactionType(entry.Type),
		Amount:        entry.Amount,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		RefType:       entry.RefType,
		RefID:         entry.RefID,
		OccurredAt:    entry.OccurredAt,
	})
	return m.nextID, nil
}

func (m *memoryStore) InsertInvoice(_ context.Context, invoice Invoice) (int64, error) {
	m.nextID++
	invoice.ID = m.nextID
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	m.invoices = append(m.invoices, &invoice)
	return invoice.ID, nil
}

func (m *memoryStore) OpenInvoicesForUpdate(_ context.Context, customerID int64) ([]Invoice, error) {
	var open []Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.BalanceDue.IsPositive() {
			open = append(open, *inv)
		}
	}
	return open, nil
}

func (m *memoryStore) SettleInvoice(_ context.Context, invoiceID int64, balanceDue decimal.Decimal, status InvoiceStatus) error {
	for _, inv := range m.invoices {
		if inv.ID == invoiceID {
			inv.BalanceDue = balanceDue
			inv.Status = status
		}
	}
	return nil
}

func (m *memoryStore) InsertPayment(_ context.Context, payment Payment) (int64, error) {
	m.nextID++
	payment.ID = m.nextID
	m.payments = append(m.payments, payment)
	return payment.ID, nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestStatusThresholds(t *testing.T) {
	limit := dec("5000")
	require.Equal(t, StatusGood, StatusOf(dec("3999.99"), limit))
	require.Equal(t, StatusWarning, StatusOf(dec("4000"), limit))
	require.Equal(t, StatusWarning, StatusOf(dec("4999.99"), limit))
	require.Equal(t, StatusBlocked, StatusOf(dec("5000"), limit))
	require.Equal(t, StatusBlocked, StatusOf(dec("6200"), limit))
}

func TestStatusZeroLimit(t *testing.T) {
	require.Equal(t, StatusGood, StatusOf(dec("0"), dec("0")))
	require.Equal(t, StatusBlocked, StatusOf(dec("0.01"), dec("0")))
}

func TestApplyCreditEnforcesLimit(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "5000", "4900")
	ctx := context.Background()

	_, err := ApplyCredit(ctx, store, 1, dec("150"), Ref{Type: "SALE", ID: "POS-000001"})
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.True(t, store.customers[1].CurrentBalance.Equal(dec("4900")))
	require.Empty(t, store.transactions)

	entry, err := ApplyCredit(ctx, store, 1, dec("100"), Ref{Type: "SALE", ID: "POS-000001"})
	require.NoError(t, err)
	require.True(t, entry.BalanceAfter.Equal(dec("5000")))
	require.True(t, store.customers[1].CurrentBalance.Equal(dec("5000")))
}

func TestApplyCreditChainsBalances(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "10000", "0")
	ctx := context.Background()

	_, err := ApplyCredit(ctx, store, 1, dec("250.50"), Ref{Type: "SALE", ID: "POS-000001"})
	require.NoError(t, err)
	_, err = ApplyCredit(ctx, store, 1, dec("100"), Ref{Type: "SALE", ID: "POS-000002"})
	require.NoError(t, err)

	entries := make([]ledger.Entry, 0, len(store.transactions))
	for _, tx := range store.transactions {
		entries = append(entries, ledger.Entry{
			Amount:        tx.Amount,
			BalanceBefore: tx.BalanceBefore,
			BalanceAfter:  tx.BalanceAfter,
		})
	}
	require.NoError(t, ledger.VerifyChain(decimal.Zero, entries))
}

func TestApplyPaymentSettlesOldestInvoiceFirst(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "10000", "800")
	ctx := context.Background()

	_, err := store.InsertInvoice(ctx, Invoice{CustomerID: 1, Number: "INV-000001", Total: dec("500"), BalanceDue: dec("500"), Status: InvoiceSent, CreatedAt: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = store.InsertInvoice(ctx, Invoice{CustomerID: 1, Number: "INV-000002", Total: dec("300"), BalanceDue: dec("300"), Status: InvoiceSent, CreatedAt: time.Now().Add(-24 * time.Hour)})
	require.NoError(t, err)

	result, err := ApplyPayment(ctx, store, 1, dec("600"), "MOBILE_MONEY", "TRX-1")
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	require.True(t, result.Allocations[0].Amount.Equal(dec("500")))
	require.True(t, result.Allocations[1].Amount.Equal(dec("100")))
	require.True(t, result.Unapplied.IsZero())

	require.Equal(t, InvoicePaid, store.invoices[0].Status)
	require.True(t, store.invoices[0].BalanceDue.IsZero())
	require.Equal(t, InvoicePartial, store.invoices[1].Status)
	require.True(t, store.invoices[1].BalanceDue.Equal(dec("200")))

	// One aggregate ledger entry for the whole payment.
	require.Len(t, store.transactions, 1)
	require.Equal(t, TransactionPayment, store.transactions[0].Type)
	require.True(t, store.transactions[0].Amount.Equal(dec("-600")))
	require.True(t, store.customers[1].CurrentBalance.Equal(dec("200")))
}

func TestApplyPaymentOverpaymentReducesBalance(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "10000", "100")
	ctx := context.Background()

	_, err := store.InsertInvoice(ctx, Invoice{CustomerID: 1, Number: "INV-000001", Total: dec("100"), BalanceDue: dec("100"), Status: InvoiceSent})
	require.NoError(t, err)

	result, err := ApplyPayment(ctx, store, 1, dec("150"), "CASH", "")
	require.NoError(t, err)
	require.True(t, result.Unapplied.Equal(dec("50")))
	require.True(t, store.customers[1].CurrentBalance.Equal(dec("-50")))
	// Prepayment row carries the remainder with no invoice.
	require.Len(t, store.payments, 2)
	require.Zero(t, store.payments[1].InvoiceID)
}

func TestApplyPaymentRejectsNonPositive(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "1000", "0")
	_, err := ApplyPayment(context.Background(), store, 1, dec("0"), "CASH", "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ApplyPayment(context.Background(), store, 1, dec("-5"), "CASH", "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestApplyAdjustmentBypassesLimit(t *testing.T) {
	store := newMemoryStore()
	store.addCustomer(1, "1000", "950")
	ctx := context.Background()

	entry, err := ApplyAdjustment(ctx, store, 1, dec("-200"), Ref{Type: "RETURN", ID: "RET-000001"})
	require.NoError(t, err)
	require.True(t, entry.BalanceAfter.Equal(dec("750")))
	require.Equal(t, TransactionAdjustment, store.transactions[0].Type)
}

func TestApplyCreditUnknownCustomer(t *testing.T) {
	store := newMemoryStore()
	_, err := ApplyCredit(context.Background(), store, 42, dec("10"), Ref{})
	require.ErrorIs(t, err, ErrCustomerNotFound)
}
