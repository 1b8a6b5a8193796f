package returns

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/ledger"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/sales"
)

type memoryStore struct {
	returns  map[int64]*Return
	lines    []Line
	sales    *salesFake
	stock    *stockFake
	drawer   *drawerFake
	credit   *creditFake
	sequence int64
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		returns: make(map[int64]*Return),
		sales:   &salesFake{sales: make(map[int64]*sales.Sale)},
		stock:   &stockFake{batches: make(map[string]int64)},
		drawer:  &drawerFake{},
		credit:  &creditFake{customers: make(map[int64]*credit.Customer)},
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) InsertReturn(_ context.Context, ret Return) (int64, error) {
	m.nextID++
	ret.ID = m.nextID
	ret.CreatedAt = time.Now().UTC()
	m.returns[ret.ID] = &ret
	return ret.ID, nil
}

func (m *memoryStore) InsertLine(_ context.Context, line Line) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	m.lines = append(m.lines, line)
	return line.ID, nil
}

func (m *memoryStore) ReturnedQty(_ context.Context, saleItemID int64) (int64, error) {
	var qty int64
	for _, line := range m.lines {
		if line.SaleItemID == saleItemID {
			qty += line.Quantity
		}
	}
	return qty, nil
}

func (m *memoryStore) Sales() sales.TxStore         { return m.sales }
func (m *memoryStore) Inventory() inventory.TxStore { return m.stock }
func (m *memoryStore) Drawer() cashdrawer.TxStore   { return m.drawer }
func (m *memoryStore) Credit() credit.TxStore       { return m.credit }
func (m *memoryStore) Sequences() numbering.Sequencer {
	return m
}

func (m *memoryStore) Next(_ context.Context, _ int64, _, defaultPrefix string) (numbering.Allocation, error) {
	m.sequence++
	return numbering.Allocation{Value: m.sequence, Prefix: defaultPrefix}, nil
}

func (m *memoryStore) GetReturn(_ context.Context, returnID int64) (Return, error) {
	ret, ok := m.returns[returnID]
	if !ok {
		return Return{}, ErrReturnNotFound
	}
	result := *ret
	for _, line := range m.lines {
		if line.ReturnID == returnID {
			result.Lines = append(result.Lines, line)
		}
	}
	return result, nil
}

func (m *memoryStore) ListBySale(_ context.Context, saleID int64) ([]Return, error) {
	var result []Return
	for _, ret := range m.returns {
		if ret.SaleID == saleID {
			result = append(result, *ret)
		}
	}
	return result, nil
}

// salesFake implements the slice of sales.TxStore the returns engine uses.
type salesFake struct {
	sales map[int64]*sales.Sale
	items []sales.Item
}

func (f *salesFake) SaleForUpdate(_ context.Context, saleID int64) (sales.Sale, error) {
	sale, ok := f.sales[saleID]
	if !ok {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return *sale, nil
}

func (f *salesFake) ItemsBySale(_ context.Context, saleID int64) ([]sales.Item, error) {
	var items []sales.Item
	for _, item := range f.items {
		if item.SaleID == saleID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *salesFake) UpdateStatus(_ context.Context, saleID int64, status sales.Status) error {
	f.sales[saleID].Status = status
	return nil
}

func (f *salesFake) InsertSale(context.Context, sales.Sale) (int64, error)  { return 0, nil }
func (f *salesFake) InsertItem(context.Context, sales.Item) (int64, error) { return 0, nil }
func (f *salesFake) SetInvoice(context.Context, int64, int64) error        { return nil }
func (f *salesFake) Inventory() inventory.TxStore                          { return nil }
func (f *salesFake) Credit() credit.TxStore                                { return nil }
func (f *salesFake) Drawer() cashdrawer.TxStore                            { return nil }
func (f *salesFake) Sequences() numbering.Sequencer                        { return nil }

// stockFake is a minimal batch map implementing inventory.TxStore.
type stockFake struct {
	batches map[string]int64
}

func stockKey(productID, locationID int64, expiration *time.Time) string {
	exp := "none"
	if expiration != nil {
		exp = expiration.Format("2006-01-02")
	}
	return fmt.Sprintf("%d:%d:%s", productID, locationID, exp)
}

func (f *stockFake) BatchesForUpdate(context.Context, int64, int64) ([]inventory.StockLevel, error) {
	return nil, nil
}

func (f *stockFake) AddQuantity(_ context.Context, productID, locationID int64, expiration *time.Time, quantity int64) error {
	f.batches[stockKey(productID, locationID, expiration)] += quantity
	return nil
}

func (f *stockFake) TakeQuantity(_ context.Context, productID, locationID int64, expiration *time.Time, quantity int64) (bool, error) {
	key := stockKey(productID, locationID, expiration)
	if f.batches[key] < quantity {
		return false, nil
	}
	f.batches[key] -= quantity
	return true, nil
}

func (f *stockFake) InsertMovement(context.Context, inventory.Movement) error { return nil }

// drawerFake implements cashdrawer.TxStore with one open session.
type drawerFake struct {
	session      *cashdrawer.Session
	transactions []cashdrawer.Transaction
}

func (f *drawerFake) open(locationID int64, openingFloat decimal.Decimal) {
	f.session = &cashdrawer.Session{ID: 1, LocationID: locationID, Status: cashdrawer.SessionOpen, OpeningFloat: openingFloat, ExpectedCash: openingFloat}
}

func (f *drawerFake) OpenSessionForUpdate(_ context.Context, locationID int64) (cashdrawer.Session, error) {
	if f.session == nil || f.session.LocationID != locationID {
		return cashdrawer.Session{}, cashdrawer.ErrNoOpenSession
	}
	return *f.session, nil
}

func (f *drawerFake) SessionForUpdate(_ context.Context, sessionID int64) (cashdrawer.Session, error) {
	return *f.session, nil
}

func (f *drawerFake) InsertSession(context.Context, cashdrawer.Session) (int64, error) {
	return 0, cashdrawer.ErrSessionOpen
}

func (f *drawerFake) UpdateStatus(_ context.Context, _ int64, status cashdrawer.SessionStatus) error {
	f.session.Status = status
	return nil
}

func (f *drawerFake) UpdateExpectedCash(_ context.Context, _ int64, expected decimal.Decimal) error {
	f.session.ExpectedCash = expected
	return nil
}

func (f *drawerFake) CloseSession(context.Context, int64, decimal.Decimal, decimal.Decimal, time.Time) error {
	return nil
}

func (f *drawerFake) InsertTransaction(_ context.Context, sessionID int64, entry ledger.Entry) (int64, error) {
	f.transactions = append(f.transactions, cashdrawer.Transaction{
		SessionID: sessionID,
		Type:      cashdrawer.TransactionType(entry.Type),
		Amount:    entry.Amount,
	})
	return int64(len(f.transactions)), nil
}

func (f *drawerFake) InsertSettlement(context.Context, cashdrawer.Settlement) (int64, error) {
	return 0, nil
}

func (f *drawerFake) InsertExpense(context.Context, cashdrawer.Expense) (int64, error) {
	return 0, nil
}

func (f *drawerFake) Sequences() numbering.Sequencer { return nil }

// creditFake implements credit.TxStore.
type creditFake struct {
	customers map[int64]*credit.Customer
	entries   []ledger.Entry
}

func (f *creditFake) CustomerForUpdate(_ context.Context, customerID int64) (credit.Customer, error) {
	c, ok := f.customers[customerID]
	if !ok {
		return credit.Customer{}, credit.ErrCustomerNotFound
	}
	return *c, nil
}

func (f *creditFake) UpdateBalance(_ context.Context, customerID int64, balance decimal.Decimal) error {
	f.customers[customerID].CurrentBalance = balance
	return nil
}

func (f *creditFake) InsertTransaction(_ context.Context, _ int64, entry ledger.Entry) (int64, error) {
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), nil
}

func (f *creditFake) InsertInvoice(context.Context, credit.Invoice) (int64, error) { return 0, nil }

func (f *creditFake) OpenInvoicesForUpdate(context.Context, int64) ([]credit.Invoice, error) {
	return nil, nil
}

func (f *creditFake) SettleInvoice(context.Context, int64, decimal.Decimal, credit.InvoiceStatus) error {
	return nil
}

func (f *creditFake) InsertPayment(context.Context, credit.Payment) (int64, error) { return 0, nil }

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func fixture() (*memoryStore, *Service) {
	store := newMemoryStore()
	store.drawer.open(1, dec("500"))
	store.sales.sales[1] = &sales.Sale{ID: 1, OrgID: 1, LocationID: 1, CustomerID: 7, Status: sales.StatusCompleted, Total: dec("33")}
	store.sales.items = []sales.Item{
		{ID: 100, SaleID: 1, ProductID: 10, Quantity: 3, UnitPrice: dec("10"), TaxRate: dec("10"), LineTotal: dec("33")},
	}
	store.credit.customers[7] = &credit.Customer{ID: 7, CreditLimit: dec("5000"), CurrentBalance: dec("200")}
	return store, NewService(store, nil)
}

func TestReturnCashRestocksAndRefunds(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 2, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.NoError(t, err)
	require.Equal(t, "RET-000001", ret.Number)
	require.True(t, ret.RefundTotal.Equal(dec("22"))) // 2 * 10.00 + 10% tax

	// Restock lands in the non-expiring batch.
	require.Equal(t, int64(2), store.stock.batches[stockKey(10, 1, nil)])
	require.Len(t, store.drawer.transactions, 1)
	require.Equal(t, cashdrawer.TransactionRefundCashOut, store.drawer.transactions[0].Type)
	require.True(t, store.drawer.transactions[0].Amount.Equal(dec("-22")))
	require.True(t, store.drawer.session.ExpectedCash.Equal(dec("478")))
	require.Equal(t, sales.StatusPartiallyReturned, store.sales.sales[1].Status)
}

func TestReturnCompletesSaleWhenAllUnitsBack(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 2, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: ConditionDamaged, Disposition: DispositionDispose}},
	})
	require.NoError(t, err)
	require.Equal(t, sales.StatusReturned, store.sales.sales[1].Status)
}

func TestReturnRejectsExceedingSold(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 4, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.ErrorIs(t, err, ErrExceedsSold)

	// Across documents the bound still holds.
	_, err = svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 2, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 2, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.ErrorIs(t, err, ErrExceedsSold)
	require.Equal(t, int64(2), store.stock.batches[stockKey(10, 1, nil)])
}

func TestReturnCreditAdjustsLedger(t *testing.T) {
	store, svc := fixture()
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCredit, Reason: "wrong item", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: ConditionDamaged, Disposition: DispositionQuarantine}},
	})
	require.NoError(t, err)
	require.True(t, ret.RefundTotal.Equal(dec("11")))
	require.True(t, store.credit.customers[7].CurrentBalance.Equal(dec("189")))
	// Quarantined goods never touch sellable stock.
	require.Empty(t, store.stock.batches)
	require.Empty(t, store.drawer.transactions)
}

func TestReturnCreditRequiresCustomerSale(t *testing.T) {
	store, svc := fixture()
	store.sales.sales[1].CustomerID = 0

	_, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCredit, Reason: "wrong item", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: ConditionDamaged, Disposition: DispositionDispose}},
	})
	require.ErrorIs(t, err, ErrCustomerRequired)
}

func TestReturnCashWithoutDrawerSessionStillCompletes(t *testing.T) {
	store, svc := fixture()
	store.drawer.session = nil

	ret, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 2, Condition: ConditionGood, Disposition: DispositionRestock}},
	})
	require.NoError(t, err)
	require.True(t, ret.RefundTotal.Equal(dec("22")))
	// Restock and status still apply; only the drawer row is skipped.
	require.Equal(t, int64(2), store.stock.batches[stockKey(10, 1, nil)])
	require.Empty(t, store.drawer.transactions)
	require.Equal(t, sales.StatusPartiallyReturned, store.sales.sales[1].Status)
}

func TestReturnPersistsConditionAndNotes(t *testing.T) {
	store, svc := fixture()

	ret, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", Notes: "box crushed in transit", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: ConditionDamaged, Disposition: DispositionDispose}},
	})
	require.NoError(t, err)
	require.Equal(t, "box crushed in transit", ret.Notes)
	require.Len(t, ret.Lines, 1)
	require.Equal(t, ConditionDamaged, ret.Lines[0].Condition)
	require.Equal(t, ConditionDamaged, store.lines[0].Condition)
}

func TestReturnRejectsUnknownCondition(t *testing.T) {
	_, svc := fixture()
	_, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: "SOGGY", Disposition: DispositionDispose}},
	})
	require.ErrorIs(t, err, ErrInvalidCondition)
}

func TestReturnRejectsUnknownDisposition(t *testing.T) {
	_, svc := fixture()
	_, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, SaleID: 1, RefundMethod: RefundCash, Reason: "damaged", ActorID: 2,
		Lines: []LineInput{{SaleItemID: 100, Quantity: 1, Condition: ConditionGood, Disposition: "MELT"}},
	})
	require.ErrorIs(t, err, ErrInvalidDisposition)
}
