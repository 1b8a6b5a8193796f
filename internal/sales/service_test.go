package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/catalog"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/ledger"
	"github.com/meridian-retail/meridian/internal/numbering"
)

// memoryStore implements RepositoryPort and TxStore over in-memory state.
// WithTx snapshots the state and restores it on error, mirroring rollback.
type memoryStore struct {
	sales    map[int64]*Sale
	items    []Item
	stock    *stockFake
	credit   *creditFake
	drawer   *drawerFake
	sequence map[string]int64
	nextID   int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sales:    make(map[int64]*Sale),
		stock:    &stockFake{batches: make(map[string]int64)},
		credit:   &creditFake{customers: make(map[int64]*credit.Customer)},
		drawer:   &drawerFake{},
		sequence: make(map[string]int64),
	}
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	backup := m.clone()
	if err := fn(ctx, m); err != nil {
		*m = *backup
		return err
	}
	return nil
}

func (m *memoryStore) clone() *memoryStore {
	cp := &memoryStore{
		sales:    make(map[int64]*Sale, len(m.sales)),
		items:    append([]Item(nil), m.items...),
		stock:    m.stock.clone(),
		credit:   m.credit.clone(),
		drawer:   m.drawer.clone(),
		sequence: make(map[string]int64, len(m.sequence)),
		nextID:   m.nextID,
	}
	for id, sale := range m.sales {
		copied := *sale
		cp.sales[id] = &copied
	}
	for key, value := range m.sequence {
		cp.sequence[key] = value
	}
	return cp
}

func (m *memoryStore) InsertSale(_ context.Context, sale Sale) (int64, error) {
	m.nextID++
	sale.ID = m.nextID
	sale.CreatedAt = time.Now().UTC()
	m.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (m *memoryStore) InsertItem(_ context.Context, item Item) (int64, error) {
	m.nextID++
	item.ID = m.nextID
	m.items = append(m.items, item)
	return item.ID, nil
}

func (m *memoryStore) SetInvoice(_ context.Context, saleID, invoiceID int64) error {
	m.sales[saleID].InvoiceID = invoiceID
	return nil
}

func (m *memoryStore) SaleForUpdate(_ context.Context, saleID int64) (Sale, error) {
	sale, ok := m.sales[saleID]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return *sale, nil
}

func (m *memoryStore) ItemsBySale(_ context.Context, saleID int64) ([]Item, error) {
	var items []Item
	for _, item := range m.items {
		if item.SaleID == saleID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, saleID int64, status Status) error {
	m.sales[saleID].Status = status
	return nil
}

func (m *memoryStore) Inventory() inventory.TxStore   { return m.stock }
func (m *memoryStore) Credit() credit.TxStore         { return m.credit }
func (m *memoryStore) Drawer() cashdrawer.TxStore     { return m.drawer }
func (m *memoryStore) Sequences() numbering.Sequencer { return m }

func (m *memoryStore) Next(_ context.Context, _ int64, key, defaultPrefix string) (numbering.Allocation, error) {
	m.sequence[key]++
	return numbering.Allocation{Value: m.sequence[key], Prefix: defaultPrefix}, nil
}

func (m *memoryStore) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	sale, err := m.SaleForUpdate(ctx, saleID)
	if err != nil {
		return Sale{}, err
	}
	sale.Items, _ = m.ItemsBySale(ctx, saleID)
	return sale, nil
}

func (m *memoryStore) ListSales(context.Context, int64, int64, int, int) ([]Sale, error) {
	return nil, nil
}

// stockFake is a minimal batch map implementing inventory.TxStore.
type stockFake struct {
	batches map[string]int64
}

func (f *stockFake) clone() *stockFake {
	cp := &stockFake{batches: make(map[string]int64, len(f.batches))}
	for key, qty := range f.batches {
		cp.batches[key] = qty
	}
	return cp
}

func stockKey(productID, locationID int64, expiration *time.Time) string {
	exp := "none"
	if expiration != nil {
		exp = expiration.Format("2006-01-02")
	}
	return fmt.Sprintf("%d:%d:%s", productID, locationID, exp)
}

func (f *stockFake) BatchesForUpdate(_ context.Context, productID, locationID int64) ([]inventory.StockLevel, error) {
	var batches []inventory.StockLevel
	if qty, ok := f.batches[stockKey(productID, locationID, nil)]; ok {
		batches = append(batches, inventory.StockLevel{ProductID: productID, LocationID: locationID, Quantity: qty})
	}
	return batches, nil
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

// creditFake implements credit.TxStore.
type creditFake struct {
	customers map[int64]*credit.Customer
	entries   []ledger.Entry
	invoices  []*credit.Invoice
	payments  []credit.Payment
	nextID    int64
}

func (f *creditFake) clone() *creditFake {
	cp := &creditFake{
		customers: make(map[int64]*credit.Customer, len(f.customers)),
		entries:   append([]ledger.Entry(nil), f.entries...),
		payments:  append([]credit.Payment(nil), f.payments...),
		nextID:    f.nextID,
	}
	for id, c := range f.customers {
		copied := *c
		cp.customers[id] = &copied
	}
	for _, inv := range f.invoices {
		copied := *inv
		cp.invoices = append(cp.invoices, &copied)
	}
	return cp
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
	f.nextID++
	return f.nextID, nil
}

func (f *creditFake) InsertInvoice(_ context.Context, invoice credit.Invoice) (int64, error) {
	f.nextID++
	invoice.ID = f.nextID
	f.invoices = append(f.invoices, &invoice)
	return invoice.ID, nil
}

func (f *creditFake) OpenInvoicesForUpdate(_ context.Context, customerID int64) ([]credit.Invoice, error) {
	var open []credit.Invoice
	for _, inv := range f.invoices {
		if inv.CustomerID == customerID && inv.BalanceDue.IsPositive() {
			open = append(open, *inv)
		}
	}
	return open, nil
}

func (f *creditFake) SettleInvoice(_ context.Context, invoiceID int64, balanceDue decimal.Decimal, status credit.InvoiceStatus) error {
	for _, inv := range f.invoices {
		if inv.ID == invoiceID {
			inv.BalanceDue = balanceDue
			inv.Status = status
		}
	}
	return nil
}

func (f *creditFake) InsertPayment(_ context.Context, payment credit.Payment) (int64, error) {
	f.nextID++
	f.payments = append(f.payments, payment)
	return f.nextID, nil
}

// drawerFake implements cashdrawer.TxStore with one open session.
type drawerFake struct {
	session      *cashdrawer.Session
	transactions []cashdrawer.Transaction
	settlements  []cashdrawer.Settlement
}

func (f *drawerFake) clone() *drawerFake {
	cp := &drawerFake{
		transactions: append([]cashdrawer.Transaction(nil), f.transactions...),
		settlements:  append([]cashdrawer.Settlement(nil), f.settlements...),
	}
	if f.session != nil {
		copied := *f.session
		cp.session = &copied
	}
	return cp
}

func (f *drawerFake) open(locationID int64, openingFloat decimal.Decimal) {
	f.session = &cashdrawer.Session{
		ID:           1,
		LocationID:   locationID,
		Status:       cashdrawer.SessionOpen,
		OpeningFloat: openingFloat,
		ExpectedCash: openingFloat,
	}
}

func (f *drawerFake) OpenSessionForUpdate(_ context.Context, locationID int64) (cashdrawer.Session, error) {
	if f.session == nil || f.session.LocationID != locationID || f.session.Status == cashdrawer.SessionClosed {
		return cashdrawer.Session{}, cashdrawer.ErrNoOpenSession
	}
	return *f.session, nil
}

func (f *drawerFake) SessionForUpdate(_ context.Context, sessionID int64) (cashdrawer.Session, error) {
	if f.session == nil || f.session.ID != sessionID {
		return cashdrawer.Session{}, cashdrawer.ErrNoOpenSession
	}
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
	f.session.Status = cashdrawer.SessionClosed
	return nil
}

func (f *drawerFake) InsertTransaction(_ context.Context, sessionID int64, entry ledger.Entry) (int64, error) {
	f.transactions = append(f.transactions, cashdrawer.Transaction{
		SessionID:     sessionID,
		Type:          cashdrawer.TransactionType(entry.Type),
		Amount:        entry.Amount,
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
		RefType:       entry.RefType,
		RefID:         entry.RefID,
		OccurredAt:    entry.OccurredAt,
	})
	return int64(len(f.transactions)), nil
}

func (f *drawerFake) InsertSettlement(_ context.Context, settlement cashdrawer.Settlement) (int64, error) {
	f.settlements = append(f.settlements, settlement)
	return int64(len(f.settlements)), nil
}

func (f *drawerFake) InsertExpense(context.Context, cashdrawer.Expense) (int64, error) {
	return 0, nil
}

func (f *drawerFake) Sequences() numbering.Sequencer { return nil }

// catalogFake implements CatalogPort.
type catalogFake struct {
	products map[int64]catalog.Product
	specials map[string]decimal.Decimal
}

func (f *catalogFake) Resolve(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	result := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		product, ok := f.products[id]
		if !ok {
			return nil, catalog.ErrNotFound
		}
		result[id] = product
	}
	return result, nil
}

func (f *catalogFake) SpecialPriceFor(_ context.Context, customerID, productID int64) (catalog.SpecialPrice, bool, error) {
	price, ok := f.specials[fmt.Sprintf("%d:%d", customerID, productID)]
	if !ok {
		return catalog.SpecialPrice{}, false, nil
	}
	return catalog.SpecialPrice{CustomerID: customerID, ProductID: productID, UnitPrice: price}, true, nil
}

func fixture() (*memoryStore, *catalogFake, *Service) {
	store := newMemoryStore()
	store.drawer.open(1, dec("100"))
	store.stock.batches[stockKey(10, 1, nil)] = 50
	store.stock.batches[stockKey(11, 1, nil)] = 5
	store.credit.customers[7] = &credit.Customer{ID: 7, CreditLimit: dec("5000"), CurrentBalance: dec("4900")}
	catalogPort := &catalogFake{
		products: map[int64]catalog.Product{
			10: {ID: 10, SellingPrice: dec("10.00"), TaxRate: dec("10")},
			11: {ID: 11, SellingPrice: dec("4.00"), TaxRate: dec("0")},
		},
		specials: map[string]decimal.Decimal{},
	}
	return store, catalogPort, NewService(store, catalogPort, nil)
}

func TestCheckoutCashHappyPath(t *testing.T) {
	store, _, svc := fixture()
	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCash, Tendered: dec("30"),
		Lines: []CartLine{{ProductID: 10, Quantity: 3, Discount: dec("5")}},
	})
	require.NoError(t, err)

	require.Equal(t, "POS-000001", sale.Number)
	require.True(t, sale.Subtotal.Equal(dec("30")))
	require.True(t, sale.TaxTotal.Equal(dec("3.00"))) // tax on the gross 30.00
	require.True(t, sale.Total.Equal(dec("28.00")))
	require.True(t, sale.ChangeDue.Equal(dec("2.00")))
	require.Equal(t, StatusCompleted, sale.Status)
	require.Len(t, sale.Items, 1)

	require.Equal(t, int64(47), store.stock.batches[stockKey(10, 1, nil)])
	require.True(t, store.drawer.session.ExpectedCash.Equal(dec("128.00")))
	require.Equal(t, cashdrawer.TransactionSaleCashIn, store.drawer.transactions[0].Type)
}

func TestCheckoutCashInsufficientTender(t *testing.T) {
	store, _, svc := fixture()
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCash, Tendered: dec("20"),
		Lines: []CartLine{{ProductID: 10, Quantity: 3}},
	})
	require.ErrorIs(t, err, ErrInsufficientPayment)
	require.Equal(t, int64(50), store.stock.batches[stockKey(10, 1, nil)])
	require.Empty(t, store.sales)
}

func TestCheckoutRollsBackWholeCartOnShortStock(t *testing.T) {
	store, _, svc := fixture()
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCash, Tendered: dec("1000"),
		Lines: []CartLine{
			{ProductID: 10, Quantity: 3},
			{ProductID: 11, Quantity: 9}, // only 5 on hand
		},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	require.Equal(t, int64(50), store.stock.batches[stockKey(10, 1, nil)])
	require.Equal(t, int64(5), store.stock.batches[stockKey(11, 1, nil)])
	require.Empty(t, store.sales)
	require.Empty(t, store.drawer.transactions)
	require.True(t, store.drawer.session.ExpectedCash.Equal(dec("100")))
}

func TestCheckoutCreditEnforcesLimitAtomically(t *testing.T) {
	store, _, svc := fixture()
	ctx := context.Background()

	// 15 * 10.00 * 1.1 = 165.00 would exceed the 100 of remaining credit.
	_, err := svc.Checkout(ctx, CheckoutInput{
		OrgID: 1, LocationID: 1, CustomerID: 7, CashierID: 2, Method: MethodCredit,
		Lines: []CartLine{{ProductID: 10, Quantity: 15}},
	})
	require.ErrorIs(t, err, credit.ErrLimitExceeded)
	require.Equal(t, int64(50), store.stock.batches[stockKey(10, 1, nil)])
	require.Empty(t, store.sales)
	require.True(t, store.credit.customers[7].CurrentBalance.Equal(dec("4900")))

	// 25 * 10.00 with a 150 discount on the zero-tax product lands exactly on
	// the remaining headroom of 100.
	store.stock.batches[stockKey(11, 1, nil)] = 25
	override := dec("10")
	sale, err := svc.Checkout(ctx, CheckoutInput{
		OrgID: 1, LocationID: 1, CustomerID: 7, CashierID: 2, Method: MethodCredit,
		Lines: []CartLine{{ProductID: 11, Quantity: 25, UnitPrice: &override, Discount: dec("150")}},
	})
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(dec("100")))
	require.True(t, store.credit.customers[7].CurrentBalance.Equal(dec("5000")))
	require.NotZero(t, sale.InvoiceID)
	require.Len(t, store.credit.invoices, 1)
	require.True(t, store.credit.invoices[0].BalanceDue.Equal(dec("100")))
	require.Equal(t, credit.InvoiceSent, store.credit.invoices[0].Status)
}

func TestCheckoutCreditRequiresCustomer(t *testing.T) {
	_, _, svc := fixture()
	_, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCredit,
		Lines: []CartLine{{ProductID: 10, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrCustomerRequired)
}

func TestCheckoutPartialSplitsTenderAndCredit(t *testing.T) {
	store, _, svc := fixture()
	store.credit.customers[7].CurrentBalance = dec("0")

	store.stock.batches[stockKey(11, 1, nil)] = 25

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CustomerID: 7, CashierID: 2, Method: MethodPartial, Tendered: dec("40"),
		Lines: []CartLine{{ProductID: 11, Quantity: 25}},
	})
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(dec("100")))
	require.True(t, sale.AmountPaid.Equal(dec("40")))
	require.True(t, store.drawer.session.ExpectedCash.Equal(dec("140")))
	require.True(t, store.credit.customers[7].CurrentBalance.Equal(dec("60")))
	require.Len(t, store.credit.invoices, 1)
	require.True(t, store.credit.invoices[0].Total.Equal(dec("60")))
}

func TestCheckoutCardRecordsSettlementNotCash(t *testing.T) {
	store, _, svc := fixture()
	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCard,
		Lines: []CartLine{{ProductID: 11, Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, sale.AmountPaid.Equal(dec("8")))
	require.Empty(t, store.drawer.transactions)
	require.Len(t, store.drawer.settlements, 1)
	require.Equal(t, "CARD", store.drawer.settlements[0].Method)
	require.True(t, store.drawer.session.ExpectedCash.Equal(dec("100")))
}

func TestCheckoutCashWithoutDrawerSessionStillCompletes(t *testing.T) {
	store, _, svc := fixture()
	store.drawer.session = nil

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCash, Tendered: dec("40"),
		Lines: []CartLine{{ProductID: 10, Quantity: 3}},
	})
	require.NoError(t, err)
	require.True(t, sale.Total.Equal(dec("33")))
	require.True(t, sale.ChangeDue.Equal(dec("7")))
	// Stock moves and the sale commits; only the drawer row is skipped.
	require.Equal(t, int64(47), store.stock.batches[stockKey(10, 1, nil)])
	require.Empty(t, store.drawer.transactions)
}

func TestCheckoutCardWithoutDrawerSessionSkipsSettlement(t *testing.T) {
	store, _, svc := fixture()
	store.drawer.session = nil

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CashierID: 2, Method: MethodCard,
		Lines: []CartLine{{ProductID: 11, Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, sale.AmountPaid.Equal(dec("8")))
	require.Empty(t, store.drawer.settlements)
}

func TestCheckoutAppliesSpecialPrice(t *testing.T) {
	store, catalogPort, svc := fixture()
	store.credit.customers[7].CurrentBalance = dec("0")
	catalogPort.specials["7:10"] = dec("8.00")

	sale, err := svc.Checkout(context.Background(), CheckoutInput{
		OrgID: 1, LocationID: 1, CustomerID: 7, CashierID: 2, Method: MethodCash, Tendered: dec("100"),
		Lines: []CartLine{{ProductID: 10, Quantity: 2}},
	})
	require.NoError(t, err)
	// 2 * 8.00 = 16.00, tax 10% = 1.60
	require.True(t, sale.Total.Equal(dec("17.60")))
	require.True(t, sale.Items[0].UnitPrice.Equal(dec("8.00")))
}

func TestCheckoutEmptyCart(t *testing.T) {
	_, _, svc := fixture()
	_, err := svc.Checkout(context.Background(), CheckoutInput{OrgID: 1, LocationID: 1, Method: MethodCash})
	require.ErrorIs(t, err, ErrEmptyCart)
}
