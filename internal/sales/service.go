package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/cashdrawer"
	"github.com/meridian-retail/meridian/internal/catalog"
	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/inventory"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/shared"
)

// invoiceDueDays is the payment term applied to credit-sale invoices.
const invoiceDueDays = 30

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetSale(ctx context.Context, saleID int64) (Sale, error)
	ListSales(ctx context.Context, orgID, locationID int64, limit, offset int) ([]Sale, error)
}

// CatalogPort provides the product reads checkout needs.
type CatalogPort interface {
	Resolve(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	SpecialPriceFor(ctx context.Context, customerID, productID int64) (catalog.SpecialPrice, bool, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs checkout and sale reads.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	audit   AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalogPort CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: catalogPort, audit: audit}
}

// CartLine is one requested line. UnitPrice overrides the catalog price when
// set; a customer special price beats both.
type CartLine struct {
	ProductID int64
	Quantity  int64
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

// CheckoutInput describes one checkout request.
type CheckoutInput struct {
	OrgID      int64
	LocationID int64
	CustomerID int64
	CashierID  int64
	Lines      []CartLine
	Method     Method
	// Tendered is the cash handed over for CASH, or the up-front portion for
	// PARTIAL. Ignored for CARD, MOBILE_MONEY and CREDIT.
	Tendered decimal.Decimal
}

// Checkout executes the whole sale in one transaction: price the cart,
// consume stock FEFO per line, persist the numbered sale and settle. Any
// failure rolls back everything, so stock, drawer, ledger and sale rows can
// never disagree.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (Sale, error) {
	if len(input.Lines) == 0 {
		return Sale{}, ErrEmptyCart
	}
	switch input.Method {
	case MethodCash, MethodCard, MethodMobileMoney:
	case MethodCredit, MethodPartial:
		if input.CustomerID == 0 {
			return Sale{}, ErrCustomerRequired
		}
	default:
		return Sale{}, ErrInvalidMethod
	}

	lines, totals, err := s.priceCart(ctx, input)
	if err != nil {
		return Sale{}, err
	}

	var saleID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeySale, "POS")
		if err != nil {
			return err
		}
		number := numbering.Format(alloc)

		for _, line := range lines {
			if _, err := inventory.RemoveFEFO(ctx, tx.Inventory(), line.ProductID, input.LocationID, line.Quantity, inventory.Ref{
				Type: "SALE", ID: number, ActorID: input.CashierID,
			}); err != nil {
				return err
			}
		}

		sale := Sale{
			OrgID:         input.OrgID,
			Number:        number,
			LocationID:    input.LocationID,
			CustomerID:    input.CustomerID,
			CashierID:     input.CashierID,
			Status:        StatusCompleted,
			Method:        input.Method,
			Subtotal:      totals.Subtotal,
			DiscountTotal: totals.DiscountTotal,
			TaxTotal:      totals.TaxTotal,
			Total:         totals.Total,
		}
		sale.AmountPaid, sale.ChangeDue, err = settledAmounts(input.Method, totals.Total, input.Tendered)
		if err != nil {
			return err
		}
		saleID, err = tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := tx.InsertItem(ctx, Item{
				SaleID:    saleID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
				Discount:  line.Discount,
				TaxRate:   line.TaxRate,
				TaxAmount: line.TaxAmount,
				LineTotal: line.LineTotal,
			}); err != nil {
				return err
			}
		}
		return s.settle(ctx, tx, input, saleID, number, totals.Total)
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, saleID, input)
	return s.repo.GetSale(ctx, saleID)
}

func (s *Service) priceCart(ctx context.Context, input CheckoutInput) ([]PricedLine, Totals, error) {
	ids := make([]int64, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, Totals{}, err
	}
	lines := make([]PricedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		product := products[line.ProductID]
		unitPrice := product.SellingPrice
		if line.UnitPrice != nil {
			unitPrice = *line.UnitPrice
		}
		if special, ok, err := s.catalog.SpecialPriceFor(ctx, input.CustomerID, line.ProductID); err != nil {
			return nil, Totals{}, err
		} else if ok {
			unitPrice = special.UnitPrice
		}
		priced, err := PriceLine(line.ProductID, line.Quantity, unitPrice, line.Discount, product.TaxRate)
		if err != nil {
			return nil, Totals{}, err
		}
		lines = append(lines, priced)
	}
	return lines, SumLines(lines), nil
}

func settledAmounts(method Method, total, tendered decimal.Decimal) (paid, change decimal.Decimal, err error) {
	switch method {
	case MethodCash:
		if tendered.LessThan(total) {
			return decimal.Zero, decimal.Zero, ErrInsufficientPayment
		}
		return total, tendered.Sub(total), nil
	case MethodCard, MethodMobileMoney:
		return total, decimal.Zero, nil
	case MethodCredit:
		return decimal.Zero, decimal.Zero, nil
	case MethodPartial:
		if !tendered.IsPositive() || tendered.GreaterThanOrEqual(total) {
			return decimal.Zero, decimal.Zero, fmt.Errorf("%w: partial tender must be between zero and the total", shared.ErrValidation)
		}
		return tendered, decimal.Zero, nil
	}
	return decimal.Zero, decimal.Zero, ErrInvalidMethod
}

// settle books the financial side of the sale. Drawer rows are linked only
// when the location has an open session; without one the sale still
// completes, it just leaves no drawer trace.
func (s *Service) settle(ctx context.Context, tx TxStore, input CheckoutInput, saleID int64, number string, total decimal.Decimal) error {
	switch input.Method {
	case MethodCash:
		return s.postDrawerCash(ctx, tx, input.LocationID, total, number)
	case MethodCard, MethodMobileMoney:
		err := cashdrawer.RecordSettlement(ctx, tx.Drawer(), input.LocationID, string(input.Method), total, cashdrawer.Ref{Type: "SALE", ID: number})
		if errors.Is(err, cashdrawer.ErrNoOpenSession) {
			return nil
		}
		return err
	case MethodCredit:
		return s.invoiceRemainder(ctx, tx, input, saleID, number, total)
	case MethodPartial:
		if err := s.postDrawerCash(ctx, tx, input.LocationID, input.Tendered, number); err != nil {
			return err
		}
		return s.invoiceRemainder(ctx, tx, input, saleID, number, total.Sub(input.Tendered))
	}
	return ErrInvalidMethod
}

func (s *Service) postDrawerCash(ctx context.Context, tx TxStore, locationID int64, amount decimal.Decimal, number string) error {
	_, err := cashdrawer.PostCash(ctx, tx.Drawer(), locationID, cashdrawer.TransactionSaleCashIn, amount, cashdrawer.Ref{Type: "SALE", ID: number})
	if errors.Is(err, cashdrawer.ErrNoOpenSession) {
		return nil
	}
	return err
}

// invoiceRemainder books the unpaid remainder on the customer's credit
// ledger and issues the matching invoice. ApplyCredit enforces the limit; a
// rejection rolls back the whole checkout.
func (s *Service) invoiceRemainder(ctx context.Context, tx TxStore, input CheckoutInput, saleID int64, number string, remainder decimal.Decimal) error {
	if _, err := credit.ApplyCredit(ctx, tx.Credit(), input.CustomerID, remainder, credit.Ref{Type: "SALE", ID: number}); err != nil {
		return err
	}
	alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeyInvoice, "INV")
	if err != nil {
		return err
	}
	invoiceID, err := tx.Credit().InsertInvoice(ctx, credit.Invoice{
		OrgID:      input.OrgID,
		Number:     numbering.Format(alloc),
		CustomerID: input.CustomerID,
		SaleID:     saleID,
		Total:      remainder,
		BalanceDue: remainder,
		Status:     credit.InvoiceSent,
		DueAt:      time.Now().UTC().AddDate(0, 0, invoiceDueDays),
	})
	if err != nil {
		return err
	}
	return tx.SetInvoice(ctx, saleID, invoiceID)
}

// GetSale loads one sale with items.
func (s *Service) GetSale(ctx context.Context, saleID int64) (Sale, error) {
	return s.repo.GetSale(ctx, saleID)
}

// ListSales pages sales for a location, newest first.
func (s *Service) ListSales(ctx context.Context, orgID, locationID int64, limit, offset int) ([]Sale, error) {
	return s.repo.ListSales(ctx, orgID, locationID, limit, offset)
}

func (s *Service) recordAudit(ctx context.Context, saleID int64, input CheckoutInput) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    input.OrgID,
		ActorID:  input.CashierID,
		Action:   "sale:checkout",
		Entity:   "sale",
		EntityID: fmt.Sprintf("%d", saleID),
		Meta: map[string]any{
			"method":      string(input.Method),
			"location_id": input.LocationID,
			"customer_id": input.CustomerID,
			"lines":       len(input.Lines),
		},
	})
}
