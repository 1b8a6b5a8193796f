package credit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetCustomer(ctx context.Context, customerID int64) (Customer, error)
	ListCustomers(ctx context.Context, orgID int64, limit, offset int) ([]Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	Transactions(ctx context.Context, customerID int64, limit int) ([]Transaction, error)
	Invoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone credit operations. Checkout and returns
// drive ApplyCredit/ApplyAdjustment inside their own transactions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CustomerView is a customer with the derived credit status.
type CustomerView struct {
	Customer
	Status Status `json:"status"`
}

// CreateCustomer registers a customer with a credit limit and zero balance.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (CustomerView, error) {
	if c.Name == "" {
		return CustomerView{}, fmt.Errorf("%w: name required", shared.ErrValidation)
	}
	if c.CreditLimit.IsNegative() {
		return CustomerView{}, fmt.Errorf("%w: credit limit cannot be negative", shared.ErrValidation)
	}
	id, err := s.repo.CreateCustomer(ctx, c)
	if err != nil {
		return CustomerView{}, err
	}
	return s.GetCustomer(ctx, id)
}

// GetCustomer loads a customer and derives their credit status.
func (s *Service) GetCustomer(ctx context.Context, customerID int64) (CustomerView, error) {
	c, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return CustomerView{}, err
	}
	return CustomerView{Customer: c, Status: StatusOf(c.CurrentBalance, c.CreditLimit)}, nil
}

// ListCustomers pages customers with derived statuses.
func (s *Service) ListCustomers(ctx context.Context, orgID int64, limit, offset int) ([]CustomerView, error) {
	customers, err := s.repo.ListCustomers(ctx, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	views := make([]CustomerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, CustomerView{Customer: c, Status: StatusOf(c.CurrentBalance, c.CreditLimit)})
	}
	return views, nil
}

// PaymentInput describes money received from a customer.
type PaymentInput struct {
	CustomerID int64
	Amount     decimal.Decimal
	Method     string
	Reference  string
	ActorID    int64
}

// RecordPayment applies a payment FIFO across the customer's open invoices
// and decreases the balance, all in one transaction.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (PaymentResult, error) {
	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		result, err = ApplyPayment(ctx, tx, input.CustomerID, input.Amount, input.Method, input.Reference)
		return err
	})
	if err != nil {
		return PaymentResult{}, err
	}
	s.recordAudit(ctx, "credit:payment", input.CustomerID, input.ActorID, map[string]any{
		"amount": input.Amount, "method": input.Method, "reference": input.Reference,
	})
	return result, nil
}

// AdjustmentInput describes a manual balance correction.
type AdjustmentInput struct {
	CustomerID int64
	Amount     decimal.Decimal // signed
	Reason     string
	ActorID    int64
}

// Adjust moves a customer balance without cash movement.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) error {
	if input.Reason == "" {
		return fmt.Errorf("%w: reason required", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		_, err := ApplyAdjustment(ctx, tx, input.CustomerID, input.Amount, Ref{Type: "MANUAL", ID: input.Reason})
		return err
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "credit:adjust", input.CustomerID, input.ActorID, map[string]any{
		"amount": input.Amount, "reason": input.Reason,
	})
	return nil
}

// Ledger lists a customer's transaction trail oldest first.
func (s *Service) Ledger(ctx context.Context, customerID int64, limit int) ([]Transaction, error) {
	return s.repo.Transactions(ctx, customerID, limit)
}

// ListInvoices lists a customer's invoices newest first.
func (s *Service) ListInvoices(ctx context.Context, customerID int64, limit int) ([]Invoice, error) {
	return s.repo.Invoices(ctx, customerID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, customerID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    shared.OrgFromContext(ctx).ID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "customer",
		EntityID: fmt.Sprintf("%d", customerID),
		Meta:     meta,
	})
}
