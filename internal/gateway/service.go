package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/credit"
	"github.com/meridian-retail/meridian/internal/shared"
)

var (
	// ErrBadSignature rejects callbacks whose HMAC does not match the body.
	ErrBadSignature = errors.New("gateway: callback signature mismatch")
	// ErrUnknownEvent indicates an event type the core does not process.
	ErrUnknownEvent = errors.New("gateway: unhandled event type")
)

// CreditPort is the slice of the credit service the gateway needs.
type CreditPort interface {
	RecordPayment(ctx context.Context, input credit.PaymentInput) (credit.PaymentResult, error)
}

// ClientPort abstracts the outbound gateway API.
type ClientPort interface {
	Initialize(ctx context.Context, input InitializeInput) (Authorization, error)
}

// Service turns gateway callbacks into credit ledger payments.
type Service struct {
	logger *slog.Logger
	client ClientPort
	credit CreditPort
	secret string
}

// NewService builds Service. secret verifies callback signatures and must
// match the key the client authenticates with.
func NewService(logger *slog.Logger, client ClientPort, creditSvc CreditPort, secret string) *Service {
	return &Service{logger: logger, client: client, credit: creditSvc, secret: secret}
}

// InitializePayment registers a payment intent for a customer's outstanding
// balance and returns the authorization URL to hand to the payer.
func (s *Service) InitializePayment(ctx context.Context, customerID int64, amount decimal.Decimal, currency, email string) (Authorization, error) {
	if !amount.IsPositive() {
		return Authorization{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	reference := fmt.Sprintf("CUST-%d-%s", customerID, uuid.NewString())
	auth, err := s.client.Initialize(ctx, InitializeInput{
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
		Email:     email,
	})
	if err != nil {
		return Authorization{}, fmt.Errorf("gateway: initialize: %w", err)
	}
	s.logger.Info("gateway payment initialized",
		slog.Int64("customer_id", customerID),
		slog.String("reference", auth.Reference))
	return auth, nil
}

// event is the callback envelope the gateway posts.
type event struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		Metadata  struct {
			CustomerID int64 `json:"customer_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// HandleCallback verifies and applies one gateway callback. A successful
// charge becomes a GATEWAY payment on the customer's credit ledger, allocated
// FIFO like any other payment. Events other than charge.success are
// acknowledged without effect.
func (s *Service) HandleCallback(ctx context.Context, payload []byte, signature string) error {
	if !VerifySignature(s.secret, payload, signature) {
		return ErrBadSignature
	}
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("gateway: decode callback: %w", err)
	}
	if ev.Event != "charge.success" {
		s.logger.Debug("gateway event ignored", slog.String("event", ev.Event))
		return nil
	}
	if ev.Data.Metadata.CustomerID == 0 {
		return fmt.Errorf("%w: callback %s has no customer", shared.ErrValidation, ev.Data.Reference)
	}
	_, err := s.credit.RecordPayment(ctx, credit.PaymentInput{
		CustomerID: ev.Data.Metadata.CustomerID,
		Amount:     ev.Data.Amount,
		Method:     "GATEWAY",
		Reference:  ev.Data.Reference,
	})
	if err != nil {
		return fmt.Errorf("gateway: apply payment %s: %w", ev.Data.Reference, err)
	}
	s.logger.Info("gateway payment reconciled",
		slog.Int64("customer_id", ev.Data.Metadata.CustomerID),
		slog.String("reference", ev.Data.Reference))
	return nil
}
