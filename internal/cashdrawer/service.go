package cashdrawer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetSession(ctx context.Context, sessionID int64) (Session, error)
	Transactions(ctx context.Context, sessionID int64) ([]Transaction, error)
	Settlements(ctx context.Context, sessionID int64) ([]Settlement, error)
	Sessions(ctx context.Context, locationID int64, limit int) ([]Session, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates drawer session lifecycle and expenses. Checkout and
// returns drive PostCash/RecordSettlement inside their own transactions.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// OpenInput describes a session opening.
type OpenInput struct {
	OrgID        int64
	LocationID   int64
	CashierID    int64
	OpeningFloat decimal.Decimal
}

// Open starts a session with a counted opening float. Expected cash starts
// at the float. Fails with ErrSessionOpen when the location already has a
// non-closed session.
func (s *Service) Open(ctx context.Context, input OpenInput) (Session, error) {
	if input.OpeningFloat.IsNegative() {
		return Session{}, fmt.Errorf("%w: opening float cannot be negative", shared.ErrValidation)
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		id, err = tx.InsertSession(ctx, Session{
			OrgID:        input.OrgID,
			LocationID:   input.LocationID,
			CashierID:    input.CashierID,
			OpeningFloat: input.OpeningFloat,
		})
		return err
	})
	if err != nil {
		return Session{}, err
	}
	s.recordAudit(ctx, "drawer:open", id, input.CashierID, map[string]any{"opening_float": input.OpeningFloat})
	return s.repo.GetSession(ctx, id)
}

// Pause suspends an open session. Cash postings are rejected until resume.
func (s *Service) Pause(ctx context.Context, sessionID int64) error {
	return s.transition(ctx, sessionID, SessionOpen, SessionPaused)
}

// Resume reopens a paused session.
func (s *Service) Resume(ctx context.Context, sessionID int64) error {
	return s.transition(ctx, sessionID, SessionPaused, SessionOpen)
}

func (s *Service) transition(ctx context.Context, sessionID int64, from, to SessionStatus) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		session, err := tx.SessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == SessionClosed {
			return ErrSessionClosed
		}
		if session.Status != from {
			return ErrSessionNotOpen
		}
		return tx.UpdateStatus(ctx, sessionID, to)
	})
}

// CloseInput carries the physically counted drawer amount.
type CloseInput struct {
	SessionID     int64
	CountedAmount decimal.Decimal
	ActorID       int64
}

// Close finalises an OPEN session; a paused one must be resumed first.
// Discrepancy is counted minus expected; a nonzero discrepancy is recorded,
// never rejected, so shifts always end.
func (s *Service) Close(ctx context.Context, input CloseInput) (Session, error) {
	if input.CountedAmount.IsNegative() {
		return Session{}, fmt.Errorf("%w: counted amount cannot be negative", shared.ErrValidation)
	}
	var discrepancy decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		session, err := tx.SessionForUpdate(ctx, input.SessionID)
		if err != nil {
			return err
		}
		if session.Status == SessionClosed {
			return ErrSessionClosed
		}
		if session.Status != SessionOpen {
			return ErrSessionNotOpen
		}
		discrepancy = input.CountedAmount.Sub(session.ExpectedCash)
		return tx.CloseSession(ctx, session.ID, input.CountedAmount, discrepancy, time.Now().UTC())
	})
	if err != nil {
		return Session{}, err
	}
	s.recordAudit(ctx, "drawer:close", input.SessionID, input.ActorID, map[string]any{
		"counted": input.CountedAmount, "discrepancy": discrepancy,
	})
	return s.repo.GetSession(ctx, input.SessionID)
}

// ExpenseInput describes a cash disbursement from the drawer.
type ExpenseInput struct {
	OrgID       int64
	OrgCode     string
	LocationID  int64
	Category    string
	Description string
	Amount      decimal.Decimal
	ActorID     int64
}

// PostExpense disburses cash from the open session: one transaction numbers
// the expense, appends the EXPENSE_CASH_OUT chain row and rolls expected
// cash down.
func (s *Service) PostExpense(ctx context.Context, input ExpenseInput) (Expense, error) {
	if input.Category == "" {
		return Expense{}, fmt.Errorf("%w: category required", shared.ErrValidation)
	}
	var expense Expense
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		alloc, err := tx.Sequences().Next(ctx, input.OrgID, numbering.KeyExpense, numbering.ExpensePrefix(input.OrgCode))
		if err != nil {
			return err
		}
		number := numbering.Format(alloc)
		entry, err := PostCash(ctx, tx, input.LocationID, TransactionExpenseCashOut, input.Amount, Ref{Type: "EXPENSE", ID: number})
		if err != nil {
			return err
		}
		session, err := tx.OpenSessionForUpdate(ctx, input.LocationID)
		if err != nil {
			return err
		}
		expense = Expense{
			OrgID:       input.OrgID,
			SessionID:   session.ID,
			Number:      number,
			Category:    input.Category,
			Description: input.Description,
			Amount:      entry.Amount.Abs(),
			ActorID:     input.ActorID,
		}
		expense.ID, err = tx.InsertExpense(ctx, expense)
		return err
	})
	if err != nil {
		return Expense{}, err
	}
	s.recordAudit(ctx, "drawer:expense", expense.SessionID, input.ActorID, map[string]any{
		"number": expense.Number, "amount": expense.Amount, "category": expense.Category,
	})
	return expense, nil
}

// Report builds the shift summary for a session.
func (s *Service) Report(ctx context.Context, sessionID int64) (ShiftReport, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return ShiftReport{}, err
	}
	txs, err := s.repo.Transactions(ctx, sessionID)
	if err != nil {
		return ShiftReport{}, err
	}
	settlements, err := s.repo.Settlements(ctx, sessionID)
	if err != nil {
		return ShiftReport{}, err
	}
	report := ShiftReport{
		Session:      session,
		ByType:       make(map[string]decimal.Decimal),
		Settlements:  make(map[string]decimal.Decimal),
		Transactions: txs,
	}
	for _, tx := range txs {
		report.ByType[string(tx.Type)] = report.ByType[string(tx.Type)].Add(tx.Amount)
		if tx.Amount.IsPositive() {
			report.CashIn = report.CashIn.Add(tx.Amount)
		} else {
			report.CashOut = report.CashOut.Add(tx.Amount.Abs())
		}
	}
	for _, st := range settlements {
		report.Settlements[st.Method] = report.Settlements[st.Method].Add(st.Amount)
	}
	return report, nil
}

// ListSessions lists a location's sessions newest first.
func (s *Service) ListSessions(ctx context.Context, locationID int64, limit int) ([]Session, error) {
	return s.repo.Sessions(ctx, locationID, limit)
}

func (s *Service) recordAudit(ctx context.Context, action string, sessionID, actorID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    shared.OrgFromContext(ctx).ID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "drawer_session",
		EntityID: fmt.Sprintf("%d", sessionID),
		Meta:     meta,
	})
}
