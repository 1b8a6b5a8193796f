package cashdrawer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/ledger"
	"github.com/meridian-retail/meridian/internal/numbering"
	"github.com/meridian-retail/meridian/internal/platform/db"
)

// Repository persists drawer sessions, cash transactions, settlements and
// expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// NewTxStore wraps an existing transaction so checkout and returns can post
// drawer rows inside the same commit as the sale or refund.
func NewTxStore(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

type txStore struct {
	tx pgx.Tx
}

const sessionColumns = `id, org_id, location_id, cashier_id, status, opening_float, expected_cash,
COALESCE(closing_actual, 0), COALESCE(discrepancy, 0), opened_at, closed_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.OrgID, &s.LocationID, &s.CashierID, &s.Status, &s.OpeningFloat,
		&s.ExpectedCash, &s.ClosingActual, &s.Discrepancy, &s.OpenedAt, &s.ClosedAt)
	return s, err
}

func (s *txStore) OpenSessionForUpdate(ctx context.Context, locationID int64) (Session, error) {
	session, err := scanSession(s.tx.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM drawer_sessions WHERE location_id=$1 AND status <> 'CLOSED' FOR UPDATE`, locationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoOpenSession
	}
	return session, err
}

func (s *txStore) SessionForUpdate(ctx context.Context, sessionID int64) (Session, error) {
	session, err := scanSession(s.tx.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM drawer_sessions WHERE id=$1 FOR UPDATE`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoOpenSession
	}
	return session, err
}

func (s *txStore) InsertSession(ctx context.Context, session Session) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO drawer_sessions (org_id, location_id, cashier_id, status, opening_float, expected_cash, opened_at)
VALUES ($1,$2,$3,'OPEN',$4,$4,NOW()) RETURNING id`,
		session.OrgID, session.LocationID, session.CashierID, session.OpeningFloat).Scan(&id)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// Partial unique index: one non-closed session per location.
		return 0, ErrSessionOpen
	}
	return id, err
}

func (s *txStore) UpdateStatus(ctx context.Context, sessionID int64, status SessionStatus) error {
	_, err := s.tx.Exec(ctx, `UPDATE drawer_sessions SET status=$2 WHERE id=$1`, sessionID, string(status))
	return err
}

func (s *txStore) UpdateExpectedCash(ctx context.Context, sessionID int64, expected decimal.Decimal) error {
	_, err := s.tx.Exec(ctx, `UPDATE drawer_sessions SET expected_cash=$2 WHERE id=$1`, sessionID, expected)
	return err
}

func (s *txStore) CloseSession(ctx context.Context, sessionID int64, actual, discrepancy decimal.Decimal, closedAt time.Time) error {
	_, err := s.tx.Exec(ctx, `UPDATE drawer_sessions
SET status='CLOSED', closing_actual=$2, discrepancy=$3, closed_at=$4 WHERE id=$1`,
		sessionID, actual, discrepancy, closedAt)
	return err
}

func (s *txStore) InsertTransaction(ctx context.Context, sessionID int64, entry ledger.Entry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO drawer_transactions (session_id, transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		sessionID, entry.Type, entry.Amount, entry.BalanceBefore, entry.BalanceAfter, entry.RefType, entry.RefID, entry.OccurredAt).Scan(&id)
	return id, err
}

func (s *txStore) InsertSettlement(ctx context.Context, settlement Settlement) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO drawer_session_settlements (session_id, method, amount, ref_type, ref_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		settlement.SessionID, settlement.Method, settlement.Amount, settlement.RefType, settlement.RefID, settlement.OccurredAt).Scan(&id)
	return id, err
}

func (s *txStore) Sequences() numbering.Sequencer {
	return numbering.NewTxSequencer(s.tx)
}

func (s *txStore) InsertExpense(ctx context.Context, expense Expense) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO drawer_expenses (org_id, session_id, expense_number, category, description, amount, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		expense.OrgID, expense.SessionID, expense.Number, expense.Category, expense.Description, expense.Amount, expense.ActorID).Scan(&id)
	return id, err
}

// GetSession loads one session without locking.
func (r *Repository) GetSession(ctx context.Context, sessionID int64) (Session, error) {
	session, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+`
FROM drawer_sessions WHERE id=$1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNoOpenSession
	}
	return session, err
}

// Transactions lists a session's cash chain oldest first.
func (r *Repository) Transactions(ctx context.Context, sessionID int64) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at
FROM drawer_transactions WHERE session_id=$1 ORDER BY occurred_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.RefType, &t.RefID, &t.OccurredAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// Settlements lists a session's non-cash tenders.
func (r *Repository) Settlements(ctx context.Context, sessionID int64) ([]Settlement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, session_id, method, amount, ref_type, ref_id, occurred_at
FROM drawer_session_settlements WHERE session_id=$1 ORDER BY occurred_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var settlements []Settlement
	for rows.Next() {
		var st Settlement
		if err := rows.Scan(&st.ID, &st.SessionID, &st.Method, &st.Amount, &st.RefType, &st.RefID, &st.OccurredAt); err != nil {
			return nil, err
		}
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}

// Sessions lists a location's sessions newest first.
func (r *Repository) Sessions(ctx context.Context, locationID int64, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+`
FROM drawer_sessions WHERE location_id=$1 ORDER BY opened_at DESC, id DESC LIMIT $2`, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}
