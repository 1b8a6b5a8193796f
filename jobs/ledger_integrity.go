package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-retail/meridian/internal/ledger"
)

// LedgerIntegrity re-verifies balance chaining on the customer credit ledgers
// and the drawer cash chains. A broken chain means a write bypassed the
// ledger helpers; the scan reports it, it never repairs.
type LedgerIntegrity struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

// Handle runs the integrity scan.
func (s *LedgerIntegrity) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	broken := 0
	if n, err := s.verifyCreditLedgers(ctx); err != nil {
		return err
	} else {
		broken += n
	}
	if n, err := s.verifyDrawerChains(ctx); err != nil {
		return err
	} else {
		broken += n
	}
	if broken > 0 {
		return fmt.Errorf("jobs: %d broken ledger chains", broken)
	}
	s.Logger.Info("ledger integrity verified", slog.String("job", TaskLedgerIntegrity))
	return nil
}

// Customer chains open at zero: the first entry is the first credit sale.
func (s *LedgerIntegrity) verifyCreditLedgers(ctx context.Context) (int, error) {
	rows, err := s.Pool.Query(ctx, `SELECT DISTINCT customer_id FROM credit_transactions ORDER BY customer_id`)
	if err != nil {
		return 0, fmt.Errorf("jobs: list credit ledgers: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	broken := 0
	for _, id := range ids {
		entries, err := s.loadEntries(ctx, `SELECT transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at
FROM credit_transactions WHERE customer_id=$1 ORDER BY id ASC`, id)
		if err != nil {
			return 0, err
		}
		if err := ledger.VerifyChain(decimal.Zero, entries); err != nil {
			broken++
			s.Logger.Error("credit ledger chain broken",
				slog.Int64("customer_id", id),
				slog.Any("error", err))
		}
	}
	return broken, nil
}

// Drawer chains open at the session's opening float.
func (s *LedgerIntegrity) verifyDrawerChains(ctx context.Context) (int, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, opening_float FROM drawer_sessions ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("jobs: list drawer sessions: %w", err)
	}
	defer rows.Close()
	type session struct {
		id      int64
		opening decimal.Decimal
	}
	var sessions []session
	for rows.Next() {
		var sess session
		if err := rows.Scan(&sess.id, &sess.opening); err != nil {
			return 0, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	broken := 0
	for _, sess := range sessions {
		entries, err := s.loadEntries(ctx, `SELECT transaction_type, amount, balance_before, balance_after, ref_type, ref_id, occurred_at
FROM drawer_transactions WHERE session_id=$1 ORDER BY id ASC`, sess.id)
		if err != nil {
			return 0, err
		}
		if err := ledger.VerifyChain(sess.opening, entries); err != nil {
			broken++
			s.Logger.Error("drawer cash chain broken",
				slog.Int64("session_id", sess.id),
				slog.Any("error", err))
		}
	}
	return broken, nil
}

func (s *LedgerIntegrity) loadEntries(ctx context.Context, query string, id int64) ([]ledger.Entry, error) {
	rows, err := s.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("jobs: load entries: %w", err)
	}
	defer rows.Close()
	var entries []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.Type, &e.Amount, &e.BalanceBefore, &e.BalanceAfter, &e.RefType, &e.RefID, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
