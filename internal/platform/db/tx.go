package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTxTimeout bounds every multi-step transaction. A transaction that
// cannot acquire its row locks within this window aborts with no partial effect.
const DefaultTxTimeout = 15 * time.Second

// ErrSerializationConflict indicates the transaction lost a concurrency race.
// It is the only error callers may retry without inspecting side effects.
var ErrSerializationConflict = errors.New("platform/db: serialization conflict, retry")

// WithTx executes fn inside a RepeatableRead transaction with a bounded timeout.
// Serialization and deadlock failures are mapped to ErrSerializationConflict.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapConflict(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// mapConflict normalises transient Postgres contention errors.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return fmt.Errorf("%w: %s", ErrSerializationConflict, pgErr.Message)
		}
	}
	return err
}
