package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx runs fn inside a single transaction. The transaction is stashed in
// the context so every repository call inside fn joins it, giving one
// consistent snapshot per unit of work. A bounded lock-wait timeout is
// applied with SET LOCAL so no statement can block indefinitely on a row
// lock. Any error from fn rolls the whole transaction back.
func WithTx(ctx context.Context, pool *pgxpool.Pool, lockTimeout time.Duration, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return MapError(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	if lockTimeout > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())); err != nil {
			return MapError(fmt.Errorf("set lock_timeout: %w", err))
		}
	}

	txCtx := context.WithValue(ctx, DBTxKey, tx)
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return MapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
