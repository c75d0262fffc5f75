package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// txAttempts bounds replays of a transaction that lost a serialization
// conflict.
const txAttempts = 3

// WithTx runs fn in a REPEATABLE READ transaction and commits when fn
// returns nil. Serialization failures and deadlocks replay fn, so fn must
// not have side effects outside tx.
func WithTx(ctx context.Context, pool Pool, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = runTx(ctx, pool, fn)
		if err == nil || !isRetryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("platform/db: gave up after %d attempts: %w", txAttempts, err)
}

func runTx(ctx context.Context, pool Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	return nil
}
