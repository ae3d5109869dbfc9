package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxBeginner is the slice of pgxpool.Pool the transaction helpers need.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx executes a function within a transaction using the RepeatableRead
// isolation level.
func WithTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	return withTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, fn)
}

// serializableAttempts bounds the retry loop; under SSI the re-run reads the
// committed winner's state, so one retry normally settles it.
const serializableAttempts = 3

// WithSerializableTx executes a function under Serializable isolation,
// re-running it when Postgres aborts the commit with a serialization failure.
// The last-administrator guard uses this so its count-then-write cannot
// interleave with a concurrent demotion: the losing transaction is retried
// and its guard then sees the winner's write. A failure that survives every
// attempt is returned carrying SQLSTATE 40001 for the HTTP layer to map to a
// conflict.
func WithSerializableTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = withTx(ctx, pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if !IsSerializationFailure(err) {
			return err
		}
	}
	return err
}

// IsSerializationFailure reports whether the error carries SQLSTATE 40001.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func withTx(ctx context.Context, pool TxBeginner, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
