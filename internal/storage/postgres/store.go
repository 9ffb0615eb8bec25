// Package postgres stores services, slots and bookings in PostgreSQL through
// a pgx pool. Queries are built with squirrel.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/slot-booking/internal/apperror"
	"github.com/hackgods/slot-booking/internal/booking"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/slot"
)

var (
	_ catalog.Repository = (*Store)(nil)
	_ slot.Store         = (*Store)(nil)
	_ booking.Repository = (*Store)(nil)
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	psql squirrel.StatementBuilderType
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InTx runs fn in a read-committed transaction. Rows read through the Tx
// for update stay locked until commit.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(ctx, &pgTx{q: tx, psql: s.psql}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapError("commit tx", err)
	}
	return nil
}

// mapError turns constraint failures into classified errors and wraps
// everything else.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperror.Wrap(err, apperror.KindConflict, op+": already exists")
		case pgerrcode.ForeignKeyViolation:
			return apperror.Wrap(err, apperror.KindConflict, op+": still referenced")
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return apperror.Wrap(err, apperror.KindConflict, op+": concurrent update, retry")
		case pgerrcode.CheckViolation, pgerrcode.InvalidDatetimeFormat, pgerrcode.DatetimeFieldOverflow:
			return apperror.Wrap(err, apperror.KindValidation, op+": invalid value")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
