package db

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staydrive/inventory-engine/internal/pkg/apperror"
	"github.com/staydrive/inventory-engine/internal/pkg/log"
)

// ErrConcurrentUpdate is returned once the retry budget for a contended
// transaction is exhausted. Clients may retry the whole request.
var ErrConcurrentUpdate = apperror.NewRetryable(http.StatusConflict, "resource is busy, please retry")

// Querier is the statement surface shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs fn inside one transaction. Repositories called with the
// ctx handed to fn join that transaction. Nested calls join the outer one.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgxTxKey struct{}

// Conn returns the transaction bound to ctx, or the pool when there is none.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(pgxTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries a pgx transaction.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(pgxTxKey{}).(pgx.Tx)
	return ok
}

// PgxTxManager runs READ COMMITTED transactions and retries the whole
// function on deadlocks, serialization failures and lock timeouts.
type PgxTxManager struct {
	pool        *pgxpool.Pool
	maxAttempts int
	lockTimeout time.Duration
}

func NewPgxTxManager(pool *pgxpool.Pool, maxAttempts int, lockTimeout time.Duration) *PgxTxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &PgxTxManager{
		pool:        pool,
		maxAttempts: maxAttempts,
		lockTimeout: lockTimeout,
	}
}

func (m *PgxTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		log.Warn(ctx, "transaction contended",
			log.Int("attempt", attempt), log.Err("err", err))

		// Short jittered pause so competing requests do not retry in lockstep.
		pause := time.Duration(10+rand.Intn(40)) * time.Millisecond * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return ErrConcurrentUpdate
}

func (m *PgxTxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout failed: %w", err)
		}
	}

	if err = fn(context.WithValue(ctx, pgxTxKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction failed: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a transient contention failure.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
		return true
	}
	return false
}

// IsCheckViolation reports whether err was raised by a CHECK constraint.
func IsCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}

// IsForeignKeyViolation reports whether err was raised by a missing parent row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
