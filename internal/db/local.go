package db

import (
	"context"
	"sync"
)

// LocalTxManager is the in-process counterpart of PgxTxManager, used by the
// memory repositories. A single mutex serializes every transaction and every
// standalone statement, and each transaction keeps an undo journal that is
// replayed backwards when fn fails, so writes stay all-or-nothing.
type LocalTxManager struct {
	mu sync.Mutex
}

func NewLocalTxManager() *LocalTxManager {
	return &LocalTxManager{}
}

type localTxKey struct{}

type localTx struct {
	undo []func()
}

func (m *LocalTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(localTxKey{}).(*localTx); ok {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &localTx{}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(context.WithValue(ctx, localTxKey{}, tx))
}

// Lock guards a single statement. Inside a transaction the mutex is already
// held, so the returned unlock is a no-op.
func (m *LocalTxManager) Lock(ctx context.Context) (unlock func()) {
	if _, ok := ctx.Value(localTxKey{}).(*localTx); ok {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// OnRollback records how to undo a write made under ctx.
// Outside a transaction a statement is final and nothing is recorded.
func OnRollback(ctx context.Context, undo func()) {
	if tx, ok := ctx.Value(localTxKey{}).(*localTx); ok {
		tx.undo = append(tx.undo, undo)
	}
}

func (tx *localTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}
