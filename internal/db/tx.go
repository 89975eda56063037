package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kuitang/notebook/internal/obs"
	"github.com/kuitang/notebook/internal/store"
)

// executor is implemented by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

// conn returns the transaction stored in ctx, or the pool.
func (s *Store) conn(ctx context.Context) executor {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

// ExecTx runs fn inside a transaction. Nested calls join the outer transaction.
func (s *Store) ExecTx(ctx context.Context, fn store.TxFn) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Rollback after a successful commit is a no-op returning sql.ErrTxDone.
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			obs.From(ctx).Warn("rollback failed", "pkg", "db", "error", err)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
