package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Tx is a database transaction that collects callbacks to run once it
// has committed.
type Tx struct {
	*sql.Tx
	afterCommit []func()
}

func (tx *Tx) AfterCommit(fn func()) {
	tx.afterCommit = append(tx.afterCommit, fn)
}

type txKey struct{}

// TxFrom returns the transaction carried by ctx, if any.
func TxFrom(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// InTx runs fn inside a transaction. When ctx already carries one, fn
// joins it and its callbacks run when the outer transaction commits.
// After-commit callbacks run in registration order and never run when
// the transaction rolls back.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	if tx, ok := TxFrom(ctx); ok {
		return fn(ctx, tx)
	}

	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{Tx: sqlTx}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	for _, cb := range tx.afterCommit {
		cb()
	}
	return nil
}

// querier returns the transaction carried by ctx, or db.
func querier(ctx context.Context, db *sql.DB) sqlscan.Querier {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execerFor(ctx context.Context, db *sql.DB) execer {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return db
}
