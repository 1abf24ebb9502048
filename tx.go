package fluentlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already finished")

// Tx is an in-progress transaction. It exposes the same statement surface
// as DB. Nested transactions are implemented with SQLite SAVEPOINTs.
type Tx struct {
	db        *DB
	tx        *sql.Tx
	savepoint string
	done      bool
}

// Begin starts a transaction.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	atomic.AddInt64(&db.stats.txBegun, 1)
	return &Tx{db: db, tx: tx}, nil
}

// newSavepointName returns a savepoint identifier unique to this process.
func newSavepointName() string {
	return "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Begin starts a nested transaction backed by a SAVEPOINT. Committing it
// releases the savepoint; rolling it back rewinds to it, leaving the outer
// transaction usable.
func (tx *Tx) Begin(ctx context.Context) (*Tx, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	name := newSavepointName()
	if _, err := tx.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}
	atomic.AddInt64(&tx.db.stats.txBegun, 1)
	return &Tx{db: tx.db, tx: tx.tx, savepoint: name}, nil
}

// Commit commits the transaction, or releases its savepoint when nested.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	if tx.savepoint != "" {
		if _, err := tx.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+tx.savepoint); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
	} else if err := tx.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	atomic.AddInt64(&tx.db.stats.txCommitted, 1)
	return nil
}

// Rollback aborts the transaction, or rewinds to its savepoint when nested.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	if tx.savepoint != "" {
		if _, err := tx.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+tx.savepoint); err != nil {
			return fmt.Errorf("failed to rollback to savepoint: %w", err)
		}
		if _, err := tx.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+tx.savepoint); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
	} else if err := tx.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	atomic.AddInt64(&tx.db.stats.txRolledBack, 1)
	return nil
}

// Exec executes a write statement inside the transaction.
func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	if tx.done {
		return Result{}, ErrTxDone
	}
	return tx.db.exec(ctx, tx.tx, query, args)
}

// Query executes a read statement inside the transaction.
func (tx *Tx) Query(ctx context.Context, query string, args ...any) (*Cursor, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	return tx.db.query(ctx, tx.tx, query, args)
}

// QueryRow executes a read statement expected to return at most one row.
func (tx *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	if tx.done {
		return &Row{err: ErrTxDone}
	}
	bound, err := bindArgs(args)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: tx.tx.QueryRowContext(ctx, query, bound...)}
}

// Table starts a fluent query builder scoped to the transaction.
func (tx *Tx) Table(name string) *Builder {
	return newBuilder(tx.db, tx.tx, name)
}

// WithTx runs fn inside a transaction, committing when it returns nil and
// rolling back when it returns an error or panics.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
