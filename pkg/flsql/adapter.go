package flsql

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/pkg/logger"
	"go.llib.dev/aggregate/pkg/logging"
)

const ErrNoTx errorkit.Error = "no transaction present in the current context"

// ConnectionAdapter is generic implementation to handle query interactions which are aware of trasnactions within the context.
//
// Example:
//
//	type Connection = flsql.ConnectionAdapter[sql.DB, sql.Tx]
type ConnectionAdapter[DB, TX any] struct {
	// DB is the underlying Database type to access.
	DB *DB
	// TxAdapter provides the mapping for a native driver specific TX type to be usable as a Queryable.
	TxAdapter func(tx *TX) Queryable
	// DBAdapter provides the mapping for a native driver specific DB type to be usable as a Queryable.
	DBAdapter func(db *DB) Queryable
	// Begin is a function that must create a new transaction that is also a connection.
	Begin func(ctx context.Context, db *DB) (*TX, error)
	// Commit is a function that must commit a given transaction.
	Commit func(ctx context.Context, tx *TX) error
	// Rollback is a function that must rollback a given transaction.
	Rollback func(ctx context.Context, tx *TX) error

	// OnClose [optional] is used to implement the io.Closer.
	// If The ConnectionAdapter needs to close something,
	// then this function can be used for that.
	//
	// default: DB.Close()
	OnClose func() error
	// ErrTxDone is the error returned when the transaction is already finished.
	// ErrTxDone is an optional field.
	//
	// default: sql.ErrTxDone
	ErrTxDone error
}

func (c ConnectionAdapter[DB, TX]) Close() error {
	if c.OnClose != nil {
		return c.OnClose()
	}
	if closer, ok := any(c.DB).(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type txInContext[TX any] struct {
	parent *txInContext[TX]
	tx     *TX
	done   bool
	cancel func()
}

type ctxKeyTx[TX any] struct{}

// BeginTx starts a transaction, or a nested one that joins the transaction already present in the context.
// Only the outermost transaction talks to the database.
func (c ConnectionAdapter[DB, TX]) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	tx := &txInContext[TX]{}
	if ptx, ok := c.lookupTx(ctx); ok {
		tx.parent = ptx
	}
	if tx.parent == nil {
		transaction, err := c.Begin(ctx, c.DB)
		if err != nil {
			return nil, err
		}
		tx.tx = transaction
	}
	ctx, cancel := context.WithCancel(ctx)
	tx.cancel = cancel
	return context.WithValue(ctx, ctxKeyTx[TX]{}, tx), nil
}

func (c ConnectionAdapter[DB, TX]) CommitTx(ctx context.Context) error {
	tx, ok := c.lookupTx(ctx)
	if !ok {
		return ErrNoTx
	}
	if tx.done {
		return fmt.Errorf("CommitTx: %w", c.txDoneErr())
	}
	tx.done = true
	defer tx.cancel()
	if tx.tx == nil {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return errorkit.Merge(err, c.Rollback(context.WithoutCancel(ctx), tx.tx))
	}
	return c.Commit(ctx, tx.tx)
}

// RollbackTx rolls back the whole transaction chain, nested transactions included.
func (c ConnectionAdapter[DB, TX]) RollbackTx(ctx context.Context) error {
	tx, ok := c.lookupTx(ctx)
	if !ok {
		return ErrNoTx
	}
	if tx.done {
		return c.txDoneErr()
	}
	for {
		tx.done = true
		// deferred in the loop on purpose, contexts are cancelled after the rollback call
		defer tx.cancel()
		if tx.tx != nil {
			return errorkit.Merge(c.Rollback(context.WithoutCancel(ctx), tx.tx), ctx.Err())
		}
		if tx.parent == nil {
			return nil
		}
		tx = tx.parent
	}
}

// LookupTx returns the driver level transaction of the context, if there is any.
func (c ConnectionAdapter[DB, TX]) LookupTx(ctx context.Context) (*TX, bool) {
	tx, ok := c.lookupRootTx(ctx)
	if !ok {
		return nil, false
	}
	return tx.tx, true
}

func (c ConnectionAdapter[DB, TX]) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	conn := c.q(ctx)
	c.debugLogExec(ctx, conn, "ExecContext", query, args)
	return conn.ExecContext(ctx, query, args...)
}

func (c ConnectionAdapter[DB, TX]) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn := c.q(ctx)
	c.debugLogExec(ctx, conn, "QueryContext", query, args)
	return conn.QueryContext(ctx, query, args...)
}

func (c ConnectionAdapter[DB, TX]) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	conn := c.q(ctx)
	c.debugLogExec(ctx, conn, "QueryRowContext", query, args)
	return conn.QueryRowContext(ctx, query, args...)
}

func (c ConnectionAdapter[DB, TX]) q(ctx context.Context) Queryable {
	if c.TxAdapter == nil {
		panic("flsql.ConnectionAdapter implementation error, missing TxAdapter")
	}
	if tx, ok := c.lookupRootTx(ctx); ok {
		return c.TxAdapter(tx.tx)
	}
	if c.DBAdapter == nil {
		panic("flsql.ConnectionAdapter implementation error, missing DBAdapter")
	}
	return c.DBAdapter(c.DB)
}

func (c ConnectionAdapter[DB, TX]) lookupTx(ctx context.Context) (*txInContext[TX], bool) {
	tx, ok := ctx.Value(ctxKeyTx[TX]{}).(*txInContext[TX])
	return tx, ok
}

func (c ConnectionAdapter[DB, TX]) lookupRootTx(ctx context.Context) (*txInContext[TX], bool) {
	tx, ok := c.lookupTx(ctx)
	if !ok {
		return nil, false
	}
	for tx.parent != nil {
		tx = tx.parent
	}
	return tx, true
}

func (c ConnectionAdapter[DB, TX]) txDoneErr() error {
	if c.ErrTxDone != nil {
		return c.ErrTxDone
	}
	return sql.ErrTxDone
}

func (c ConnectionAdapter[DB, TX]) debugLogExec(ctx context.Context, conn Queryable, method string, query string, args []any) {
	logger.Debug(ctx, "QueryableAdapter", logging.LazyDetail(func() logging.Detail {
		fs := logging.Fields{
			"method":     method,
			"connection": fmt.Sprintf("%T", conn),
			"query":      query,
			"args":       args,
		}
		if _, ok := c.lookupTx(ctx); ok {
			fs["in-transaction"] = ok
		}
		return fs
	}))
}

// SQLConnectionAdapter is a built-in ConnectionAdapter usage for the stdlib sql.DB/sql.Tx.
// This can be used with any sql driver that integartes with the sql stdlib.
func SQLConnectionAdapter(db *sql.DB) ConnectionAdapter[sql.DB, sql.Tx] {
	return ConnectionAdapter[sql.DB, sql.Tx]{
		DB: db,

		DBAdapter: QueryableSQL[*sql.DB],
		TxAdapter: QueryableSQL[*sql.Tx],

		Begin: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},

		Commit: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Commit()
		},

		Rollback: func(ctx context.Context, tx *sql.Tx) error {
			return tx.Rollback()
		},
	}
}
