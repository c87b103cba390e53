// Package flsql holds the connection plumbing shared by the SQL based store drivers.
package flsql

import (
	"context"
	"database/sql"
	"io"

	"go.llib.dev/aggregate/port/comproto"
)

// Connection represent an open connection.
// Connection will respect the transaction state in the received context.Context.
type Connection interface {
	comproto.OnePhaseCommitProtocol
	Queryable
	io.Closer
}

type Queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
}

type Result interface {
	// RowsAffected returns the number of rows affected by an
	// update, insert, or delete. Not every database or database
	// driver may support this.
	RowsAffected() (int64, error)
}

type Rows interface {
	// Closer is the interface that wraps the basic Close method.
	io.Closer
	// Err returns any error that occurred while reading.
	Err() error
	// Next prepares the next row for reading. It returns true if there is another
	// row and false if no more rows are available.
	Next() bool
	// Scan reads the values from the current row into dest values positionally.
	Scan(dest ...any) error
	// Columns returns the column names of the result set.
	Columns() ([]string, error)
}

type Row interface {
	// Scan works the same as Rows. with the following exceptions. If no
	// rows were found it returns errNoRows. If multiple rows are returned it
	// ignores all but the first.
	Scan(dest ...any) error
}

type QueryableAdapter struct {
	ExecFunc     func(ctx context.Context, query string, args ...any) (Result, error)
	QueryFunc    func(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, query string, args ...any) Row
}

func (a QueryableAdapter) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return a.ExecFunc(ctx, query, args...)
}

func (a QueryableAdapter) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	return a.QueryFunc(ctx, query, args...)
}

func (a QueryableAdapter) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return a.QueryRowFunc(ctx, query, args...)
}

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryableSQL turns a *sql.DB or a *sql.Tx into a Queryable.
func QueryableSQL[SQLQ sqlQueryable](q SQLQ) Queryable {
	return QueryableAdapter{
		ExecFunc: func(ctx context.Context, query string, args ...any) (Result, error) {
			return q.ExecContext(ctx, query, args...)
		},
		QueryFunc: func(ctx context.Context, query string, args ...any) (Rows, error) {
			rows, err := q.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, err
			}
			return rows, nil
		},
		QueryRowFunc: func(ctx context.Context, query string, args ...any) Row {
			return q.QueryRowContext(ctx, query, args...)
		},
	}
}
