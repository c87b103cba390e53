// Package storedouble holds test doubles for the store.Driver.
package storedouble

import (
	"context"

	"go.llib.dev/aggregate/port/store"
)

// Stub wraps a store.Driver and lets the test replace any of its methods.
// Methods without an override are delegated to the embedded Driver.
type Stub struct {
	store.Driver

	PrimaryKeysFunc func(ctx context.Context, table string, n int) ([]store.ID, error)
	InsertFunc      func(ctx context.Context, table string, rows []store.Row) error
	UpdateFunc      func(ctx context.Context, table string, rows []store.Row) error
	DeleteByIDsFunc func(ctx context.Context, table string, ids []store.ID) error
	FindByIDsFunc   func(ctx context.Context, table string, ids []store.ID) ([]store.Row, error)
	FindByFunc      func(ctx context.Context, table string, where store.Values) ([]store.Row, error)
}

func (s *Stub) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if s.PrimaryKeysFunc != nil {
		return s.PrimaryKeysFunc(ctx, table, n)
	}
	return s.Driver.PrimaryKeys(ctx, table, n)
}

func (s *Stub) Insert(ctx context.Context, table string, rows []store.Row) error {
	if s.InsertFunc != nil {
		return s.InsertFunc(ctx, table, rows)
	}
	return s.Driver.Insert(ctx, table, rows)
}

func (s *Stub) Update(ctx context.Context, table string, rows []store.Row) error {
	if s.UpdateFunc != nil {
		return s.UpdateFunc(ctx, table, rows)
	}
	return s.Driver.Update(ctx, table, rows)
}

func (s *Stub) DeleteByIDs(ctx context.Context, table string, ids []store.ID) error {
	if s.DeleteByIDsFunc != nil {
		return s.DeleteByIDsFunc(ctx, table, ids)
	}
	return s.Driver.DeleteByIDs(ctx, table, ids)
}

func (s *Stub) FindByIDs(ctx context.Context, table string, ids []store.ID) ([]store.Row, error) {
	if s.FindByIDsFunc != nil {
		return s.FindByIDsFunc(ctx, table, ids)
	}
	return s.Driver.FindByIDs(ctx, table, ids)
}

func (s *Stub) FindBy(ctx context.Context, table string, where store.Values) ([]store.Row, error) {
	if s.FindByFunc != nil {
		return s.FindByFunc(ctx, table, where)
	}
	return s.Driver.FindBy(ctx, table, where)
}

// Recorder wraps a store.Driver and records the write calls made through it.
type Recorder struct {
	store.Driver

	Calls []Call
}

type Call struct {
	Method string
	Table  string
	Rows   []store.Row
	IDs    []store.ID
}

func (r *Recorder) Insert(ctx context.Context, table string, rows []store.Row) error {
	r.Calls = append(r.Calls, Call{Method: "Insert", Table: table, Rows: rows})
	return r.Driver.Insert(ctx, table, rows)
}

func (r *Recorder) Update(ctx context.Context, table string, rows []store.Row) error {
	r.Calls = append(r.Calls, Call{Method: "Update", Table: table, Rows: rows})
	return r.Driver.Update(ctx, table, rows)
}

func (r *Recorder) DeleteByIDs(ctx context.Context, table string, ids []store.ID) error {
	r.Calls = append(r.Calls, Call{Method: "DeleteByIDs", Table: table, IDs: ids})
	return r.Driver.DeleteByIDs(ctx, table, ids)
}

// Tables returns the table names of the recorded calls with the given method, in call order.
func (r *Recorder) Tables(method string) []string {
	var tables []string
	for _, c := range r.Calls {
		if c.Method == method {
			tables = append(tables, c.Table)
		}
	}
	return tables
}
