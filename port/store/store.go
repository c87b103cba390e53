// Package store defines the contract between the aggregate mapper and the persistence driver.
//
// A driver stores flat rows grouped by table.
// It knows nothing about aggregates, ownership or associations,
// and only has to honour the CRUD semantics described on Driver.
package store

import (
	"context"

	"go.llib.dev/aggregate/pkg/errorkit"
)

const (
	ErrNotFound     errorkit.Error = "store: row not found"
	ErrInvalidTable errorkit.Error = "store: invalid table name"
)

// ID is an identifier value as the driver and the domain exchange it.
// An ID is absent when it is nil or holds the zero value of its type.
type ID = any

// Values hold the column values of a row, keyed by column name.
// The identifier column is not part of Values.
type Values map[string]any

// Row is the persisted representation of a single domain object.
type Row struct {
	ID     ID
	Values Values
}

// Clone makes a copy of the row which can be modified without affecting the original.
func (r Row) Clone() Row {
	vs := make(Values, len(r.Values))
	for k, v := range r.Values {
		vs[k] = v
	}
	return Row{ID: r.ID, Values: vs}
}

type KeyAllocator interface {
	// PrimaryKeys reserves n unique identifiers for the given table.
	PrimaryKeys(ctx context.Context, table string, n int) ([]ID, error)
}

type Driver interface {
	KeyAllocator
	// Insert stores the rows, each carrying an already allocated identifier.
	Insert(ctx context.Context, table string, rows []Row) error
	// Update replaces the values of existing rows.
	// When a row is not present in the table, ErrNotFound is returned.
	Update(ctx context.Context, table string, rows []Row) error
	// DeleteByIDs removes the rows with the given identifiers.
	// Unknown identifiers are ignored.
	DeleteByIDs(ctx context.Context, table string, ids []ID) error
	// FindByIDs returns the rows for the given identifiers.
	// Unknown identifiers are skipped.
	FindByIDs(ctx context.Context, table string, ids []ID) ([]Row, error)
	// FindBy returns the rows whose columns are equal to the given values.
	// A nil value matches a NULL or missing column.
	// Rows are returned in the store's natural order, which is creation order for sequential keys.
	FindBy(ctx context.Context, table string, where Values) ([]Row, error)
}
