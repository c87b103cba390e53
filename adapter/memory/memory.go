// Package memory is an in-memory store.Driver with nested, context carried transactions.
// It is meant for tests and for prototyping aggregates before a real database is wired in.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/pkg/keykit"
	"go.llib.dev/aggregate/port/store"
)

const (
	ErrDuplicateKey errorkit.Error = "memory: duplicate key"
	ErrMissingID    errorkit.Error = "memory: missing id"

	errTxDone errorkit.Error = "memory: transaction already done"
	errNoTx   errorkit.Error = "memory: no transaction in context"
)

func NewMemory() *Memory {
	return &Memory{}
}

// Memory is a store.Driver which keeps its tables in memory.
type Memory struct {
	// Keys [optional] allocates the primary keys of new rows.
	//
	// Default: an int64 sequence per table
	Keys store.KeyAllocator

	m      sync.Mutex
	tables map[string]memoryTable
	seq    int64

	keys keykit.Sequence
	ns   struct {
		init  sync.Once
		value string
	}
}

var _ store.Driver = (*Memory)(nil)

type memoryTable map[string]record

// record is a stored row with its insertion sequence, which gives the natural order of the table.
type record struct {
	Seq int64
	Row store.Row
}

type memoryActions interface {
	all(table string) memoryTable
	lookup(table, key string) (record, bool)
	set(table, key string, r record)
	del(table, key string) bool
}

func keyOf(id store.ID) string {
	k := store.IDKey(id)
	return fmt.Sprintf("%T:%v", k, k)
}

func (m *Memory) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if table == "" {
		return nil, store.ErrInvalidTable
	}
	if m.Keys != nil {
		return m.Keys.PrimaryKeys(ctx, table, n)
	}
	return m.keys.PrimaryKeys(ctx, table, n)
}

func (m *Memory) Insert(ctx context.Context, table string, rows []store.Row) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	a := m.actions(ctx)
	for _, row := range rows {
		if store.IsAbsentID(row.ID) {
			return ErrMissingID.F("%s row has no identifier", table)
		}
		key := keyOf(row.ID)
		if _, ok := a.lookup(table, key); ok {
			return ErrDuplicateKey.F("%s: %v", table, row.ID)
		}
		a.set(table, key, record{Seq: atomic.AddInt64(&m.seq, 1), Row: row.Clone()})
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, table string, rows []store.Row) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	a := m.actions(ctx)
	for _, row := range rows {
		key := keyOf(row.ID)
		prev, ok := a.lookup(table, key)
		if !ok {
			return store.ErrNotFound.F("%s row not found by id: %v", table, row.ID)
		}
		a.set(table, key, record{Seq: prev.Seq, Row: row.Clone()})
	}
	return nil
}

func (m *Memory) DeleteByIDs(ctx context.Context, table string, ids []store.ID) error {
	if err := m.check(ctx, table); err != nil {
		return err
	}
	a := m.actions(ctx)
	for _, id := range ids {
		a.del(table, keyOf(id))
	}
	return nil
}

func (m *Memory) FindByIDs(ctx context.Context, table string, ids []store.ID) ([]store.Row, error) {
	if err := m.check(ctx, table); err != nil {
		return nil, err
	}
	a := m.actions(ctx)
	var out []store.Row
	for _, id := range ids {
		if r, ok := a.lookup(table, keyOf(id)); ok {
			out = append(out, r.Row.Clone())
		}
	}
	return out, nil
}

func (m *Memory) FindBy(ctx context.Context, table string, where store.Values) ([]store.Row, error) {
	if err := m.check(ctx, table); err != nil {
		return nil, err
	}
	var rs []record
	for _, r := range m.actions(ctx).all(table) {
		if store.Match(r.Row.Values, where) {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Seq < rs[j].Seq })
	out := make([]store.Row, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Row.Clone())
	}
	return out, nil
}

// Len returns the number of rows in the table.
func (m *Memory) Len(ctx context.Context, table string) int {
	return len(m.actions(ctx).all(table))
}

func (m *Memory) check(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if table == "" {
		return store.ErrInvalidTable
	}
	return nil
}

func (m *Memory) actions(ctx context.Context) memoryActions {
	if tx, ok := m.LookupTx(ctx); ok && !tx.done {
		return tx
	}
	return m
}

func (m *Memory) all(table string) memoryTable {
	m.m.Lock()
	defer m.m.Unlock()
	var vs = make(memoryTable)
	for k, v := range m.table(table) {
		vs[k] = v
	}
	return vs
}

func (m *Memory) lookup(table, key string) (record, bool) {
	m.m.Lock()
	defer m.m.Unlock()
	r, ok := m.table(table)[key]
	return r, ok
}

func (m *Memory) set(table, key string, r record) {
	m.m.Lock()
	defer m.m.Unlock()
	m.table(table)[key] = r
}

func (m *Memory) del(table, key string) bool {
	m.m.Lock()
	defer m.m.Unlock()
	t := m.table(table)
	if _, ok := t[key]; !ok {
		return false
	}
	delete(t, key)
	return true
}

func (m *Memory) table(name string) memoryTable {
	if m.tables == nil {
		m.tables = make(map[string]memoryTable)
	}
	if _, ok := m.tables[name]; !ok {
		m.tables[name] = make(memoryTable)
	}
	return m.tables[name]
}

var nsSerial int64

func (m *Memory) getNS() string {
	m.ns.init.Do(func() { m.ns.value = strconv.FormatInt(atomic.AddInt64(&nsSerial, 1), 10) })
	return m.ns.value
}
