package memory

import (
	"context"
	"sync"
)

// MemoryTx is a transaction of the Memory.
// Changes are kept aside until commit, and a transaction started within another one commits into its parent.
type MemoryTx struct {
	m       sync.Mutex
	done    bool
	super   memoryActions
	changes map[string]memoryTxChanges

	cancelContext func()
}

type memoryTxChanges struct {
	Values  memoryTable
	Deleted map[string]struct{}
}

func (tx *MemoryTx) all(table string) memoryTable {
	svs := tx.super.all(table)
	tx.m.Lock()
	defer tx.m.Unlock()
	cvs := tx.getChanges(table)
	avs := make(memoryTable)
	for k, v := range svs {
		avs[k] = v
	}
	for k := range cvs.Deleted {
		delete(avs, k)
	}
	for k, v := range cvs.Values {
		avs[k] = v
	}
	return avs
}

func (tx *MemoryTx) lookup(table, key string) (record, bool) {
	tx.m.Lock()
	changes := tx.getChanges(table)
	v, ok := changes.Values[key]
	_, isDeleted := changes.Deleted[key]
	tx.m.Unlock()
	if ok {
		return v, true
	}
	if isDeleted {
		return record{}, false
	}
	return tx.super.lookup(table, key)
}

func (tx *MemoryTx) set(table, key string, r record) {
	tx.m.Lock()
	defer tx.m.Unlock()
	tx.getChanges(table).Values[key] = r
}

func (tx *MemoryTx) del(table, key string) bool {
	if _, ok := tx.lookup(table, key); !ok {
		return false
	}
	tx.m.Lock()
	defer tx.m.Unlock()
	changes := tx.getChanges(table)
	delete(changes.Values, key)
	changes.Deleted[key] = struct{}{}
	return true
}

func (tx *MemoryTx) commit() error {
	if tx.done {
		return errTxDone
	}
	tx.m.Lock()
	defer tx.m.Unlock()
	tx.done = true
	tx.cancelContext()
	for table, values := range tx.changes {
		for key := range values.Deleted {
			tx.super.del(table, key)
		}
		for key, value := range values.Values {
			tx.super.set(table, key, value)
		}
	}
	return nil
}

func (tx *MemoryTx) rollback() error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.cancelContext()
	super, ok := tx.super.(*MemoryTx)
	if !ok {
		return nil
	}
	// nested transactions roll back together with their parent
	return super.rollback()
}

func (tx *MemoryTx) getChanges(name string) memoryTxChanges {
	if tx.changes == nil {
		tx.changes = make(map[string]memoryTxChanges)
	}
	if _, ok := tx.changes[name]; !ok {
		tx.changes[name] = memoryTxChanges{
			Values:  make(memoryTable),
			Deleted: make(map[string]struct{}),
		}
	}
	return tx.changes[name]
}

type ctxKeyMemoryTx struct{ NS string }

func (m *Memory) ctxKeyMemoryTx() ctxKeyMemoryTx {
	return ctxKeyMemoryTx{NS: m.getNS()}
}

func (m *Memory) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	var super memoryActions = m
	if tx, ok := m.LookupTx(ctx); ok {
		super = tx
	}
	ctx, cancel := context.WithCancel(ctx)
	return context.WithValue(ctx, m.ctxKeyMemoryTx(), &MemoryTx{
		super:         super,
		cancelContext: cancel,
	}), nil
}

func (m *Memory) CommitTx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := m.LookupTx(ctx); ok {
		return tx.commit()
	}
	return errNoTx
}

func (m *Memory) RollbackTx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx, ok := m.LookupTx(ctx); ok {
		return tx.rollback()
	}
	return errNoTx
}

func (m *Memory) LookupTx(ctx context.Context) (*MemoryTx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(m.ctxKeyMemoryTx()).(*MemoryTx)
	return tx, ok
}
