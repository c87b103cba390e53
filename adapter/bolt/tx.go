package bolt

import (
	"context"

	"github.com/boltdb/bolt"
)

type ctxKeyTx struct{}

// boltTx is a transaction carried in the context.
// Nested transactions share the underlying bolt.Tx, and only the outermost one commits it.
type boltTx struct {
	tx     *bolt.Tx
	parent *boltTx
	done   bool
}

func (tx *boltTx) isDone() bool {
	for t := tx; t != nil; t = t.parent {
		if t.done {
			return true
		}
	}
	return false
}

func (s *Store) BeginTx(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, err
	}
	if parent, ok := s.lookupTx(ctx); ok {
		return context.WithValue(ctx, ctxKeyTx{}, &boltTx{tx: parent.tx, parent: parent}), nil
	}
	tx, err := s.DB.Begin(true)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, ctxKeyTx{}, &boltTx{tx: tx}), nil
}

func (s *Store) CommitTx(ctx context.Context) error {
	tx, ok := s.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	tx.done = true
	if tx.parent != nil {
		return nil
	}
	return tx.tx.Commit()
}

func (s *Store) RollbackTx(ctx context.Context) error {
	tx, ok := s.lookupTx(ctx)
	if !ok {
		return errNoTx
	}
	if tx.isDone() {
		return errTxDone
	}
	root := tx
	for root.parent != nil {
		root.done = true
		root = root.parent
	}
	root.done = true
	return root.tx.Rollback()
}

func (s *Store) lookupTx(ctx context.Context) (*boltTx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(ctxKeyTx{}).(*boltTx)
	return tx, ok
}

func (s *Store) update(ctx context.Context, fn func(*bolt.Tx) error) error {
	if tx, ok := s.lookupTx(ctx); ok {
		if tx.isDone() {
			return errTxDone
		}
		return fn(tx.tx)
	}
	return s.DB.Update(fn)
}

func (s *Store) view(ctx context.Context, fn func(*bolt.Tx) error) error {
	if tx, ok := s.lookupTx(ctx); ok {
		if tx.isDone() {
			return errTxDone
		}
		return fn(tx.tx)
	}
	return s.DB.View(fn)
}
