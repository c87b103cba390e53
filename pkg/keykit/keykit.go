// Package keykit holds store.KeyAllocator implementations that need no database round trip.
package keykit

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/port/store"
)

const ErrInvalidCount errorkit.Error = "keykit: invalid key count"

// Sequence allocates int64 keys from an in-process counter per table, starting at 1.
// The zero value is ready to use.
type Sequence struct {
	m      sync.Mutex
	serial map[string]int64
}

func (s *Sequence) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrInvalidCount.F("%d", n)
	}
	s.m.Lock()
	defer s.m.Unlock()
	if s.serial == nil {
		s.serial = make(map[string]int64)
	}
	ids := make([]store.ID, 0, n)
	for i := 0; i < n; i++ {
		s.serial[table]++
		ids = append(ids, s.serial[table])
	}
	return ids, nil
}

// UUID allocates random version 4 UUID keys in their string form.
type UUID struct{}

func (UUID) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrInvalidCount.F("%d", n)
	}
	ids := make([]store.ID, 0, n)
	for i := 0; i < n; i++ {
		id, err := uuid.NewRandom()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id.String())
	}
	return ids, nil
}
