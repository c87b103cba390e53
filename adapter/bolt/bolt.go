// Package bolt is a store.Driver on top of an embedded boltdb file.
//
// Every table is a bucket, and every row is a gob encoded record keyed by its identifier.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"sort"
	"time"

	"github.com/boltdb/bolt"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/port/store"
)

const (
	ErrDuplicateKey errorkit.Error = "bolt: duplicate key"
	ErrMissingID    errorkit.Error = "bolt: missing id"

	errTxDone errorkit.Error = "bolt: transaction already done"
	errNoTx   errorkit.Error = "bolt: no transaction in context"
)

var metaBucket = []byte("_aggregate_meta")

func init() {
	gob.Register(time.Time{})
}

// Open opens or creates the bolt database file at the given path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

type Store struct {
	DB *bolt.DB
	// Keys [optional] allocates the primary keys of new rows.
	//
	// Default: the sequence of the table's bucket
	Keys store.KeyAllocator
}

var _ store.Driver = (*Store)(nil)

// Close the database and release the file lock.
func (s *Store) Close() error {
	return s.DB.Close()
}

type record struct {
	Seq    uint64
	ID     any
	Values map[string]any
}

func (s *Store) PrimaryKeys(ctx context.Context, table string, n int) ([]store.ID, error) {
	if err := check(ctx, table); err != nil {
		return nil, err
	}
	if s.Keys != nil {
		return s.Keys.PrimaryKeys(ctx, table, n)
	}
	ids := make([]store.ID, 0, n)
	err := s.update(ctx, func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			ids = append(ids, int64(seq))
		}
		return nil
	})
	return ids, err
}

func (s *Store) Insert(ctx context.Context, table string, rows []store.Row) error {
	if err := check(ctx, table); err != nil {
		return err
	}
	return s.update(ctx, func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if store.IsAbsentID(row.ID) {
				return ErrMissingID.F("%s row has no identifier", table)
			}
			key := keyOf(row.ID)
			if b.Get(key) != nil {
				return ErrDuplicateKey.F("%s: %v", table, row.ID)
			}
			seq, err := meta.NextSequence()
			if err != nil {
				return err
			}
			if err := put(b, key, record{Seq: seq, ID: row.ID, Values: row.Values}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Update(ctx context.Context, table string, rows []store.Row) error {
	if err := check(ctx, table); err != nil {
		return err
	}
	return s.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		for _, row := range rows {
			key := keyOf(row.ID)
			var prev record
			if b == nil || !lookup(b, key, &prev) {
				return store.ErrNotFound.F("%s row not found by id: %v", table, row.ID)
			}
			if err := put(b, key, record{Seq: prev.Seq, ID: prev.ID, Values: row.Values}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeleteByIDs(ctx context.Context, table string, ids []store.ID) error {
	if err := check(ctx, table); err != nil {
		return err
	}
	return s.update(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete(keyOf(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) FindByIDs(ctx context.Context, table string, ids []store.ID) ([]store.Row, error) {
	if err := check(ctx, table); err != nil {
		return nil, err
	}
	var out []store.Row
	err := s.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		for _, id := range ids {
			raw := b.Get(keyOf(id))
			if raw == nil {
				continue
			}
			r, err := decode(raw)
			if err != nil {
				return err
			}
			out = append(out, r.row())
		}
		return nil
	})
	return out, err
}

func (s *Store) FindBy(ctx context.Context, table string, where store.Values) ([]store.Row, error) {
	if err := check(ctx, table); err != nil {
		return nil, err
	}
	var rs []record
	err := s.view(ctx, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, raw []byte) error {
			r, err := decode(raw)
			if err != nil {
				return err
			}
			if store.Match(r.Values, where) {
				rs = append(rs, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Seq < rs[j].Seq })
	out := make([]store.Row, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.row())
	}
	return out, nil
}

func (r record) row() store.Row {
	vs := make(store.Values, len(r.Values))
	for k, v := range r.Values {
		vs[k] = v
	}
	return store.Row{ID: r.ID, Values: vs}
}

func check(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if table == "" || table == string(metaBucket) {
		return store.ErrInvalidTable.F("%q", table)
	}
	return nil
}

// keyOf encodes the identifier as a bucket key.
// Integer identifiers are big endian encoded, so the bucket iterates them in numeric order.
func keyOf(id store.ID) []byte {
	switch k := store.IDKey(id).(type) {
	case int64:
		return uintToBytes(uint64(k))
	case uint64:
		return uintToBytes(k)
	case string:
		return append([]byte{'s'}, k...)
	default:
		var buf bytes.Buffer
		_ = gob.NewEncoder(&buf).Encode(&k)
		return append([]byte{'g'}, buf.Bytes()...)
	}
}

func uintToBytes(v uint64) []byte {
	b := make([]byte, 9)
	b[0] = 'i'
	binary.BigEndian.PutUint64(b[1:], v)
	return b
}

func put(b *bolt.Bucket, key []byte, r record) error {
	vs := make(map[string]any, len(r.Values))
	for k, v := range r.Values {
		if v != nil {
			vs[k] = v
		}
	}
	r.Values = vs
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return err
	}
	return b.Put(key, buf.Bytes())
}

func lookup(b *bolt.Bucket, key []byte, r *record) bool {
	raw := b.Get(key)
	if raw == nil {
		return false
	}
	v, err := decode(raw)
	if err != nil {
		return false
	}
	*r = v
	return true
}

func decode(raw []byte) (record, error) {
	var r record
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&r)
	return r, err
}
