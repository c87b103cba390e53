// Package storecontract holds the behaviour every store.Driver implementation must satisfy.
package storecontract

import (
	"context"
	"testing"

	"go.llib.dev/aggregate/port/comproto"
	"go.llib.dev/aggregate/port/store"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
)

// Driver is the contract of the store.Driver.
//
// The table used by the contract must have a text "name" column
// and a nullable integer "ref_id" column.
type Driver struct {
	MakeSubject func(testing.TB) store.Driver
	// MakeContext [optional] returns the background context for the subject.
	MakeContext func(testing.TB) context.Context
	// Table [optional] is the table name used by the contract.
	//
	// Default: "contract_rows"
	Table string
}

func (c Driver) Test(t *testing.T) { c.Spec(testcase.NewSpec(t)) }

func (c Driver) Spec(s *testcase.Spec) {
	subject := testcase.Let(s, func(t *testcase.T) store.Driver {
		return c.MakeSubject(t)
	})
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		if c.MakeContext != nil {
			return c.MakeContext(t)
		}
		return context.Background()
	})
	table := c.table()

	makeRow := func(t *testcase.T) store.Row {
		ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), table, 1)
		t.Must.NoError(err)
		t.Must.Equal(1, len(ids))
		return store.Row{ID: ids[0], Values: store.Values{
			"name":   t.Random.StringNC(8, "abcdefghijklmnopqrstuvwxyz"),
			"ref_id": nil,
		}}
	}
	insert := func(t *testcase.T, rows ...store.Row) {
		t.Must.NoError(subject.Get(t).Insert(ctx.Get(t), table, rows))
		t.Defer(func() {
			ids := make([]store.ID, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			_ = subject.Get(t).DeleteByIDs(context.Background(), table, ids)
		})
	}
	nameOf := func(t *testcase.T, r store.Row) string {
		name, err := store.ValueOf[string](r.Values, "name")
		t.Must.NoError(err)
		return name
	}

	s.Describe(".PrimaryKeys", func(s *testcase.Spec) {
		s.Test("it allocates unique, present identifiers", func(t *testcase.T) {
			n := t.Random.IntBetween(1, 7)
			ids1, err := subject.Get(t).PrimaryKeys(ctx.Get(t), table, n)
			t.Must.NoError(err)
			ids2, err := subject.Get(t).PrimaryKeys(ctx.Get(t), table, n)
			t.Must.NoError(err)
			t.Must.Equal(n, len(ids1))
			t.Must.Equal(n, len(ids2))

			seen := map[any]struct{}{}
			for _, id := range append(ids1, ids2...) {
				t.Must.False(store.IsAbsentID(id))
				_, dup := seen[store.IDKey(id)]
				t.Must.False(dup, "identifier allocated twice")
				seen[store.IDKey(id)] = struct{}{}
			}
		})

		s.Test("zero count yields no identifier", func(t *testcase.T) {
			ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), table, 0)
			t.Must.NoError(err)
			t.Must.Empty(ids)
		})
	})

	s.Describe(".Insert + .FindByIDs", func(s *testcase.Spec) {
		s.Test("inserted rows can be found by their identifier", func(t *testcase.T) {
			r1, r2 := makeRow(t), makeRow(t)
			insert(t, r1, r2)

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{r1.ID, r2.ID})
			t.Must.NoError(err)
			t.Must.Equal(2, len(rows))
			got := map[any]string{}
			for _, r := range rows {
				got[store.IDKey(r.ID)] = nameOf(t, r)
			}
			t.Must.Equal(nameOf(t, r1), got[store.IDKey(r1.ID)])
			t.Must.Equal(nameOf(t, r2), got[store.IDKey(r2.ID)])
		})

		s.Test("unknown identifiers are skipped", func(t *testcase.T) {
			r := makeRow(t)
			insert(t, r)
			unknown := makeRow(t)

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{unknown.ID, r.ID})
			t.Must.NoError(err)
			t.Must.Equal(1, len(rows))
			t.Must.True(store.SameID(r.ID, rows[0].ID))
		})

		s.Test("empty identifier list finds nothing", func(t *testcase.T) {
			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, nil)
			t.Must.NoError(err)
			t.Must.Empty(rows)
		})
	})

	s.Describe(".Update", func(s *testcase.Spec) {
		s.Test("values of an existing row are replaced", func(t *testcase.T) {
			r := makeRow(t)
			insert(t, r)

			updated := r.Clone()
			updated.Values["name"] = t.Random.StringNC(9, "abcdefghijklmnopqrstuvwxyz")
			updated.Values["ref_id"] = int64(t.Random.IntBetween(1, 1000))
			t.Must.NoError(subject.Get(t).Update(ctx.Get(t), table, []store.Row{updated}))

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{r.ID})
			t.Must.NoError(err)
			t.Must.Equal(1, len(rows))
			t.Must.Equal(nameOf(t, updated), nameOf(t, rows[0]))
			refID, err := store.ValueOf[int64](rows[0].Values, "ref_id")
			t.Must.NoError(err)
			t.Must.Equal(updated.Values["ref_id"], any(refID))
		})

		s.Test("missing row yields ErrNotFound", func(t *testcase.T) {
			r := makeRow(t)
			err := subject.Get(t).Update(ctx.Get(t), table, []store.Row{r})
			t.Must.ErrorIs(store.ErrNotFound, err)
		})
	})

	s.Describe(".DeleteByIDs", func(s *testcase.Spec) {
		s.Test("rows are removed while others remain", func(t *testcase.T) {
			r1, r2 := makeRow(t), makeRow(t)
			insert(t, r1, r2)

			t.Must.NoError(subject.Get(t).DeleteByIDs(ctx.Get(t), table, []store.ID{r1.ID}))

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{r1.ID, r2.ID})
			t.Must.NoError(err)
			t.Must.Equal(1, len(rows))
			t.Must.True(store.SameID(r2.ID, rows[0].ID))
		})

		s.Test("unknown identifiers are ignored", func(t *testcase.T) {
			r := makeRow(t)
			t.Must.NoError(subject.Get(t).DeleteByIDs(ctx.Get(t), table, []store.ID{r.ID}))
		})
	})

	s.Describe(".FindBy", func(s *testcase.Spec) {
		s.Test("rows are filtered by column equality in creation order", func(t *testcase.T) {
			ref := int64(t.Random.IntBetween(1000, 100000))
			r1, r2, other := makeRow(t), makeRow(t), makeRow(t)
			r1.Values["ref_id"] = ref
			r2.Values["ref_id"] = ref
			other.Values["ref_id"] = ref + 1
			insert(t, r1, r2, other)

			rows, err := subject.Get(t).FindBy(ctx.Get(t), table, store.Values{"ref_id": ref})
			t.Must.NoError(err)
			t.Must.Equal(2, len(rows))
			t.Must.True(store.SameID(r1.ID, rows[0].ID))
			t.Must.True(store.SameID(r2.ID, rows[1].ID))
		})

		s.Test("nil filter value matches NULL columns", func(t *testcase.T) {
			r := makeRow(t)
			insert(t, r)

			rows, err := subject.Get(t).FindBy(ctx.Get(t), table, store.Values{"ref_id": nil, "name": nameOf(t, r)})
			t.Must.NoError(err)
			t.Must.Equal(1, len(rows))
			t.Must.True(store.SameID(r.ID, rows[0].ID))
		})
	})

	s.Context("when the driver supports transactions", func(s *testcase.Spec) {
		cm := testcase.Let(s, func(t *testcase.T) comproto.OnePhaseCommitProtocol {
			cm, ok := subject.Get(t).(comproto.OnePhaseCommitProtocol)
			if !ok {
				t.Skip("driver has no commit protocol")
			}
			return cm
		})

		s.Test("rolled back writes are discarded", func(t *testcase.T) {
			r := makeRow(t)
			tx, err := cm.Get(t).BeginTx(ctx.Get(t))
			t.Must.NoError(err)
			t.Must.NoError(subject.Get(t).Insert(tx, table, []store.Row{r}))
			rows, err := subject.Get(t).FindByIDs(tx, table, []store.ID{r.ID})
			t.Must.NoError(err)
			t.Must.Equal(1, len(rows))
			t.Must.NoError(cm.Get(t).RollbackTx(tx))

			rows, err = subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{r.ID})
			t.Must.NoError(err)
			t.Must.Empty(rows)
		})

		s.Test("committed writes are kept", func(t *testcase.T) {
			r := makeRow(t)
			tx, err := cm.Get(t).BeginTx(ctx.Get(t))
			t.Must.NoError(err)
			t.Must.NoError(subject.Get(t).Insert(tx, table, []store.Row{r}))
			t.Must.NoError(cm.Get(t).CommitTx(tx))
			t.Defer(func() { _ = subject.Get(t).DeleteByIDs(context.Background(), table, []store.ID{r.ID}) })

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), table, []store.ID{r.ID})
			t.Must.NoError(err)
			assert.Equal(t, 1, len(rows))
		})
	})
}

func (c Driver) table() string {
	if c.Table != "" {
		return c.Table
	}
	return "contract_rows"
}
