package aggregate_test

import (
	"context"
	"testing"

	"go.llib.dev/testcase"

	"go.llib.dev/aggregate"
	"go.llib.dev/aggregate/adapter/memory"
	"go.llib.dev/aggregate/internal/testent"
	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/port/comproto"
	"go.llib.dev/aggregate/port/store"
	"go.llib.dev/aggregate/port/store/storedouble"
)

var tables = []string{"authors", "posts", "comments", "images", "videos"}

func registry(tb testing.TB) *mapping.Registry {
	r, err := testent.NewRegistry()
	if err != nil {
		tb.Fatal(err)
	}
	return r
}

// counts returns the number of rows per table.
func counts(t *testcase.T, m *memory.Memory) map[string]int {
	out := make(map[string]int, len(tables))
	for _, table := range tables {
		out[table] = m.Len(context.Background(), table)
	}
	return out
}

func rowOf(t *testcase.T, d store.Driver, table string, id store.ID) store.Row {
	rows, err := d.FindByIDs(context.Background(), table, []store.ID{id})
	t.Must.NoError(err)
	t.Must.Equal(1, len(rows), "row not found")
	return rows[0]
}

// txStub is a stubbed driver which keeps the commit protocol of the driver it wraps.
type txStub struct {
	*storedouble.Stub
	comproto.OnePhaseCommitProtocol
}

func newTxStub(m *memory.Memory) txStub {
	return txStub{Stub: &storedouble.Stub{Driver: m}, OnePhaseCommitProtocol: m}
}

// savedPost persists a fresh post aggregate with a saved author.
func savedPost(t *testcase.T, m aggregate.Mapper) *testent.Post {
	author := testent.MakeAuthor()
	_, err := m.Persist(context.Background(), author)
	t.Must.NoError(err)
	post := testent.MakePost(author)
	_, err = m.Persist(context.Background(), post)
	t.Must.NoError(err)
	return post
}

// LetMapper defines a Mapper over an in-memory store.
func LetMapper(s *testcase.Spec) (testcase.Var[*memory.Memory], testcase.Var[aggregate.Mapper]) {
	driver := testcase.Let(s, func(t *testcase.T) *memory.Memory {
		return memory.NewMemory()
	})
	mapper := testcase.Let(s, func(t *testcase.T) aggregate.Mapper {
		return aggregate.Mapper{Registry: registry(t), Driver: driver.Get(t)}
	})
	return driver, mapper
}
