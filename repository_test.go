package aggregate_test

import (
	"context"
	"testing"

	"go.llib.dev/testcase"

	"go.llib.dev/aggregate"
	"go.llib.dev/aggregate/internal/testent"
	"go.llib.dev/aggregate/port/store"
)

func TestRepository(t *testing.T) {
	s := testcase.NewSpec(t)

	driver, mapper := LetMapper(s)
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})
	repo := testcase.Let(s, func(t *testcase.T) aggregate.Repository[testent.Post] {
		return aggregate.Repository[testent.Post]{Mapper: mapper.Get(t)}
	})
	author := testcase.Let(s, func(t *testcase.T) *testent.Author {
		a := testent.MakeAuthor()
		t.Must.NoError(aggregate.Repository[testent.Author]{Mapper: mapper.Get(t)}.Persist(ctx.Get(t), a))
		return a
	})

	s.Test("persist, load and destroy a single aggregate", func(t *testcase.T) {
		p := testent.MakePost(author.Get(t))
		t.Must.NoError(repo.Get(t).Persist(ctx.Get(t), p))
		t.Must.True(p.ID != 0)

		got, found, err := repo.Get(t).LoadOne(ctx.Get(t), p.ID)
		t.Must.NoError(err)
		t.Must.True(found)
		t.Must.Equal(p.Title, got.Title)
		t.Must.Equal(len(p.Comments), len(got.Comments))

		t.Must.NoError(repo.Get(t).Destroy(ctx.Get(t), got))
		_, found, err = repo.Get(t).LoadOne(ctx.Get(t), p.ID)
		t.Must.NoError(err)
		t.Must.False(found)
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "comments"))
	})

	s.Test("persist, load and destroy many aggregates", func(t *testcase.T) {
		ps := []*testent.Post{testent.MakePost(author.Get(t)), testent.MakePost(author.Get(t))}
		t.Must.NoError(repo.Get(t).PersistAll(ctx.Get(t), ps))

		got, err := repo.Get(t).LoadMany(ctx.Get(t), []store.ID{ps[1].ID, ps[0].ID})
		t.Must.NoError(err)
		t.Must.Equal(2, len(got))
		t.Must.Equal(ps[1].ID, got[0].ID)
		t.Must.Equal(ps[0].ID, got[1].ID)

		t.Must.NoError(repo.Get(t).DestroyAll(ctx.Get(t), got[:1]))
		t.Must.Equal(1, driver.Get(t).Len(ctx.Get(t), "posts"))
		t.Must.NoError(repo.Get(t).DestroyAllByID(ctx.Get(t), []store.ID{ps[0].ID}))
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "posts"))
	})

	s.Test("destroy by id", func(t *testcase.T) {
		p := testent.MakePost(author.Get(t))
		t.Must.NoError(repo.Get(t).Persist(ctx.Get(t), p))
		t.Must.NoError(repo.Get(t).DestroyByID(ctx.Get(t), p.ID))
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "posts"))
	})

	s.Test("nil collections are rejected", func(t *testcase.T) {
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, repo.Get(t).PersistAll(ctx.Get(t), nil))
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, repo.Get(t).DestroyAll(ctx.Get(t), nil))
		_, err := repo.Get(t).LoadMany(ctx.Get(t), nil)
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, err)
	})

	s.Test("a nil aggregate is rejected", func(t *testcase.T) {
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, repo.Get(t).Persist(ctx.Get(t), nil))
	})
}
