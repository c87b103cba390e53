package aggregate_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.llib.dev/testcase"

	"go.llib.dev/aggregate"
	"go.llib.dev/aggregate/internal/testent"
	"go.llib.dev/aggregate/pkg/logger"
	"go.llib.dev/aggregate/port/store"
	"go.llib.dev/aggregate/port/store/storedouble"
)

func TestMapper_DestroyAllByID(t *testing.T) {
	s := testcase.NewSpec(t)

	driver, mapper := LetMapper(s)
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})
	post := testcase.Let(s, func(t *testcase.T) *testent.Post {
		return savedPost(t, mapper.Get(t))
	}).EagerLoading(s)

	s.Test("the root and its owned members are deleted", func(t *testcase.T) {
		t.Must.NoError(mapper.Get(t).Destroy(ctx.Get(t), post.Get(t)))

		t.Must.Equal(map[string]int{
			"authors":  1,
			"posts":    0,
			"comments": 0,
			"images":   0,
			"videos":   0,
		}, counts(t, driver.Get(t)))
	})

	s.Test("other aggregates are left intact", func(t *testcase.T) {
		other := savedPost(t, mapper.Get(t))
		before := counts(t, driver.Get(t))
		t.Must.NoError(mapper.Get(t).DestroyByID(ctx.Get(t), postType, post.Get(t).ID))

		after := counts(t, driver.Get(t))
		t.Must.Equal(before["posts"]-1, after["posts"])
		t.Must.Equal(before["comments"]-3, after["comments"])

		got, found, err := mapper.Get(t).LoadOne(ctx.Get(t), postType, other.ID)
		t.Must.NoError(err)
		t.Must.True(found)
		t.Must.Equal(2, len(got.(*testent.Post).Comments))
	})

	s.Test("destroying a boundary object keeps the aggregates referencing it", func(t *testcase.T) {
		p := post.Get(t)
		t.Must.NoError(mapper.Get(t).Destroy(ctx.Get(t), p.Author))
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "authors"))
		t.Must.Equal(1, driver.Get(t).Len(ctx.Get(t), "posts"))
	})

	s.Test("several roots are destroyed together", func(t *testcase.T) {
		other := savedPost(t, mapper.Get(t))
		t.Must.NoError(mapper.Get(t).DestroyAll(ctx.Get(t), []any{post.Get(t), other}))
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "posts"))
		t.Must.Equal(0, driver.Get(t).Len(ctx.Get(t), "comments"))
	})

	s.Test("unknown identifiers are ignored", func(t *testcase.T) {
		before := counts(t, driver.Get(t))
		t.Must.NoError(mapper.Get(t).DestroyAllByID(ctx.Get(t), postType, []store.ID{int64(404404)}))
		t.Must.Equal(before, counts(t, driver.Get(t)))
	})

	s.Test("destroying twice is not an error", func(t *testcase.T) {
		t.Must.NoError(mapper.Get(t).DestroyByID(ctx.Get(t), postType, post.Get(t).ID))
		t.Must.NoError(mapper.Get(t).DestroyByID(ctx.Get(t), postType, post.Get(t).ID))
	})

	s.Test("the destroyed aggregate can no longer be loaded", func(t *testcase.T) {
		t.Must.NoError(mapper.Get(t).Destroy(ctx.Get(t), post.Get(t)))
		_, found, err := mapper.Get(t).LoadOne(ctx.Get(t), postType, post.Get(t).ID)
		t.Must.NoError(err)
		t.Must.False(found)
	})

	s.Test("destroying logs with the operation details", func(t *testcase.T) {
		id := post.Get(t).ID
		out := logger.Stub(t)
		t.Must.NoError(mapper.Get(t).DestroyByID(ctx.Get(t), postType, id))
		t.Must.Contain(out.String(), `"message":"aggregates destroyed"`)
		t.Must.Contain(out.String(), `"aggregate.operation":"destroy"`)
		t.Must.Contain(out.String(), `"aggregate.type":"Post"`)
	})
}

func TestMapper_DestroyAllByID_invalidInput(t *testing.T) {
	s := testcase.NewSpec(t)

	driver, mapper := LetMapper(s)
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})

	s.Test("nil identifier collection", func(t *testcase.T) {
		err := mapper.Get(t).DestroyAllByID(ctx.Get(t), postType, nil)
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, err)
	})

	s.Test("missing identifier", func(t *testcase.T) {
		err := mapper.Get(t).DestroyByID(ctx.Get(t), postType, nil)
		t.Must.ErrorIs(aggregate.ErrInvalidPrimaryKeyValue, err)

		err = mapper.Get(t).DestroyAllByID(ctx.Get(t), postType, []store.ID{int64(1), (*int64)(nil)})
		t.Must.ErrorIs(aggregate.ErrInvalidPrimaryKeyValue, err)
	})

	s.Test("empty identifier collection", func(t *testcase.T) {
		t.Must.NoError(mapper.Get(t).DestroyAllByID(ctx.Get(t), postType, []store.ID{}))
		t.Must.NoError(mapper.Get(t).DestroyAll(ctx.Get(t), []any{}))
	})

	s.Test("nil root", func(t *testcase.T) {
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, mapper.Get(t).Destroy(ctx.Get(t), nil))
		t.Must.ErrorIs(aggregate.ErrInvalidAggregateRoot, mapper.Get(t).DestroyAll(ctx.Get(t), nil))
	})

	s.Test("unsaved root", func(t *testcase.T) {
		saved := savedPost(t, mapper.Get(t))
		err := mapper.Get(t).DestroyAll(ctx.Get(t), []any{saved, testent.MakePost(nil)})
		t.Must.ErrorIs(aggregate.ErrInvalidPrimaryKeyValue, err)
		t.Must.Equal(1, driver.Get(t).Len(ctx.Get(t), "posts"))
	})
}

func TestMapper_DestroyAllByID_deleteOrder(t *testing.T) {
	s := testcase.NewSpec(t)

	driver, _ := LetMapper(s)
	recorder := testcase.Let(s, func(t *testcase.T) *storedouble.Recorder {
		return &storedouble.Recorder{Driver: driver.Get(t)}
	})
	mapper := testcase.Let(s, func(t *testcase.T) aggregate.Mapper {
		return aggregate.Mapper{Registry: registry(t), Driver: recorder.Get(t)}
	})
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})

	s.Test("children are deleted before their owners", func(t *testcase.T) {
		p := savedPost(t, mapper.Get(t))
		recorder.Get(t).Calls = nil
		t.Must.NoError(mapper.Get(t).Destroy(ctx.Get(t), p))
		t.Must.Equal([]string{"videos", "images", "comments", "posts"}, recorder.Get(t).Tables("DeleteByIDs"))
		t.Must.Empty(recorder.Get(t).Tables("Insert"))
		t.Must.Empty(recorder.Get(t).Tables("Update"))
	})

	s.Test("one batch holds every row of a table", func(t *testcase.T) {
		p := savedPost(t, mapper.Get(t))
		recorder.Get(t).Calls = nil
		t.Must.NoError(mapper.Get(t).Destroy(ctx.Get(t), p))
		for _, c := range recorder.Get(t).Calls {
			if c.Table == "comments" {
				t.Must.Equal(3, len(c.IDs))
			}
		}
	})
}

func TestMapper_DestroyAllByID_failure(t *testing.T) {
	s := testcase.NewSpec(t)

	driver, _ := LetMapper(s)
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})
	stub := testcase.Let(s, func(t *testcase.T) txStub {
		return newTxStub(driver.Get(t))
	})
	mapper := testcase.Let(s, func(t *testcase.T) aggregate.Mapper {
		return aggregate.Mapper{Registry: registry(t), Driver: stub.Get(t)}
	})

	s.Test("a failed delete leaves the aggregate in the store", func(t *testcase.T) {
		p := savedPost(t, mapper.Get(t))
		before := counts(t, driver.Get(t))
		expErr := errors.New("boom")
		stub.Get(t).DeleteByIDsFunc = func(ctx context.Context, table string, ids []store.ID) error {
			if table == "posts" {
				return expErr
			}
			return driver.Get(t).DeleteByIDs(ctx, table, ids)
		}

		err := mapper.Get(t).DestroyByID(ctx.Get(t), reflect.TypeOf(*p), p.ID)
		t.Must.ErrorIs(expErr, err)
		t.Must.Equal(before, counts(t, driver.Get(t)))
	})
}
