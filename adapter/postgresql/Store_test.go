package postgresql_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"

	"go.llib.dev/aggregate/adapter/postgresql"
	"go.llib.dev/aggregate/pkg/flsql"
	"go.llib.dev/aggregate/pkg/keykit"
	"go.llib.dev/aggregate/pkg/logger"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/comproto"
	"go.llib.dev/aggregate/port/store"
)

var _ comproto.OnePhaseCommitProtocol = (*postgresql.Store)(nil)

func TestStore_queries(t *testing.T) {
	s := testcase.NewSpec(t)

	mock := testcase.Let[sqlmock.Sqlmock](s, nil)
	subject := testcase.Let(s, func(t *testcase.T) *postgresql.Store {
		db, m, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
		t.Must.NoError(err)
		t.Defer(db.Close)
		t.Defer(func() { t.Must.NoError(m.ExpectationsWereMet()) })
		mock.Set(t, m)
		return &postgresql.Store{Connection: flsql.SQLConnectionAdapter(db)}
	}).EagerLoading(s)
	ctx := testcase.Let(s, func(t *testcase.T) context.Context {
		return context.Background()
	})

	s.Describe(".PrimaryKeys", func(s *testcase.Spec) {
		s.Test("keys are drawn from the table sequence", func(t *testcase.T) {
			mock.Get(t).ExpectQuery(`SELECT nextval($1::regclass) FROM generate_series(1, $2)`).
				WithArgs("posts_id_seq", 2).
				WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(11)).AddRow(int64(12)))

			ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), "posts", 2)
			t.Must.NoError(err)
			t.Must.Equal([]store.ID{int64(11), int64(12)}, ids)
		})

		s.Test("sequence format is configurable", func(t *testcase.T) {
			subject.Get(t).SequenceFormat = "seq_%s"
			mock.Get(t).ExpectQuery(`SELECT nextval($1::regclass) FROM generate_series(1, $2)`).
				WithArgs("seq_posts", 1).
				WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(1)))

			ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), "posts", 1)
			t.Must.NoError(err)
			t.Must.Equal([]store.ID{int64(1)}, ids)
		})

		s.Test("a key allocator replaces the sequence", func(t *testcase.T) {
			subject.Get(t).Keys = &keykit.Sequence{}

			ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), "posts", 2)
			t.Must.NoError(err)
			t.Must.Equal([]store.ID{int64(1), int64(2)}, ids)
		})

		s.Test("zero keys need no query", func(t *testcase.T) {
			ids, err := subject.Get(t).PrimaryKeys(ctx.Get(t), "posts", 0)
			t.Must.NoError(err)
			t.Must.Empty(ids)
		})

		s.Test("empty table name is rejected", func(t *testcase.T) {
			_, err := subject.Get(t).PrimaryKeys(ctx.Get(t), "", 1)
			t.Must.ErrorIs(store.ErrInvalidTable, err)
		})
	})

	s.Describe(".Insert", func(s *testcase.Spec) {
		s.Test("columns are quoted and ordered by name", func(t *testcase.T) {
			mock.Get(t).ExpectExec("INSERT INTO \"posts\" (\"id\", \"author_id\", \"title\")\nVALUES ($1, $2, $3)").
				WithArgs(int64(1), nil, "foo").
				WillReturnResult(sqlmock.NewResult(0, 1))

			t.Must.NoError(subject.Get(t).Insert(ctx.Get(t), "posts", []store.Row{
				{ID: int64(1), Values: store.Values{"title": "foo", "author_id": nil}},
			}))
		})

		s.Test("schema qualified table names are quoted per part", func(t *testcase.T) {
			mock.Get(t).ExpectExec("INSERT INTO \"blog\".\"posts\" (\"id\", \"title\")\nVALUES ($1, $2)").
				WithArgs(int64(2), "bar").
				WillReturnResult(sqlmock.NewResult(0, 1))

			t.Must.NoError(subject.Get(t).Insert(ctx.Get(t), "blog.posts", []store.Row{
				{ID: int64(2), Values: store.Values{"title": "bar"}},
			}))
		})

		s.Test("row without identifier is rejected", func(t *testcase.T) {
			t.Must.Error(subject.Get(t).Insert(ctx.Get(t), "posts", []store.Row{{Values: store.Values{}}}))
		})
	})

	s.Describe(".Update", func(s *testcase.Spec) {
		s.Test("values are set by the identifier", func(t *testcase.T) {
			mock.Get(t).ExpectExec("UPDATE \"comments\"\nSET \"body\" = $2, \"post_id\" = $3\nWHERE \"id\" = $1").
				WithArgs(int64(5), "hi", int64(3)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			t.Must.NoError(subject.Get(t).Update(ctx.Get(t), "comments", []store.Row{
				{ID: int64(5), Values: store.Values{"body": "hi", "post_id": int64(3)}},
			}))
		})

		s.Test("missing row yields ErrNotFound", func(t *testcase.T) {
			mock.Get(t).ExpectExec("UPDATE \"comments\"\nSET \"body\" = $2\nWHERE \"id\" = $1").
				WithArgs(int64(404), "hi").
				WillReturnResult(sqlmock.NewResult(0, 0))

			err := subject.Get(t).Update(ctx.Get(t), "comments", []store.Row{
				{ID: int64(404), Values: store.Values{"body": "hi"}},
			})
			t.Must.ErrorIs(store.ErrNotFound, err)
		})
	})

	s.Describe(".DeleteByIDs", func(s *testcase.Spec) {
		s.Test("rows are deleted in one statement", func(t *testcase.T) {
			mock.Get(t).ExpectExec(`DELETE FROM "images" WHERE "id" IN ($1, $2)`).
				WithArgs(int64(1), int64(2)).
				WillReturnResult(sqlmock.NewResult(0, 2))

			t.Must.NoError(subject.Get(t).DeleteByIDs(ctx.Get(t), "images", []store.ID{int64(1), int64(2)}))
		})

		s.Test("empty identifier list needs no query", func(t *testcase.T) {
			t.Must.NoError(subject.Get(t).DeleteByIDs(ctx.Get(t), "images", nil))
		})

		s.Test("the query log carries the logging details of the context", func(t *testcase.T) {
			out := logger.Stub(t)
			mock.Get(t).ExpectExec(`DELETE FROM "images" WHERE "id" IN ($1)`).
				WithArgs(int64(3)).
				WillReturnResult(sqlmock.NewResult(0, 1))

			c := logging.ContextWith(ctx.Get(t), logging.Field("aggregate.operation", "destroy"))
			t.Must.NoError(subject.Get(t).DeleteByIDs(c, "images", []store.ID{int64(3)}))
			t.Must.Contain(out.String(), `"message":"QueryableAdapter"`)
			t.Must.Contain(out.String(), `"aggregate.operation":"destroy"`)
		})
	})

	s.Describe(".FindByIDs", func(s *testcase.Spec) {
		s.Test("rows are split into identifier and values", func(t *testcase.T) {
			mock.Get(t).ExpectQuery(`SELECT * FROM "authors" WHERE "id" IN ($1, $2) ORDER BY "id"`).
				WithArgs(int64(1), int64(2)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
					AddRow(int64(1), "Ada").
					AddRow(int64(2), "Grace"))

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), "authors", []store.ID{int64(1), int64(2)})
			t.Must.NoError(err)
			t.Must.Equal([]store.Row{
				{ID: int64(1), Values: store.Values{"name": "Ada"}},
				{ID: int64(2), Values: store.Values{"name": "Grace"}},
			}, rows)
		})

		s.Test("custom identifier column", func(t *testcase.T) {
			subject.Get(t).IDColumn = "uid"
			mock.Get(t).ExpectQuery(`SELECT * FROM "authors" WHERE "uid" IN ($1) ORDER BY "uid"`).
				WithArgs("a-1").
				WillReturnRows(sqlmock.NewRows([]string{"uid", "name"}).AddRow("a-1", "Ada"))

			rows, err := subject.Get(t).FindByIDs(ctx.Get(t), "authors", []store.ID{"a-1"})
			t.Must.NoError(err)
			t.Must.Equal([]store.Row{{ID: "a-1", Values: store.Values{"name": "Ada"}}}, rows)
		})
	})

	s.Describe(".FindBy", func(s *testcase.Spec) {
		s.Test("nil values are matched with IS NULL", func(t *testcase.T) {
			mock.Get(t).ExpectQuery("SELECT * FROM \"comments\"\nWHERE \"parent_id\" IS NULL AND \"post_id\" = $1\nORDER BY \"id\"").
				WithArgs(int64(3)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id", "parent_id"}).
					AddRow(int64(7), "hi", int64(3), nil))

			rows, err := subject.Get(t).FindBy(ctx.Get(t), "comments", store.Values{"post_id": int64(3), "parent_id": nil})
			t.Must.NoError(err)
			t.Must.Equal([]store.Row{
				{ID: int64(7), Values: store.Values{"body": "hi", "post_id": int64(3), "parent_id": nil}},
			}, rows)
		})
	})

	s.Describe("transactions", func(s *testcase.Spec) {
		s.Test("statements run within the transaction of the context", func(t *testcase.T) {
			mock.Get(t).ExpectBegin()
			mock.Get(t).ExpectExec(`DELETE FROM "posts" WHERE "id" IN ($1)`).
				WithArgs(int64(9)).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.Get(t).ExpectRollback()

			tx, err := subject.Get(t).BeginTx(ctx.Get(t))
			t.Must.NoError(err)
			t.Must.NoError(subject.Get(t).DeleteByIDs(tx, "posts", []store.ID{int64(9)}))
			t.Must.NoError(subject.Get(t).RollbackTx(tx))
			t.Must.ErrorIs(sql.ErrTxDone, subject.Get(t).CommitTx(tx))
		})
	})
}

func TestLoadConfig(t *testing.T) {
	unset := func(t *testing.T, keys ...string) {
		for _, key := range keys {
			t.Setenv(key, "")
			assert.NoError(t, os.Unsetenv(key))
		}
	}

	t.Run("database url is required", func(t *testing.T) {
		unset(t, "AGGREGATE_DATABASE_URL")
		_, err := postgresql.LoadConfig()
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		unset(t, "AGGREGATE_PG_ID_COLUMN", "AGGREGATE_PG_SEQUENCE_FORMAT")
		t.Setenv("AGGREGATE_DATABASE_URL", "postgres://localhost:5432/blog")
		c, err := postgresql.LoadConfig()
		assert.NoError(t, err)
		assert.Equal(t, postgresql.Config{
			DatabaseURL:    "postgres://localhost:5432/blog",
			IDColumn:       "id",
			SequenceFormat: "%s_id_seq",
		}, c)
	})
}
