package comproto_test

import (
	"context"
	"errors"
	"testing"

	"go.llib.dev/aggregate/port/comproto"
	"go.llib.dev/testcase"
	"go.llib.dev/testcase/assert"
)

func TestFinishTx(t *testing.T) {
	s := testcase.NewSpec(t)

	var (
		returnErr  = testcase.LetValue[error](s, nil)
		commitErr  = testcase.LetValue[error](s, nil)
		rollbackEr = testcase.LetValue[error](s, nil)
		committed  = testcase.LetValue(s, false)
		rolledBack = testcase.LetValue(s, false)
	)
	act := func(t *testcase.T) error {
		err := returnErr.Get(t)
		comproto.FinishTx(&err, func() error {
			committed.Set(t, true)
			return commitErr.Get(t)
		}, func() error {
			rolledBack.Set(t, true)
			return rollbackEr.Get(t)
		})
		return err
	}

	s.When("the function succeeded", func(s *testcase.Spec) {
		s.Then("it commits", func(t *testcase.T) {
			t.Must.NoError(act(t))
			t.Must.True(committed.Get(t))
			t.Must.False(rolledBack.Get(t))
		})

		s.And("commit fails", func(s *testcase.Spec) {
			commitErr.Let(s, func(t *testcase.T) error { return t.Random.Error() })

			s.Then("the commit error is returned", func(t *testcase.T) {
				t.Must.ErrorIs(commitErr.Get(t), act(t))
			})
		})
	})

	s.When("the function failed", func(s *testcase.Spec) {
		returnErr.Let(s, func(t *testcase.T) error { return t.Random.Error() })

		s.Then("it rolls back and keeps the original error", func(t *testcase.T) {
			t.Must.ErrorIs(returnErr.Get(t), act(t))
			t.Must.True(rolledBack.Get(t))
			t.Must.False(committed.Get(t))
		})

		s.And("rollback fails too", func(s *testcase.Spec) {
			rollbackEr.Let(s, func(t *testcase.T) error { return t.Random.Error() })

			s.Then("both errors are reachable", func(t *testcase.T) {
				err := act(t)
				t.Must.ErrorIs(returnErr.Get(t), err)
				t.Must.ErrorIs(rollbackEr.Get(t), err)
			})
		})
	})
}

type fakeCommitProtocol struct {
	commits, rollbacks int
}

func (f *fakeCommitProtocol) BeginTx(ctx context.Context) (context.Context, error) { return ctx, nil }
func (f *fakeCommitProtocol) CommitTx(context.Context) error                      { f.commits++; return nil }
func (f *fakeCommitProtocol) RollbackTx(context.Context) error                    { f.rollbacks++; return nil }

func TestFinishOnePhaseCommit(t *testing.T) {
	cm := &fakeCommitProtocol{}
	ok := func() (rErr error) {
		tx, err := cm.BeginTx(context.Background())
		if err != nil {
			return err
		}
		defer comproto.FinishOnePhaseCommit(&rErr, cm, tx)
		return nil
	}
	fail := func() (rErr error) {
		tx, err := cm.BeginTx(context.Background())
		if err != nil {
			return err
		}
		defer comproto.FinishOnePhaseCommit(&rErr, cm, tx)
		return errors.New("boom")
	}
	assert.NoError(t, ok())
	assert.Error(t, fail())
	assert.Equal(t, 1, cm.commits)
	assert.Equal(t, 1, cm.rollbacks)
}
