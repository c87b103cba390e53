package errorkit_test

import (
	"errors"
	"fmt"
	"testing"

	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/testcase/assert"
	"go.llib.dev/testcase/random"
)

var rnd = random.New(random.CryptoSeed{})

const ErrExample errorkit.Error = "example error"

func TestError(t *testing.T) {
	t.Run("constant value is usable as a sentinel", func(t *testing.T) {
		var err error = ErrExample
		assert.ErrorIs(t, ErrExample, err)
		assert.Equal(t, "example error", err.Error())
	})
	t.Run("Wrap keeps both the owner and the wrapped error", func(t *testing.T) {
		other := rnd.Error()
		err := ErrExample.Wrap(other)
		assert.ErrorIs(t, ErrExample, err)
		assert.ErrorIs(t, other, err)
		assert.Contain(t, err.Error(), other.Error())
		var v myErr
		assert.True(t, errors.As(ErrExample.Wrap(myErr{Code: 42}), &v))
		assert.Equal(t, 42, v.Code)
	})
	t.Run("Wrap with nil returns the owner", func(t *testing.T) {
		assert.Equal[error](t, ErrExample, ErrExample.Wrap(nil))
	})
	t.Run("F formats the message", func(t *testing.T) {
		err := ErrExample.F("table %q", "posts")
		assert.ErrorIs(t, ErrExample, err)
		assert.Equal(t, `[example error] table "posts"`, err.Error())
	})
}

type myErr struct{ Code int }

func (err myErr) Error() string { return fmt.Sprintf("code %d", err.Code) }

func TestMerge(t *testing.T) {
	t.Run("nil when nothing to merge", func(t *testing.T) {
		assert.Nil(t, errorkit.Merge())
		assert.Nil(t, errorkit.Merge(nil, nil))
	})
	t.Run("single error is returned as is", func(t *testing.T) {
		err := rnd.Error()
		assert.Equal(t, err, errorkit.Merge(nil, err, nil))
	})
	t.Run("multiple errors are all reachable", func(t *testing.T) {
		err1 := rnd.Error()
		err2 := myErr{Code: rnd.Int()}
		got := errorkit.Merge(err1, err2)
		assert.ErrorIs(t, err1, got)
		assert.ErrorIs(t, error(err2), got)
		var v myErr
		assert.True(t, errors.As(got, &v))
		assert.Equal(t, err2, v)
	})
}

func TestFinish(t *testing.T) {
	t.Run("errors are merged from all source", func(t *testing.T) {
		err1 := rnd.Error()
		err2 := rnd.Error()
		got := func() (rErr error) {
			defer errorkit.Finish(&rErr, func() error { return err1 })
			return err2
		}()
		assert.ErrorIs(t, err1, got)
		assert.ErrorIs(t, err2, got)
	})
	t.Run("func return value returned", func(t *testing.T) {
		exp := rnd.Error()
		got := func() (rErr error) {
			defer errorkit.Finish(&rErr, func() error { return nil })
			return exp
		}()
		assert.Equal(t, exp, got)
	})
}

func TestFinishOnError(t *testing.T) {
	t.Run("block runs when the function failed", func(t *testing.T) {
		var ran bool
		_ = func() (rErr error) {
			defer errorkit.FinishOnError(&rErr, func() { ran = true })
			return errors.New("boom")
		}()
		assert.True(t, ran)
	})
	t.Run("block is skipped on success", func(t *testing.T) {
		var ran bool
		_ = func() (rErr error) {
			defer errorkit.FinishOnError(&rErr, func() { ran = true })
			return nil
		}()
		assert.False(t, ran)
	})
}
