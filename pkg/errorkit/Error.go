package errorkit

import (
	"fmt"
)

// Error is a string based error type, so sentinel errors can be declared as constants.
//
//	const ErrSomething errorkit.Error = "something is an error"
type Error string

func (err Error) Error() string { return string(err) }

// Wrap returns an error that matches both err and cause with errors.Is and errors.As.
func (err Error) Wrap(cause error) error {
	if cause == nil {
		return err
	}
	return kindError{kind: err, cause: cause}
}

// F is Wrap with a formatted cause.
func (err Error) F(format string, a ...any) error { return err.Wrap(fmt.Errorf(format, a...)) }

type kindError struct {
	kind  Error
	cause error
}

func (e kindError) Error() string {
	return fmt.Sprintf("[%s] %s", e.kind, e.cause)
}

func (e kindError) Unwrap() []error { return []error{e.kind, e.cause} }
