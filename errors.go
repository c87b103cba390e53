package aggregate

import "go.llib.dev/aggregate/pkg/errorkit"

const (
	// ErrInvalidAggregateRoot is returned when a root argument, or the root collection itself, is nil.
	ErrInvalidAggregateRoot errorkit.Error = "aggregate: invalid aggregate root"
	// ErrInvalidPrimaryKeyValue is returned when an identifier passed to a destroy operation is missing.
	ErrInvalidPrimaryKeyValue errorkit.Error = "aggregate: invalid primary key value"
	// ErrUnsavedReference is returned when an aggregate references an object outside of it which has no identifier yet.
	ErrUnsavedReference errorkit.Error = "aggregate: referenced object is not saved"
)
