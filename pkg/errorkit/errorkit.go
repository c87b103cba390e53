// Package errorkit holds the error handling helpers shared by the aggregate mapper and its adapters.
package errorkit

// Finish is a helper function that can be used from a deferred context.
//
// Usage:
//
//	defer errorkit.Finish(&returnError, rows.Close)
func Finish(returnErr *error, blk func() error) {
	*returnErr = Merge(*returnErr, blk())
}

// FinishOnError is a helper function that can be used from a deferred context.
// It runs the block conditionally, when the return error, which was assigned by the `return` keyword is not nil.
//
// Usage:
//
//	defer errorkit.FinishOnError(&returnError, func() { rollback(ctx) })
func FinishOnError(returnErr *error, blk func()) {
	if returnErr == nil || *returnErr == nil {
		return
	}
	blk()
}
