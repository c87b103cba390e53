package logging

import (
	"context"
)

type detailsKey struct{}

// ContextWith returns a context that carries the given logging details,
// after the details already attached to ctx.
// Every log entry made with the returned context will contain them.
func ContextWith(ctx context.Context, ds ...Detail) context.Context {
	if len(ds) == 0 {
		return ctx
	}
	prev := detailsOf(ctx)
	all := make([]Detail, 0, len(prev)+len(ds))
	all = append(append(all, prev...), ds...)
	return context.WithValue(ctx, detailsKey{}, all)
}

func detailsOf(ctx context.Context) []Detail {
	if ctx == nil {
		return nil
	}
	ds, _ := ctx.Value(detailsKey{}).([]Detail)
	return ds
}
