package aggregate

import (
	"context"
	"reflect"

	"go.llib.dev/aggregate/port/store"
)

// Repository is a typed facade over the Mapper for aggregates rooted at ENT.
type Repository[ENT any] struct {
	Mapper Mapper
}

func (r Repository[ENT]) Persist(ctx context.Context, ent *ENT) error {
	_, err := r.Mapper.Persist(ctx, ent)
	return err
}

func (r Repository[ENT]) PersistAll(ctx context.Context, ents []*ENT) error {
	_, err := r.Mapper.PersistAll(ctx, toAnySlice(ents))
	return err
}

func (r Repository[ENT]) LoadOne(ctx context.Context, id store.ID, opts ...LoadOption) (*ENT, bool, error) {
	v, found, err := r.Mapper.LoadOne(ctx, r.rType(), id, opts...)
	if err != nil || !found {
		return nil, found, err
	}
	return v.(*ENT), true, nil
}

func (r Repository[ENT]) LoadMany(ctx context.Context, ids []store.ID, opts ...LoadOption) ([]*ENT, error) {
	vs, err := r.Mapper.LoadMany(ctx, r.rType(), ids, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]*ENT, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.(*ENT))
	}
	return out, nil
}

func (r Repository[ENT]) Destroy(ctx context.Context, ent *ENT) error {
	return r.Mapper.Destroy(ctx, ent)
}

func (r Repository[ENT]) DestroyAll(ctx context.Context, ents []*ENT) error {
	return r.Mapper.DestroyAll(ctx, toAnySlice(ents))
}

func (r Repository[ENT]) DestroyByID(ctx context.Context, id store.ID) error {
	return r.Mapper.DestroyByID(ctx, r.rType(), id)
}

func (r Repository[ENT]) DestroyAllByID(ctx context.Context, ids []store.ID) error {
	return r.Mapper.DestroyAllByID(ctx, r.rType(), ids)
}

func (r Repository[ENT]) rType() reflect.Type {
	return reflect.TypeOf((*ENT)(nil)).Elem()
}

func toAnySlice[T any](vs []T) []any {
	if vs == nil {
		return nil
	}
	out := make([]any, 0, len(vs))
	for _, v := range vs {
		out = append(out, v)
	}
	return out
}
