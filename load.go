package aggregate

import (
	"context"
	"reflect"

	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/store"
)

// LoadOne loads the aggregate of the given root identifier.
// The returned bool reports whether the root was found.
func (m Mapper) LoadOne(ctx context.Context, typ reflect.Type, id store.ID, opts ...LoadOption) (any, bool, error) {
	roots, err := m.LoadMany(ctx, typ, []store.ID{id}, opts...)
	if err != nil {
		return nil, false, err
	}
	if len(roots) == 0 {
		return nil, false, nil
	}
	return roots[0], true, nil
}

// LoadMany loads the aggregates of the given root identifiers, in the requested order.
// Identifiers without a stored root are skipped.
//
// Owned members are loaded recursively, while non-owned references are loaded one step deep,
// without their own associations.
func (m Mapper) LoadMany(ctx context.Context, typ reflect.Type, ids []store.ID, opts ...LoadOption) ([]any, error) {
	if ids == nil {
		return nil, ErrInvalidAggregateRoot.F("nil root identifier collection")
	}
	for i, id := range ids {
		if store.IsAbsentID(id) {
			return nil, ErrInvalidAggregateRoot.F("root identifier at index %d is missing", i)
		}
	}
	if len(ids) == 0 {
		return []any{}, nil
	}
	cfg, err := m.Registry.ConfigForType(typ)
	if err != nil {
		return nil, err
	}
	ctx = logging.ContextWith(ctx,
		logging.Field("aggregate.operation", "load"),
		logging.Field("aggregate.type", cfg.Name()))
	c := toLoadConfig(opts)

	ls := NewLoadedSet()
	if err := m.loadGraph(ctx, cfg, ids, withBoundary, ls); err != nil {
		return nil, err
	}
	for _, e := range ls.All() {
		e := e
		obj, err := c.IdentityMap.GetAndSet(e.Config.Name(), e.Row.ID, func() (any, error) {
			return e.Config.Deserialize(e.Row)
		})
		if err != nil {
			return nil, err
		}
		e.object = obj
	}
	for _, e := range ls.All() {
		if !e.Expanded {
			continue
		}
		if err := m.associate(ls, e); err != nil {
			return nil, err
		}
	}

	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if e, ok := ls.Lookup(cfg.Name(), id); ok {
			out = append(out, e.object)
		}
	}
	m.logger().Debug(ctx, "aggregates loaded",
		logging.Field("requested", len(ids)),
		logging.Field("found", len(out)),
		logging.Field("rows", ls.Len()))
	return out, nil
}

// associate fills the association slots of the entry's object from the LoadedSet.
func (m Mapper) associate(ls *LoadedSet, e *Entry) error {
	for _, a := range e.Config.Associations() {
		var neighbours []any
		if a.Kind() == mapping.BelongsTo {
			fk := e.Row.Values[a.ForeignKey()]
			if !store.IsAbsentID(fk) {
				cfg, err := remoteConfig(m.Registry, a, e.Row)
				if err != nil {
					return err
				}
				if t, ok := ls.Lookup(cfg.Name(), fk); ok {
					neighbours = append(neighbours, t.object)
				}
			}
		} else {
			for _, name := range a.Targets() {
				where := childFilter(e, a)
				for _, child := range ls.ByType(name) {
					if store.Match(child.Row.Values, where) {
						neighbours = append(neighbours, child.object)
					}
				}
			}
		}
		if err := a.Associate(e.object, neighbours); err != nil {
			return err
		}
	}
	return nil
}
