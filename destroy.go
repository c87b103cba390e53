package aggregate

import (
	"context"
	"reflect"

	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/store"
)

// Destroy deletes the aggregate of the root.
func (m Mapper) Destroy(ctx context.Context, root any) error {
	return m.DestroyAll(ctx, []any{root})
}

// DestroyAll deletes the aggregates of the roots.
// Every root must have an identifier.
func (m Mapper) DestroyAll(ctx context.Context, roots []any) error {
	if roots == nil {
		return ErrInvalidAggregateRoot.F("nil root collection")
	}
	if len(roots) == 0 {
		return nil
	}
	cfg, err := m.rootConfig(roots)
	if err != nil {
		return err
	}
	ids := make([]store.ID, 0, len(roots))
	for i, root := range roots {
		id, ok := cfg.LookupID(root)
		if !ok {
			return ErrInvalidPrimaryKeyValue.F("root at index %d has no identifier", i)
		}
		ids = append(ids, id)
	}
	return m.DestroyAllByID(ctx, cfg.Type(), ids)
}

// DestroyByID deletes the aggregate of the given root identifier.
func (m Mapper) DestroyByID(ctx context.Context, typ reflect.Type, id store.ID) error {
	return m.DestroyAllByID(ctx, typ, []store.ID{id})
}

// DestroyAllByID deletes the root rows and every owned member reachable from them.
// Unknown identifiers are ignored.
func (m Mapper) DestroyAllByID(ctx context.Context, typ reflect.Type, ids []store.ID) (rErr error) {
	if ids == nil {
		return ErrInvalidAggregateRoot.F("nil root identifier collection")
	}
	for i, id := range ids {
		if store.IsAbsentID(id) {
			return ErrInvalidPrimaryKeyValue.F("identifier at index %d is missing", i)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	cfg, err := m.Registry.ConfigForType(typ)
	if err != nil {
		return err
	}

	ctx = logging.ContextWith(ctx,
		logging.Field("aggregate.operation", "destroy"),
		logging.Field("aggregate.type", cfg.Name()))
	ctx, finishTx, err := m.beginTx(ctx)
	if err != nil {
		return err
	}
	defer finishTx(&rErr)

	ls := NewLoadedSet()
	if err := m.loadGraph(ctx, cfg, ids, ownedOnly, ls); err != nil {
		return err
	}
	var types = make([]mapping.Config, 0, len(ls.Types()))
	for _, name := range ls.Types() {
		c, err := m.Registry.ConfigForName(name)
		if err != nil {
			return err
		}
		types = append(types, c)
	}
	for _, c := range reverseConfigs(writeOrder(types)) {
		entries := ls.ByType(c.Name())
		rowIDs := make([]store.ID, 0, len(entries))
		for _, e := range entries {
			rowIDs = append(rowIDs, e.Row.ID)
		}
		if err := m.Driver.DeleteByIDs(ctx, c.Table(), rowIDs); err != nil {
			return err
		}
	}
	m.logger().Debug(ctx, "aggregates destroyed",
		logging.Field("requested", len(ids)),
		logging.Field("deleted", ls.Len()))
	return nil
}
