package aggregate

import (
	"context"

	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/pkg/errorkit"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/store"
)

// Persist saves the aggregate of the root.
func (m Mapper) Persist(ctx context.Context, root any) (any, error) {
	roots, err := m.PersistAll(ctx, []any{root})
	if err != nil {
		return nil, err
	}
	return roots[0], nil
}

// PersistAll saves the aggregates of the roots.
//
// New owned members receive an identifier, and owned members that were removed
// from the aggregate since it was last saved are deleted from the store.
// When the call fails, the identifiers given out during the call are taken back,
// while the writes already made are left to the driver's transaction handling.
func (m Mapper) PersistAll(ctx context.Context, roots []any) (_ []any, rErr error) {
	if roots == nil {
		return nil, ErrInvalidAggregateRoot.F("nil root collection")
	}
	if len(roots) == 0 {
		return roots, nil
	}
	rootCfg, err := m.rootConfig(roots)
	if err != nil {
		return nil, err
	}

	opCtx := logging.ContextWith(ctx,
		logging.Field("aggregate.operation", "persist"),
		logging.Field("aggregate.type", rootCfg.Name()))

	// the identifiers are taken back after the transaction is finished,
	// so a failing commit also resets them.
	var fresh []*savedObject
	defer errorkit.FinishOnError(&rErr, func() { m.resetIDs(opCtx, fresh) })

	ctx, finishTx, err := m.beginTx(opCtx)
	if err != nil {
		return nil, err
	}
	defer finishTx(&rErr)

	objects := newObjectCollector(m.Registry)
	if err := traverse[any](objects, roots); err != nil {
		return nil, err
	}

	var rootIDs []store.ID
	for _, root := range roots {
		if id, ok := rootCfg.LookupID(root); ok {
			rootIDs = append(rootIDs, id)
		}
	}
	previous := NewLoadedSet()
	if 0 < len(rootIDs) {
		if err := m.loadGraph(ctx, rootCfg, rootIDs, ownedOnly, previous); err != nil {
			return nil, err
		}
	}

	if err := m.pair(objects, previous); err != nil {
		return nil, err
	}

	for _, so := range objects.order {
		if so.IsNew {
			fresh = append(fresh, so)
		}
	}

	types := objects.types
	for _, t := range previous.Types() {
		if cfg, err := m.Registry.ConfigForName(t); err == nil && !containsConfig(types, cfg) {
			types = append(types, cfg)
		}
	}
	order := writeOrder(types)

	if err := m.assignIDs(ctx, order, fresh); err != nil {
		return nil, err
	}
	if err := m.wireForeignKeys(objects); err != nil {
		return nil, err
	}
	deleted, err := m.deleteOrphans(ctx, order, objects, previous)
	if err != nil {
		return nil, err
	}
	if err := m.write(ctx, order, objects); err != nil {
		return nil, err
	}

	m.logger().Debug(ctx, "aggregates persisted",
		logging.Field("roots", len(roots)),
		logging.Field("inserted", len(fresh)),
		logging.Field("updated", len(objects.order)-len(fresh)),
		logging.Field("deleted", deleted))
	return roots, nil
}

// pair serializes every owned object, and pairs it with its row.
// Objects with an identifier reuse their previously loaded row.
func (m Mapper) pair(objects *objectCollector, previous *LoadedSet) error {
	for _, so := range objects.order {
		values, err := so.Config.Serialize(so.Object)
		if err != nil {
			return err
		}
		if values == nil {
			values = store.Values{}
		}
		id, ok := so.Config.LookupID(so.Object)
		if !ok {
			so.IsNew = true
			so.Row = store.Row{Values: values}
			continue
		}
		row := store.Row{ID: id, Values: store.Values{}}
		if e, ok := previous.Lookup(so.Config.Name(), id); ok {
			row = e.Row.Clone()
			row.ID = id
		}
		for k, v := range values {
			row.Values[k] = v
		}
		so.Row = row
	}
	return nil
}

func (m Mapper) assignIDs(ctx context.Context, order []mapping.Config, fresh []*savedObject) error {
	for _, cfg := range order {
		var group []*savedObject
		for _, so := range fresh {
			if so.Config.Name() == cfg.Name() {
				group = append(group, so)
			}
		}
		if len(group) == 0 {
			continue
		}
		ids, err := m.Driver.PrimaryKeys(ctx, cfg.Table(), len(group))
		if err != nil {
			return err
		}
		if len(ids) != len(group) {
			return ErrInvalidPrimaryKeyValue.F("%d primary keys were requested for %s, but %d were allocated", len(group), cfg.Table(), len(ids))
		}
		for i, so := range group {
			if err := cfg.SetID(so.Object, ids[i]); err != nil {
				return err
			}
			id, ok := cfg.LookupID(so.Object)
			if !ok {
				return ErrInvalidPrimaryKeyValue.F("%s received an absent identifier: %v", cfg.Name(), ids[i])
			}
			so.Row.ID = id
		}
	}
	return nil
}

func (m Mapper) resetIDs(ctx context.Context, fresh []*savedObject) {
	for _, so := range fresh {
		so.Row.ID = nil
		if err := so.Config.SetID(so.Object, nil); err != nil {
			m.logger().Warn(ctx, "failed to reset the identifier of an unsaved object",
				logging.Field("type", so.Config.Name()),
				logging.ErrField(err))
		}
	}
}

// wireForeignKeys sets the foreign key columns of the rows from the final identifiers.
//
// The columns an owned association manages on its children are cleared first,
// then the belongs-to references are set,
// and finally the owned has-many and has-one associations claim their children.
func (m Mapper) wireForeignKeys(objects *objectCollector) error {
	incoming := m.incomingColumns()
	for _, so := range objects.order {
		for _, col := range incoming[so.Config.Name()] {
			so.Row.Values[col] = nil
		}
	}
	for _, so := range objects.order {
		for _, a := range so.Config.Associations() {
			if a.Kind() != mapping.BelongsTo {
				continue
			}
			if err := m.wireBelongsTo(objects, so, a); err != nil {
				return err
			}
		}
	}
	for _, so := range objects.order {
		for _, a := range so.Config.Associations() {
			if a.Kind() == mapping.BelongsTo || !a.Owned() {
				continue
			}
			for _, nb := range a.Neighbours(so.Object) {
				child, ok := objects.Lookup(nb)
				if !ok {
					continue
				}
				child.Row.Values[a.ForeignKey()] = so.Row.ID
				if a.ForeignType() != "" {
					child.Row.Values[a.ForeignType()] = so.Config.Name()
				}
			}
		}
	}
	return nil
}

func (m Mapper) wireBelongsTo(objects *objectCollector, so *savedObject, a mapping.Association) error {
	so.Row.Values[a.ForeignKey()] = nil
	if a.ForeignType() != "" {
		so.Row.Values[a.ForeignType()] = nil
	}
	neighbours := a.Neighbours(so.Object)
	if len(neighbours) == 0 {
		return nil
	}
	target := neighbours[0]
	cfg, err := resolveTarget(m.Registry, a, target)
	if err != nil {
		return err
	}
	var id store.ID
	if t, ok := objects.Lookup(target); ok {
		id = t.Row.ID
	} else if tid, ok := cfg.LookupID(target); ok {
		id = tid
	}
	if store.IsAbsentID(id) {
		return ErrUnsavedReference.F("%s.%s points to an unsaved %s", so.Config.Name(), a.Name(), cfg.Name())
	}
	so.Row.Values[a.ForeignKey()] = id
	if a.ForeignType() != "" {
		so.Row.Values[a.ForeignType()] = cfg.Name()
	}
	return nil
}

// incomingColumns lists per type name the columns owned has-many and has-one associations manage on it.
func (m Mapper) incomingColumns() map[string][]string {
	out := make(map[string][]string)
	add := func(typeName, col string) {
		for _, c := range out[typeName] {
			if c == col {
				return
			}
		}
		out[typeName] = append(out[typeName], col)
	}
	for _, cfg := range m.Registry.Configs() {
		for _, a := range cfg.Associations() {
			if a.Kind() == mapping.BelongsTo || !a.Owned() {
				continue
			}
			for _, target := range a.Targets() {
				add(target, a.ForeignKey())
				if a.ForeignType() != "" {
					add(target, a.ForeignType())
				}
			}
		}
	}
	return out
}

// deleteOrphans removes the previously saved owned rows which are no longer part of the aggregates.
func (m Mapper) deleteOrphans(ctx context.Context, order []mapping.Config, objects *objectCollector, previous *LoadedSet) (int, error) {
	kept := make(map[identityKey]struct{}, len(objects.order))
	for _, so := range objects.order {
		if so.IsNew {
			continue
		}
		kept[identityKey{Type: so.Config.Name(), ID: store.IDKey(so.Row.ID)}] = struct{}{}
	}
	var deleted int
	for _, cfg := range reverseConfigs(order) {
		var ids []store.ID
		for _, e := range previous.ByType(cfg.Name()) {
			if _, ok := kept[identityKey{Type: cfg.Name(), ID: store.IDKey(e.Row.ID)}]; ok {
				continue
			}
			ids = append(ids, e.Row.ID)
		}
		if len(ids) == 0 {
			continue
		}
		if err := m.Driver.DeleteByIDs(ctx, cfg.Table(), ids); err != nil {
			return deleted, err
		}
		deleted += len(ids)
	}
	return deleted, nil
}

func (m Mapper) write(ctx context.Context, order []mapping.Config, objects *objectCollector) error {
	for _, cfg := range order {
		var inserts, updates []store.Row
		for _, so := range objects.order {
			if so.Config.Name() != cfg.Name() {
				continue
			}
			if so.IsNew {
				inserts = append(inserts, so.Row)
			} else {
				updates = append(updates, so.Row)
			}
		}
		if 0 < len(inserts) {
			if err := m.Driver.Insert(ctx, cfg.Table(), inserts); err != nil {
				return err
			}
		}
		if 0 < len(updates) {
			if err := m.Driver.Update(ctx, cfg.Table(), updates); err != nil {
				return err
			}
		}
	}
	return nil
}
