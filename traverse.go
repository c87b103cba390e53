package aggregate

import (
	"context"

	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/port/store"
)

type step int

const (
	// skip leaves the association untouched.
	skip step = iota
	// hop records the neighbours without traversing their associations.
	hop
	// follow records the neighbours and traverses their associations.
	follow
)

type visitor[N any] interface {
	// Record registers the node and returns its canonical instance.
	Record(N) (N, error)
	// Expand marks the node as expanded.
	// It returns false when the node was already expanded, and should be treated as a leaf.
	Expand(N) bool
	Associations(N) []mapping.Association
	Follow(N, mapping.Association) step
	Neighbours(N, mapping.Association) ([]N, error)
}

// traverse walks the graph depth first from the roots.
// Every node is recorded when it is discovered, and expanded at most once,
// which keeps cyclic and self-referencing graphs finite.
func traverse[N any](v visitor[N], roots []N) error {
	stack := make([]N, 0, len(roots))
	recorded := make([]N, 0, len(roots))
	for _, root := range roots {
		n, err := v.Record(root)
		if err != nil {
			return err
		}
		recorded = append(recorded, n)
	}
	for i := len(recorded) - 1; 0 <= i; i-- {
		stack = append(stack, recorded[i])
	}
	for 0 < len(stack) {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !v.Expand(n) {
			continue
		}
		var next []N
		for _, a := range v.Associations(n) {
			st := v.Follow(n, a)
			if st == skip {
				continue
			}
			neighbours, err := v.Neighbours(n, a)
			if err != nil {
				return err
			}
			for _, nb := range neighbours {
				c, err := v.Record(nb)
				if err != nil {
					return err
				}
				if st == follow {
					next = append(next, c)
				}
			}
		}
		for i := len(next) - 1; 0 <= i; i-- {
			stack = append(stack, next[i])
		}
	}
	return nil
}

// savedObject is an owned domain object collected for persistence, paired with its row.
type savedObject struct {
	Config mapping.Config
	Object any
	Row    store.Row
	IsNew  bool

	expanded bool
}

// objectCollector collects the owned members of aggregates.
// Objects are keyed by pointer identity, which stays stable while identifiers are assigned.
type objectCollector struct {
	registry *mapping.Registry
	objects  map[any]*savedObject
	order    []*savedObject
	types    []mapping.Config
}

func newObjectCollector(r *mapping.Registry) *objectCollector {
	return &objectCollector{registry: r, objects: make(map[any]*savedObject)}
}

func (c *objectCollector) Record(obj any) (any, error) {
	if _, ok := c.objects[obj]; ok {
		return obj, nil
	}
	cfg, err := c.registry.ConfigFor(obj)
	if err != nil {
		return nil, err
	}
	so := &savedObject{Config: cfg, Object: obj}
	c.objects[obj] = so
	c.order = append(c.order, so)
	if !containsConfig(c.types, cfg) {
		c.types = append(c.types, cfg)
	}
	return obj, nil
}

func (c *objectCollector) Expand(obj any) bool {
	so := c.objects[obj]
	if so.expanded {
		return false
	}
	so.expanded = true
	return true
}

func (c *objectCollector) Associations(obj any) []mapping.Association {
	return c.objects[obj].Config.Associations()
}

func (c *objectCollector) Follow(_ any, a mapping.Association) step {
	if a.Owned() {
		return follow
	}
	return skip
}

func (c *objectCollector) Neighbours(obj any, a mapping.Association) ([]any, error) {
	neighbours := a.Neighbours(obj)
	for _, nb := range neighbours {
		if _, err := resolveTarget(c.registry, a, nb); err != nil {
			return nil, err
		}
	}
	return neighbours, nil
}

func (c *objectCollector) Lookup(obj any) (*savedObject, bool) {
	so, ok := c.objects[obj]
	return so, ok
}

// resolveTarget finds the Config of a neighbour object, and checks that the association may point to it.
func resolveTarget(r *mapping.Registry, a mapping.Association, obj any) (mapping.Config, error) {
	cfg, err := r.ConfigFor(obj)
	if err != nil {
		return nil, err
	}
	for _, name := range a.Targets() {
		if name == cfg.Name() {
			return cfg, nil
		}
	}
	return nil, mapping.ErrUnknownType.F("%s association cannot point to %s", a.Name(), cfg.Name())
}

type rowMode int

const (
	// ownedOnly follows only the owned associations.
	ownedOnly rowMode = iota
	// withBoundary also fetches the rows behind non-owned associations, without traversing them.
	withBoundary
)

// rowCollector walks persisted rows through the store and fills a LoadedSet.
type rowCollector struct {
	ctx      context.Context
	registry *mapping.Registry
	driver   store.Driver
	mode     rowMode
	set      *LoadedSet
}

func (c *rowCollector) Record(e *Entry) (*Entry, error) {
	canonical, _ := c.set.Add(e.Config, e.Row)
	return canonical, nil
}

func (c *rowCollector) Expand(e *Entry) bool {
	if e.Expanded {
		return false
	}
	e.Expanded = true
	return true
}

func (c *rowCollector) Associations(e *Entry) []mapping.Association {
	return e.Config.Associations()
}

func (c *rowCollector) Follow(_ *Entry, a mapping.Association) step {
	switch {
	case a.Owned():
		return follow
	case c.mode == withBoundary:
		return hop
	default:
		return skip
	}
}

func (c *rowCollector) Neighbours(e *Entry, a mapping.Association) ([]*Entry, error) {
	if a.Kind() == mapping.BelongsTo {
		return c.belongsTo(e, a)
	}
	return c.children(e, a)
}

func (c *rowCollector) belongsTo(e *Entry, a mapping.Association) ([]*Entry, error) {
	fk := e.Row.Values[a.ForeignKey()]
	if store.IsAbsentID(fk) {
		return nil, nil
	}
	cfg, err := remoteConfig(c.registry, a, e.Row)
	if err != nil {
		return nil, err
	}
	if known, ok := c.set.Lookup(cfg.Name(), fk); ok {
		return []*Entry{known}, nil
	}
	rows, err := c.driver.FindByIDs(c.ctx, cfg.Table(), []store.ID{fk})
	if err != nil {
		return nil, err
	}
	return toEntries(cfg, rows), nil
}

func (c *rowCollector) children(e *Entry, a mapping.Association) ([]*Entry, error) {
	var out []*Entry
	for _, name := range a.Targets() {
		cfg, err := c.registry.ConfigForName(name)
		if err != nil {
			return nil, err
		}
		rows, err := c.driver.FindBy(c.ctx, cfg.Table(), childFilter(e, a))
		if err != nil {
			return nil, err
		}
		out = append(out, toEntries(cfg, rows)...)
	}
	return out, nil
}

// childFilter selects the rows referencing the owner through the association.
func childFilter(owner *Entry, a mapping.Association) store.Values {
	where := store.Values{a.ForeignKey(): owner.Row.ID}
	if a.ForeignType() != "" {
		where[a.ForeignType()] = owner.Config.Name()
	}
	return where
}

// remoteConfig resolves the target type of a belongs-to association from the owner's row.
// Polymorphic associations name the target in their discriminator column.
func remoteConfig(r *mapping.Registry, a mapping.Association, row store.Row) (mapping.Config, error) {
	targets := a.Targets()
	if a.ForeignType() == "" {
		return r.ConfigForName(targets[0])
	}
	name, err := store.ValueOf[string](row.Values, a.ForeignType())
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t == name {
			return r.ConfigForName(name)
		}
	}
	return nil, mapping.ErrUnknownType.F("%s association discriminator holds %q", a.Name(), name)
}

func toEntries(cfg mapping.Config, rows []store.Row) []*Entry {
	out := make([]*Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, &Entry{Config: cfg, Row: row})
	}
	return out
}

func containsConfig(cs []mapping.Config, c mapping.Config) bool {
	for _, oth := range cs {
		if oth.Name() == c.Name() {
			return true
		}
	}
	return false
}
