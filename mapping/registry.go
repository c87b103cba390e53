// Package mapping holds the immutable mapping configuration of the domain types an aggregate is made of.
package mapping

import (
	"reflect"
	"sort"

	"go.llib.dev/aggregate/pkg/errorkit"
)

const (
	ErrUnknownType   errorkit.Error = "mapping: unknown type"
	ErrInvalidConfig errorkit.Error = "mapping: invalid configuration"
)

// Registry maps domain types to their Config.
// It is constructed once, and it is read-only afterwards, thus safe to share.
type Registry struct {
	configs []Config
	byName  map[string]Config
	byType  map[reflect.Type]Config
}

// NewRegistry builds a Registry and validates the configurations against each other.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Config),
		byType: make(map[reflect.Type]Config),
	}
	for _, c := range configs {
		if c == nil {
			return nil, ErrInvalidConfig.F("nil config")
		}
		if c.Name() == "" {
			return nil, ErrInvalidConfig.F("%s config has no name", c.Type())
		}
		if c.Type().Kind() != reflect.Struct {
			return nil, ErrInvalidConfig.F("%s must map a struct type, got %s", c.Name(), c.Type())
		}
		if _, ok := r.byName[c.Name()]; ok {
			return nil, ErrInvalidConfig.F("%s is registered more than once", c.Name())
		}
		if oth, ok := r.byType[c.Type()]; ok {
			return nil, ErrInvalidConfig.F("%s is already mapped by %s", c.Type(), oth.Name())
		}
		if v, ok := c.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		r.configs = append(r.configs, c)
		r.byName[c.Name()] = c
		r.byType[c.Type()] = c
	}
	for _, c := range r.configs {
		if err := r.validateAssociations(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is the panicking variant of NewRegistry, meant for package level initialisation.
func MustRegistry(configs ...Config) *Registry {
	r, err := NewRegistry(configs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) validateAssociations(c Config) error {
	names := map[string]struct{}{}
	for _, a := range c.Associations() {
		if a == nil {
			return ErrInvalidConfig.F("%s has a nil association", c.Name())
		}
		if _, ok := names[a.Name()]; ok {
			return ErrInvalidConfig.F("%s.%s association is defined twice", c.Name(), a.Name())
		}
		names[a.Name()] = struct{}{}
		switch a.Kind() {
		case HasMany, HasOne, BelongsTo:
		default:
			return ErrInvalidConfig.F("%s.%s has an unknown kind: %s", c.Name(), a.Name(), a.Kind())
		}
		if a.ForeignKey() == "" {
			return ErrInvalidConfig.F("%s.%s has no foreign key column", c.Name(), a.Name())
		}
		targets := a.Targets()
		if len(targets) == 0 {
			return ErrInvalidConfig.F("%s.%s has no target type", c.Name(), a.Name())
		}
		if 1 < len(targets) && a.ForeignType() == "" {
			return ErrInvalidConfig.F("%s.%s is polymorphic, but it has no foreign type column", c.Name(), a.Name())
		}
		for _, name := range targets {
			if _, ok := r.byName[name]; !ok {
				return ErrUnknownType.F("%s.%s points to %q", c.Name(), a.Name(), name)
			}
		}
	}
	return nil
}

// ConfigFor returns the Config of a domain object.
// The object must be a non nil pointer to a registered struct type.
func (r *Registry) ConfigFor(ptr any) (Config, error) {
	if ptr == nil {
		return nil, ErrUnknownType.F("<nil>")
	}
	typ := reflect.TypeOf(ptr)
	if typ.Kind() != reflect.Pointer {
		return nil, ErrUnknownType.F("%s is not a pointer", typ)
	}
	return r.ConfigForType(typ.Elem())
}

// ConfigForType returns the Config of a struct type.
// Pointer types are resolved to their element type.
func (r *Registry) ConfigForType(typ reflect.Type) (Config, error) {
	if typ == nil {
		return nil, ErrUnknownType.F("<nil>")
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	c, ok := r.byType[typ]
	if !ok {
		return nil, ErrUnknownType.F("%s", typ)
	}
	return c, nil
}

// ConfigForName returns the Config registered with the given name.
// Polymorphic discriminator values are resolved with it.
func (r *Registry) ConfigForName(name string) (Config, error) {
	c, ok := r.byName[name]
	if !ok {
		return nil, ErrUnknownType.F("%q", name)
	}
	return c, nil
}

// Names returns the sorted registered type names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configs returns the configurations in registration order.
func (r *Registry) Configs() []Config {
	return append([]Config(nil), r.configs...)
}
