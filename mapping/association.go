package mapping

import (
	"fmt"

	"go.llib.dev/frameless/pkg/zerokit"
)

// Kind is the cardinality of an association.
type Kind int

const (
	// HasMany associations keep the foreign key on the child rows.
	HasMany Kind = iota + 1
	// HasOne associations keep the foreign key on the child row.
	HasOne
	// BelongsTo associations keep the foreign key on the owner's row.
	BelongsTo
)

func (k Kind) String() string {
	switch k {
	case HasMany:
		return "has_many"
	case HasOne:
		return "has_one"
	case BelongsTo:
		return "belongs_to"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Association describes an association slot of a domain type.
type Association interface {
	Name() string
	Kind() Kind
	// Owned tells if the lifecycle of the associated objects is bound to the owner's aggregate.
	Owned() bool
	// ForeignKey is the column name holding the referenced identifier.
	// For HasMany and HasOne it is a column of the target table,
	// for BelongsTo it is a column of the owner's table.
	ForeignKey() string
	// ForeignType is the discriminator column name of a polymorphic association.
	// It lives in the same table as the ForeignKey, and it is empty for monomorphic associations.
	ForeignType() string
	// Targets are the registered type names the association may point to.
	Targets() []string
	// Neighbours returns the objects currently in the association slot of the owner.
	Neighbours(owner any) []any
	// Associate replaces the content of the association slot of the owner.
	Associate(owner any, neighbours []any) error
}

// Ref holds the descriptive part of an association.
type Ref struct {
	// Name of the association, used in error messages and logging.
	Name string
	// Targets are the registered type names the association can point to.
	// More than one target makes the association polymorphic.
	Targets []string
	// Owned marks the association as part of the aggregate.
	Owned bool
	// ForeignKey is the identifier column name.
	ForeignKey string
	// ForeignType is the discriminator column name of a polymorphic association.
	ForeignType string
}

// HasManyOf describes an association where the children reference the owner P.
// C is the element type held by the slot, usually a pointer to a registered struct,
// or an interface in case of a polymorphic association.
func HasManyOf[P, C any](ref Ref, get func(*P) []C, set func(*P, []C)) Association {
	return hasMany[P, C]{ref: ref, get: get, set: set}
}

// HasOneOf describes an association where a single child references the owner P.
func HasOneOf[P, C any](ref Ref, get func(*P) C, set func(*P, C)) Association {
	return single[P, C]{ref: ref, kind: HasOne, get: get, set: set}
}

// BelongsToOf describes an association where the owner P references its target.
func BelongsToOf[P, C any](ref Ref, get func(*P) C, set func(*P, C)) Association {
	return single[P, C]{ref: ref, kind: BelongsTo, get: get, set: set}
}

type hasMany[P, C any] struct {
	ref Ref
	get func(*P) []C
	set func(*P, []C)
}

func (a hasMany[P, C]) Name() string        { return a.ref.Name }
func (a hasMany[P, C]) Kind() Kind          { return HasMany }
func (a hasMany[P, C]) Owned() bool         { return a.ref.Owned }
func (a hasMany[P, C]) ForeignKey() string  { return a.ref.ForeignKey }
func (a hasMany[P, C]) ForeignType() string { return a.ref.ForeignType }
func (a hasMany[P, C]) Targets() []string   { return append([]string(nil), a.ref.Targets...) }

func (a hasMany[P, C]) Neighbours(owner any) []any {
	p, ok := owner.(*P)
	if !ok || p == nil {
		return nil
	}
	var out []any
	for _, c := range a.get(p) {
		if any(c) == nil || zerokit.IsZero(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (a hasMany[P, C]) Associate(owner any, neighbours []any) error {
	p, ok := owner.(*P)
	if !ok || p == nil {
		return ErrInvalidConfig.F("%s association expects a *%s owner, got %T", a.ref.Name, typeName[P](), owner)
	}
	vs := make([]C, 0, len(neighbours))
	for _, n := range neighbours {
		c, ok := n.(C)
		if !ok {
			return ErrInvalidConfig.F("%s association cannot hold %T", a.ref.Name, n)
		}
		vs = append(vs, c)
	}
	a.set(p, vs)
	return nil
}

type single[P, C any] struct {
	ref  Ref
	kind Kind
	get  func(*P) C
	set  func(*P, C)
}

func (a single[P, C]) Name() string        { return a.ref.Name }
func (a single[P, C]) Kind() Kind          { return a.kind }
func (a single[P, C]) Owned() bool         { return a.ref.Owned }
func (a single[P, C]) ForeignKey() string  { return a.ref.ForeignKey }
func (a single[P, C]) ForeignType() string { return a.ref.ForeignType }
func (a single[P, C]) Targets() []string   { return append([]string(nil), a.ref.Targets...) }

func (a single[P, C]) Neighbours(owner any) []any {
	p, ok := owner.(*P)
	if !ok || p == nil {
		return nil
	}
	c := a.get(p)
	if any(c) == nil || zerokit.IsZero(c) {
		return nil
	}
	return []any{c}
}

func (a single[P, C]) Associate(owner any, neighbours []any) error {
	p, ok := owner.(*P)
	if !ok || p == nil {
		return ErrInvalidConfig.F("%s association expects a *%s owner, got %T", a.ref.Name, typeName[P](), owner)
	}
	var c C
	if 0 < len(neighbours) {
		v, ok := neighbours[0].(C)
		if !ok {
			return ErrInvalidConfig.F("%s association cannot hold %T", a.ref.Name, neighbours[0])
		}
		c = v
	}
	a.set(p, c)
	return nil
}
