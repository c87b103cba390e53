package mapping

import (
	"reflect"

	"go.llib.dev/frameless/pkg/zerokit"
	"go.llib.dev/frameless/port/crud/extid"

	"go.llib.dev/aggregate/port/store"
)

// Config is the mapping configuration of a single domain type.
//
// Domain objects always travel as pointers to the configured struct type.
type Config interface {
	// Name is the registry name of the type, and the value of polymorphic discriminator columns.
	Name() string
	// Table is the table name the rows of the type are stored in.
	Table() string
	// Type is the struct type being mapped.
	Type() reflect.Type
	// LookupID returns the identifier of the object, and false when the object is not saved yet.
	LookupID(ptr any) (store.ID, bool)
	// SetID assigns the identifier to the object. A nil identifier resets it to absent.
	SetID(ptr any, id store.ID) error
	// Serialize turns the object's plain attributes into row values.
	// Foreign key columns are managed by the mapper and should not be part of the returned values.
	Serialize(ptr any) (store.Values, error)
	// Deserialize builds a new object from a row, associations left empty.
	Deserialize(row store.Row) (any, error)
	Associations() []Association
}

// EntityConfig is a Config built from accessor functions.
type EntityConfig[ENT, ID any] struct {
	// TypeName is the registry name of ENT.
	TypeName string
	// TableName [optional] is the table name.
	//
	// Default: TypeName
	TableName string
	// IDA [optional] is the ID Accessor.
	// Configure this if you don't use the ext:"id" tag or an ID field in your entity.
	IDA func(*ENT) *ID
	// ToValues maps the plain attributes of the entity into row values.
	ToValues func(*ENT) (store.Values, error)
	// FromValues populates the plain attributes of the entity from row values.
	FromValues func(store.Values, *ENT) error
	// Relations are the association slots of ENT.
	Relations []Association
}

func (c EntityConfig[ENT, ID]) Name() string { return c.TypeName }

func (c EntityConfig[ENT, ID]) Table() string {
	if c.TableName != "" {
		return c.TableName
	}
	return c.TypeName
}

func (c EntityConfig[ENT, ID]) Type() reflect.Type { return typeOf[ENT]() }

func (c EntityConfig[ENT, ID]) Associations() []Association {
	return append([]Association(nil), c.Relations...)
}

func (c EntityConfig[ENT, ID]) LookupID(ptr any) (store.ID, bool) {
	ent, ok := ptr.(*ENT)
	if !ok || ent == nil {
		return nil, false
	}
	id, ok := c.lookupID(ent)
	if !ok {
		return nil, false
	}
	return id, true
}

func (c EntityConfig[ENT, ID]) SetID(ptr any, id store.ID) error {
	ent, ok := ptr.(*ENT)
	if !ok || ent == nil {
		return ErrInvalidConfig.F("%s expects a *%s, got %T", c.TypeName, typeName[ENT](), ptr)
	}
	var v ID
	if id != nil {
		rv, err := store.ConvertID(id, typeOf[ID]())
		if err != nil {
			return ErrInvalidConfig.Wrap(err)
		}
		v = rv.Interface().(ID)
	}
	if err := c.setID(ent, v); err != nil {
		return ErrInvalidConfig.Wrap(err)
	}
	return nil
}

func (c EntityConfig[ENT, ID]) Serialize(ptr any) (store.Values, error) {
	ent, ok := ptr.(*ENT)
	if !ok || ent == nil {
		return nil, ErrInvalidConfig.F("%s expects a *%s, got %T", c.TypeName, typeName[ENT](), ptr)
	}
	if c.ToValues == nil {
		return store.Values{}, nil
	}
	vs, err := c.ToValues(ent)
	if err != nil {
		return nil, err
	}
	if vs == nil {
		vs = store.Values{}
	}
	return vs, nil
}

func (c EntityConfig[ENT, ID]) Deserialize(row store.Row) (any, error) {
	ent := new(ENT)
	if c.FromValues != nil {
		if err := c.FromValues(row.Values, ent); err != nil {
			return nil, err
		}
	}
	if err := c.SetID(ent, row.ID); err != nil {
		return nil, err
	}
	return ent, nil
}

// Validate checks that the identifier of ENT is reachable.
func (c EntityConfig[ENT, ID]) Validate() (rErr error) {
	if c.IDA != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			rErr = ErrInvalidConfig.F("%s: the identifier field of %s is not a %s (%v)", c.TypeName, typeName[ENT](), typeName[ID](), r)
		}
	}()
	if err := extid.Set(new(ENT), *new(ID)); err != nil {
		return ErrInvalidConfig.F("%s: %s has no ID field, and no IDA is configured (%v)", c.TypeName, typeName[ENT](), err)
	}
	return nil
}

func (c EntityConfig[ENT, ID]) lookupID(ent *ENT) (ID, bool) {
	if c.IDA != nil {
		id := *c.IDA(ent)
		return id, !zerokit.IsZero(id)
	}
	return extid.Lookup[ID](ent)
}

func (c EntityConfig[ENT, ID]) setID(ent *ENT, id ID) error {
	if c.IDA != nil {
		*c.IDA(ent) = id
		return nil
	}
	return extid.Set(ent, id)
}
