package aggregate

import "go.llib.dev/aggregate/port/store"

// IdentityMap ensures that a persisted row has a single domain object instance within its scope.
//
// An IdentityMap is not safe for concurrent use.
// Once an object is materialized, later loads in the same scope return it as is,
// even if the row changed in the store since.
type IdentityMap struct {
	objects map[identityKey]any
}

type identityKey struct {
	Type string
	ID   any
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{objects: make(map[identityKey]any)}
}

func (im *IdentityMap) key(typeName string, id store.ID) identityKey {
	return identityKey{Type: typeName, ID: store.IDKey(id)}
}

// Get looks up the object materialized for the row.
func (im *IdentityMap) Get(typeName string, id store.ID) (any, bool) {
	obj, ok := im.objects[im.key(typeName, id)]
	return obj, ok
}

// GetAndSet returns the object materialized for the row,
// or materializes it with the factory and remembers it.
func (im *IdentityMap) GetAndSet(typeName string, id store.ID, factory func() (any, error)) (any, error) {
	if im.objects == nil {
		im.objects = make(map[identityKey]any)
	}
	k := im.key(typeName, id)
	if obj, ok := im.objects[k]; ok {
		return obj, nil
	}
	obj, err := factory()
	if err != nil {
		return nil, err
	}
	im.objects[k] = obj
	return obj, nil
}

func (im *IdentityMap) Len() int { return len(im.objects) }
