package aggregate

import (
	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/port/store"
)

// Entry is a persisted row in the LoadedSet.
type Entry struct {
	Config mapping.Config
	Row    store.Row
	// Expanded tells if the associations of the row were traversed.
	Expanded bool

	object any
}

// LoadedSet holds the rows seen during a traversal, grouped by type.
// It never holds two rows with the same type and identifier.
// The zero value is ready to use.
type LoadedSet struct {
	index   map[identityKey]*Entry
	entries []*Entry
	byType  map[string][]*Entry
	types   []string
}

func NewLoadedSet() *LoadedSet {
	return &LoadedSet{}
}

// Add records the row, and returns the canonical entry of it.
// The returned bool is false when the row was already in the set.
func (ls *LoadedSet) Add(c mapping.Config, row store.Row) (*Entry, bool) {
	k := identityKey{Type: c.Name(), ID: store.IDKey(row.ID)}
	if e, ok := ls.index[k]; ok {
		return e, false
	}
	if ls.index == nil {
		ls.index = make(map[identityKey]*Entry)
	}
	if ls.byType == nil {
		ls.byType = make(map[string][]*Entry)
	}
	e := &Entry{Config: c, Row: row}
	ls.index[k] = e
	ls.entries = append(ls.entries, e)
	if _, ok := ls.byType[c.Name()]; !ok {
		ls.types = append(ls.types, c.Name())
	}
	ls.byType[c.Name()] = append(ls.byType[c.Name()], e)
	return e, true
}

func (ls *LoadedSet) Lookup(typeName string, id store.ID) (*Entry, bool) {
	e, ok := ls.index[identityKey{Type: typeName, ID: store.IDKey(id)}]
	return e, ok
}

// All returns the entries in the order they were added.
func (ls *LoadedSet) All() []*Entry { return append([]*Entry(nil), ls.entries...) }

func (ls *LoadedSet) ByType(typeName string) []*Entry {
	return append([]*Entry(nil), ls.byType[typeName]...)
}

// Types returns the type names in the order they were first seen.
func (ls *LoadedSet) Types() []string { return append([]string(nil), ls.types...) }

func (ls *LoadedSet) Len() int { return len(ls.entries) }
