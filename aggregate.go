// Package aggregate persists, loads and destroys aggregates:
// object graphs rooted at one entity, made of owned members and references to objects outside the aggregate.
//
// The Mapper walks the graph through the associations described in a mapping.Registry,
// and talks to the storage through a store.Driver.
// Owned members follow the lifecycle of their root: they are saved with it, loaded with it,
// and deleted with it, or when they are no longer part of it.
// Non-owned references are only linked by foreign key.
package aggregate

import (
	"context"
	"reflect"

	"go.llib.dev/aggregate/mapping"
	"go.llib.dev/aggregate/pkg/logger"
	"go.llib.dev/aggregate/pkg/logging"
	"go.llib.dev/aggregate/port/comproto"
	"go.llib.dev/aggregate/port/store"
)

// Mapper is the aggregate persistence orchestrator.
//
// A Mapper holds no state between calls, but it is not meant to be used concurrently
// on overlapping aggregates; serialising such calls is the caller's responsibility.
type Mapper struct {
	Registry *mapping.Registry
	Driver   store.Driver
	// Logger [optional] is the logger of the Mapper.
	//
	// Default: logger.Default
	Logger *logging.Logger
}

func (m Mapper) logger() *logging.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return &logger.Default
}

// rootConfig validates the roots and returns the Config of their common type.
func (m Mapper) rootConfig(roots []any) (mapping.Config, error) {
	var typ reflect.Type
	for i, root := range roots {
		if root == nil || isNilPointer(root) {
			return nil, ErrInvalidAggregateRoot.F("root at index %d is nil", i)
		}
		rt := reflect.TypeOf(root)
		if rt.Kind() != reflect.Pointer {
			return nil, ErrInvalidAggregateRoot.F("root at index %d is a %s value, not a pointer", i, rt)
		}
		if typ == nil {
			typ = rt
			continue
		}
		if typ != rt {
			return nil, ErrInvalidAggregateRoot.F("roots must share one type, got %s and %s", typ, rt)
		}
	}
	return m.Registry.ConfigForType(typ)
}

// beginTx starts a transaction when the driver supports the commit protocol.
// The returned finish function must be deferred with the named return error.
func (m Mapper) beginTx(ctx context.Context) (context.Context, func(*error), error) {
	cm, ok := m.Driver.(comproto.OnePhaseCommitProtocol)
	if !ok {
		return ctx, func(*error) {}, nil
	}
	tx, err := cm.BeginTx(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return tx, func(errp *error) { comproto.FinishOnePhaseCommit(errp, cm, tx) }, nil
}

// loadGraph fetches the rows of the given roots, and traverses them into the LoadedSet.
func (m Mapper) loadGraph(ctx context.Context, cfg mapping.Config, ids []store.ID, mode rowMode, ls *LoadedSet) error {
	rows, err := m.Driver.FindByIDs(ctx, cfg.Table(), ids)
	if err != nil {
		return err
	}
	return traverse[*Entry](&rowCollector{
		ctx:      ctx,
		registry: m.Registry,
		driver:   m.Driver,
		mode:     mode,
		set:      ls,
	}, toEntries(cfg, rows))
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// LoadOption configures a load call.
type LoadOption interface {
	configure(*loadConfig)
}

type loadConfig struct {
	IdentityMap *IdentityMap
}

type loadOptionFunc func(*loadConfig)

func (fn loadOptionFunc) configure(c *loadConfig) { fn(c) }

// WithIdentityMap makes the load use a caller owned IdentityMap,
// so objects materialized in earlier loads are reused instead of duplicated.
func WithIdentityMap(im *IdentityMap) LoadOption {
	return loadOptionFunc(func(c *loadConfig) { c.IdentityMap = im })
}

func toLoadConfig(opts []LoadOption) loadConfig {
	var c loadConfig
	for _, opt := range opts {
		if opt != nil {
			opt.configure(&c)
		}
	}
	if c.IdentityMap == nil {
		c.IdentityMap = NewIdentityMap()
	}
	return c
}
