// Package registry maps table names, definition-suffix base names and
// plural names to the model and manager descriptors a schema produced.
//
// A Registry is safe for concurrent readers. Writers are serialised, and a
// bootstrap pass populates a private copy obtained from Stage before
// publishing it, so readers never observe a partial population.
package registry

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/syssam/planter"
	"github.com/syssam/planter/internal/trace"
	"github.com/syssam/planter/naming"
)

// Mapping names a registry lookup table.
type Mapping string

// The three registry mappings, in lookup order.
const (
	Tables    Mapping = "table"
	DefPrefix Mapping = "def-prefix"
	Plurals   Mapping = "plural"
)

// Collision describes an entry overwritten by a later registration.
type Collision struct {
	Mapping Mapping
	Key     string
	Old     planter.Descriptor
	New     planter.Descriptor
}

// CollisionHook observes collisions. It is called with the registry's
// write lock held and must not call back into the registry.
type CollisionHook func(Collision)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for collision warnings.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCollisionHook registers a hook called on every collision.
func WithCollisionHook(h CollisionHook) Option {
	return func(r *Registry) {
		r.hooks = append(r.hooks, h)
	}
}

// Registry holds the table, def-prefix and plural mappings.
type Registry struct {
	conv   *naming.Convention
	logger *slog.Logger
	hooks  []CollisionHook

	mu      sync.RWMutex
	tables  map[string]*planter.Model
	defs    map[string]*planter.Model
	plurals map[string]*planter.Manager
}

// New returns an empty registry using conv to compute plurals.
func New(conv *naming.Convention, opts ...Option) *Registry {
	if conv == nil {
		conv = naming.New()
	}
	r := &Registry{
		conv:    conv,
		logger:  slog.Default(),
		tables:  make(map[string]*planter.Model),
		defs:    make(map[string]*planter.Model),
		plurals: make(map[string]*planter.Manager),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Convention returns the naming convention the published mappings were
// keyed with.
func (r *Registry) Convention() *naming.Convention {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conv
}

// RegisterModel inserts m under its table name and, for a definition
// variant, also under the base name in the def-prefix mapping. An existing
// entry for a different descriptor is overwritten with a warning.
func (r *Registry) RegisterModel(m *planter.Model) error {
	if m == nil || m.Table == "" {
		return planter.NewConfigError("Table", nil, "model registered without a table name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putModel(r.tables, Tables, m.Table, m)
	if base, isDef := r.conv.NormalizeDefinitionSuffix(m.Table); isDef {
		r.putModel(r.defs, DefPrefix, base, m)
	}
	if trace.Enabled() {
		trace.Logf("registry: model %s -> %s", m.Table, m.Name)
	}
	return nil
}

// RegisterManager inserts mgr under the plural of its object model's base
// table (definition suffix stripped).
func (r *Registry) RegisterManager(mgr *planter.Manager) error {
	if mgr == nil || mgr.Object == nil || mgr.Object.Table == "" {
		return planter.NewConfigError("Object", nil, "manager registered without an object model")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	plural := r.conv.Plural(r.conv.BaseTable(mgr.Object.Table))
	if plural == "" {
		return planter.NewConfigError("Plural", mgr.Object.Table, "empty plural")
	}
	if old, ok := r.plurals[plural]; ok && old != mgr {
		r.collide(Collision{Mapping: Plurals, Key: plural, Old: old, New: mgr})
	}
	r.plurals[plural] = mgr
	if trace.Enabled() {
		trace.Logf("registry: manager %s -> %s", plural, mgr.Name)
	}
	return nil
}

func (r *Registry) putModel(m map[string]*planter.Model, mapping Mapping, key string, v *planter.Model) {
	if old, ok := m[key]; ok && old != v {
		r.collide(Collision{Mapping: mapping, Key: key, Old: old, New: v})
	}
	m[key] = v
}

func (r *Registry) collide(c Collision) {
	r.logger.Warn("registry entry overwritten",
		"mapping", string(c.Mapping),
		"key", c.Key,
		"old", c.Old.ClassName(),
		"new", c.New.ClassName(),
	)
	for _, h := range r.hooks {
		h(c)
	}
}

// FindClass looks name up in the table mapping, then the def-prefix
// mapping, then the plural mapping. The first hit wins.
func (r *Registry) FindClass(name string) (planter.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.tables[name]; ok {
		return m, true
	}
	if m, ok := r.defs[name]; ok {
		return m, true
	}
	if m, ok := r.plurals[name]; ok {
		return m, true
	}
	return nil, false
}

// AllTables returns the sorted union of table and def-prefix keys.
func (r *Registry) AllTables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{}, len(r.tables)+len(r.defs))
	for k := range r.tables {
		set[k] = struct{}{}
	}
	for k := range r.defs {
		set[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// AllPlurals returns the sorted plural keys.
func (r *Registry) AllPlurals() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.plurals))
}

// Len returns the number of entries in each mapping.
func (r *Registry) Len() (tables, defs, plurals int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables), len(r.defs), len(r.plurals)
}

// Stage returns a private copy of r sharing its logger and hooks. The
// copy keys new entries with conv, or with the convention of r when conv
// is nil. Changes to the copy are invisible to r until Publish.
func (r *Registry) Stage(conv *naming.Convention) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conv == nil {
		conv = r.conv
	}
	return &Registry{
		conv:    conv,
		logger:  r.logger,
		hooks:   r.hooks,
		tables:  maps.Clone(r.tables),
		defs:    maps.Clone(r.defs),
		plurals: maps.Clone(r.plurals),
	}
}

// Publish replaces the mappings and convention of r with those of stage
// in one step. The stage must not be used afterwards.
func (r *Registry) Publish(stage *Registry) {
	stage.mu.Lock()
	conv, tables, defs, plurals := stage.conv, stage.tables, stage.defs, stage.plurals
	stage.tables, stage.defs, stage.plurals = nil, nil, nil
	stage.mu.Unlock()

	r.mu.Lock()
	r.conv, r.tables, r.defs, r.plurals = conv, tables, defs, plurals
	r.mu.Unlock()
}
