package registry

import (
	"slices"

	"github.com/syssam/planter"
	"github.com/syssam/planter/internal/trace"
)

// AttachNested records the related tables joined eagerly when objects of
// table are loaded. It must run after the whole batch of descriptors is
// registered, since related tables may come from the same batch.
//
// The resolved model is replaced by a copy carrying the related tables, and every
// mapping entry and manager pointing at the old model is repointed, so
// descriptors already handed to readers are never mutated. An unknown
// table changes nothing.
func (r *Registry) AttachNested(table string, related []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.lookupModel(table)
	if !ok {
		return planter.NewConfigError("Nested", table, "nested relation references a table that is not registered")
	}
	m := old.Clone()
	m.Nested = slices.Clone(related)
	for k, v := range r.tables {
		if v == old {
			r.tables[k] = m
		}
	}
	for k, v := range r.defs {
		if v == old {
			r.defs[k] = m
		}
	}
	for k, v := range r.plurals {
		if v.Object == old {
			mgr := *v
			mgr.Object = m
			r.plurals[k] = &mgr
		}
	}
	if trace.Enabled() {
		trace.Logf("registry: nested %s -> %v", table, related)
	}
	return nil
}

// lookupModel is FindClass restricted to models, for callers holding mu.
func (r *Registry) lookupModel(name string) (*planter.Model, bool) {
	if m, ok := r.tables[name]; ok {
		return m, true
	}
	if m, ok := r.defs[name]; ok {
		return m, true
	}
	if mgr, ok := r.plurals[name]; ok && mgr.Object != nil {
		return mgr.Object, true
	}
	return nil, false
}
