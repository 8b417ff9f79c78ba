// Package finder resolves objects by table name and key values against a
// registry.
package finder

import (
	"context"
	"regexp"

	"github.com/syssam/planter"
	"github.com/syssam/planter/internal/trace"
	"github.com/syssam/planter/registry"
)

// Finder answers lookups against one registry.
type Finder struct {
	reg *registry.Registry
}

// New returns a Finder over reg.
func New(reg *registry.Registry) *Finder {
	return &Finder{reg: reg}
}

// Registry returns the underlying registry.
func (f *Finder) Registry() *registry.Registry { return f.reg }

// Find loads the object of table whose key equals keys. Key groups are
// tried in order, primary key first, and only groups with as many columns
// as keys are considered. The first group that loads a row wins.
//
// A table the registry cannot resolve is a caller bug and yields a
// *planter.CallerError. Every other miss, including a key arity that fits
// no group, yields a *planter.NotFoundError.
func (f *Finder) Find(ctx context.Context, table string, keys ...any) (*planter.Row, error) {
	d, ok := f.reg.FindClass(table)
	if !ok {
		return nil, planter.NewCallerError("find", table)
	}
	m, ok := d.(*planter.Model)
	if !ok {
		return nil, planter.NewNotFoundErrorWithKey(table, keys)
	}
	for _, cols := range m.KeyGroups() {
		if len(cols) != len(keys) {
			continue
		}
		key := planter.NewKey(cols, keys)
		if trace.Enabled() {
			trace.Logf("finder: %s by %v", m.Table, key.Map())
		}
		row, err := m.Load(ctx, key)
		switch {
		case err == nil:
			return row, nil
		case planter.IsNotFound(err):
			continue
		default:
			return nil, err
		}
	}
	return nil, planter.NewNotFoundErrorWithKey(table, keys)
}

// FindClass resolves a table, def-prefix or plural name.
func (f *Finder) FindClass(name string) (planter.Descriptor, bool) {
	return f.reg.FindClass(name)
}

// AllTables returns every registered table and def-prefix name.
func (f *Finder) AllTables() []string { return f.reg.AllTables() }

// AllPlurals returns every registered plural name.
func (f *Finder) AllPlurals() []string { return f.reg.AllPlurals() }

// TableMatcher matches registered table names in free text.
func (f *Finder) TableMatcher() *regexp.Regexp { return f.reg.TableMatcher() }

// PluralMatcher matches registered plural names in free text.
func (f *Finder) PluralMatcher() *regexp.Regexp { return f.reg.PluralMatcher() }
