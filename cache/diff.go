package cache

import (
	"fmt"
	"slices"
	"strings"

	"github.com/syssam/planter"
)

// Drift is one difference between a cached model and the live schema.
type Drift struct {
	Table   string
	Column  string
	Message string
	// Breaking is set when lookups served from the cache may fail.
	Breaking bool
}

func (d *Drift) Error() string {
	if d.Column != "" {
		return fmt.Sprintf("%s.%s: %s", d.Table, d.Column, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Table, d.Message)
}

// DiffResult lists the drifts between a cache and the live schema.
type DiffResult struct {
	Drifts []*Drift
}

// Stale reports whether the cache differs from the live schema.
func (r *DiffResult) Stale() bool { return len(r.Drifts) > 0 }

// Breaking reports whether any drift is breaking.
func (r *DiffResult) Breaking() bool {
	return slices.ContainsFunc(r.Drifts, func(d *Drift) bool { return d.Breaking })
}

// String returns a human-readable summary of the result.
func (r *DiffResult) String() string {
	if !r.Stale() {
		return "cache is up to date"
	}
	var sb strings.Builder
	for _, d := range r.Drifts {
		sb.WriteString("  - ")
		sb.WriteString(d.Error())
		if d.Breaking {
			sb.WriteString(" [BREAKING]")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Diff compares the models of a cache with the models built from the live
// schema. Tables and columns missing from the live schema, and changed key
// columns, are breaking: lookups built from the cache select them.
func Diff(cached, live []planter.Descriptor) *DiffResult {
	cm, lm := modelsByTable(cached), modelsByTable(live)
	result := &DiffResult{}
	for _, name := range sortedKeys(cm) {
		if _, ok := lm[name]; !ok {
			result.Drifts = append(result.Drifts, &Drift{Table: name, Message: "table was dropped", Breaking: true})
		}
	}
	for _, name := range sortedKeys(lm) {
		current, ok := cm[name]
		if !ok {
			result.Drifts = append(result.Drifts, &Drift{Table: name, Message: "table is not cached"})
			continue
		}
		diffModel(current, lm[name], result)
	}
	return result
}

func diffModel(current, desired *planter.Model, result *DiffResult) {
	for _, c := range current.Columns {
		if _, ok := desired.Column(c.Name); !ok {
			result.Drifts = append(result.Drifts, &Drift{
				Table: current.Table, Column: c.Name, Message: "column was dropped", Breaking: true,
			})
		}
	}
	for _, dc := range desired.Columns {
		cc, ok := current.Column(dc.Name)
		if !ok {
			result.Drifts = append(result.Drifts, &Drift{
				Table: current.Table, Column: dc.Name, Message: "column is not cached",
			})
			continue
		}
		if cc.Type != dc.Type {
			result.Drifts = append(result.Drifts, &Drift{
				Table: current.Table, Column: dc.Name,
				Message: fmt.Sprintf("column type changed from %s to %s", cc.Type, dc.Type),
			})
		}
		if cc.Nullable != dc.Nullable {
			result.Drifts = append(result.Drifts, &Drift{
				Table: current.Table, Column: dc.Name,
				Message: fmt.Sprintf("column nullability changed to %t", dc.Nullable),
			})
		}
	}
	if !slices.EqualFunc(current.KeyGroups(), desired.KeyGroups(), slices.Equal[[]string]) {
		result.Drifts = append(result.Drifts, &Drift{
			Table:    current.Table,
			Message:  fmt.Sprintf("keys changed from %v to %v", current.KeyGroups(), desired.KeyGroups()),
			Breaking: true,
		})
	}
	if !slices.EqualFunc(current.Edges, desired.Edges, sameEdge) {
		result.Drifts = append(result.Drifts, &Drift{Table: current.Table, Message: "relations changed"})
	}
}

func sameEdge(a, b *planter.Edge) bool {
	return a.Table == b.Table && a.Unique == b.Unique &&
		slices.Equal(a.Columns, b.Columns) && slices.Equal(a.RefColumns, b.RefColumns)
}

func modelsByTable(descs []planter.Descriptor) map[string]*planter.Model {
	m := make(map[string]*planter.Model)
	for _, d := range descs {
		if mdl, ok := d.(*planter.Model); ok {
			m[mdl.Table] = mdl
		}
	}
	return m
}

func sortedKeys(m map[string]*planter.Model) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
