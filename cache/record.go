package cache

import (
	"fmt"

	"github.com/syssam/planter"
)

// record is the on-disk form of one descriptor.
type record struct {
	Kind       planter.Kind      `msgpack:"kind"`
	Name       string            `msgpack:"name"`
	Table      string            `msgpack:"table"`
	Columns    []*planter.Column `msgpack:"columns,omitempty"`
	PrimaryKey []string          `msgpack:"pk,omitempty"`
	UniqueKeys [][]string        `msgpack:"unique,omitempty"`
	Edges      []*planter.Edge   `msgpack:"edges,omitempty"`
	// Object is the table of the model a manager serves.
	Object string `msgpack:"object,omitempty"`
}

// newRecord converts a descriptor into its record. Nested specs and the
// bound store are runtime state and are not recorded.
func newRecord(d planter.Descriptor) (*record, error) {
	switch d := d.(type) {
	case *planter.Model:
		return &record{
			Kind:       planter.KindModel,
			Name:       d.Name,
			Table:      d.Table,
			Columns:    d.Columns,
			PrimaryKey: d.PrimaryKey,
			UniqueKeys: d.UniqueKeys,
			Edges:      d.Edges,
		}, nil
	case *planter.Manager:
		if d.Object == nil {
			return nil, fmt.Errorf("cache: manager %q has no object model", d.Name)
		}
		return &record{
			Kind:   planter.KindManager,
			Name:   d.Name,
			Table:  d.Object.Table,
			Object: d.Object.Table,
		}, nil
	default:
		return nil, fmt.Errorf("cache: unexpected descriptor %T", d)
	}
}

func (r *record) model() *planter.Model {
	return &planter.Model{
		Name:       r.Name,
		Table:      r.Table,
		Columns:    r.Columns,
		PrimaryKey: r.PrimaryKey,
		UniqueKeys: r.UniqueKeys,
		Edges:      r.Edges,
	}
}
