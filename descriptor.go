package planter

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/syssam/planter/naming"
)

// Kind tells which variant a Descriptor is. It is decided once, when the
// schema loader builds the descriptor.
type Kind uint8

const (
	// KindModel marks a per-table model descriptor.
	KindModel Kind = iota + 1
	// KindManager marks a collection manager over a model's table.
	KindManager
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindManager:
		return "manager"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Descriptor is a generated model or manager representation.
// The only implementations are *Model and *Manager.
type Descriptor interface {
	Kind() Kind
	ClassName() string
	descriptor()
}

type (
	// Model describes one table: its row shape, its keys and its relations.
	Model struct {
		// Name is the class name hint handed out by the naming convention.
		Name string
		// Table is the database table name, possibly definition-suffixed.
		Table string
		// Columns of the table in declaration order.
		Columns []*Column
		// PrimaryKey holds the primary-key columns. Empty for keyless tables.
		PrimaryKey []string
		// UniqueKeys holds the alternate unique-key column lists in their
		// declared order.
		UniqueKeys [][]string
		// Edges are the foreign-key relations from and to this table.
		Edges []*Edge
		// Nested lists the related tables joined eagerly on load.
		// It is set by registry attachment, never by loaders.
		Nested []string
		// Store performs speculative loads for this model.
		Store Store
	}

	// Manager provides bulk operations over its object model's table.
	Manager struct {
		// Name is the class name hint of the manager.
		Name string
		// Object is the model this manager serves.
		Object *Model
	}

	// Column describes a table column.
	Column struct {
		Name     string
		Type     string // Go type name, e.g. "int64", "string", "time.Time".
		Nullable bool
	}

	// Edge is a foreign-key relation seen from the owning model. Loading
	// the related rows selects from Table where RefColumns equal the values
	// of Columns in the owner row.
	Edge struct {
		// Name of the relation, usually the related table name.
		Name string
		// Table is the related table.
		Table string
		// Columns are the owner-side columns.
		Columns []string
		// RefColumns are the related-side columns.
		RefColumns []string
		// Unique is set when at most one related row exists (M2O).
		Unique bool
	}
)

// Kind implements Descriptor.
func (*Model) Kind() Kind { return KindModel }

// ClassName implements Descriptor.
func (m *Model) ClassName() string { return m.Name }

func (*Model) descriptor() {}

// Kind implements Descriptor.
func (*Manager) Kind() Kind { return KindManager }

// ClassName implements Descriptor.
func (m *Manager) ClassName() string { return m.Name }

func (*Manager) descriptor() {}

// KeyGroups returns the candidate key column groups: the primary key first,
// then every alternate unique key in declared order.
func (m *Model) KeyGroups() [][]string {
	groups := make([][]string, 0, len(m.UniqueKeys)+1)
	if len(m.PrimaryKey) > 0 {
		groups = append(groups, m.PrimaryKey)
	}
	for _, uk := range m.UniqueKeys {
		if len(uk) > 0 {
			groups = append(groups, uk)
		}
	}
	return groups
}

// Edge returns the relation to the given table, if any.
func (m *Model) Edge(table string) (*Edge, bool) {
	for _, e := range m.Edges {
		if e.Table == table {
			return e, true
		}
	}
	return nil, false
}

// Column returns the column with the given name, if any.
func (m *Model) Column(name string) (*Column, bool) {
	for _, c := range m.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Clone returns a shallow copy of the model with its slices duplicated,
// so the copy can be changed without affecting readers of the original.
func (m *Model) Clone() *Model {
	c := *m
	c.Columns = slices.Clone(m.Columns)
	c.PrimaryKey = slices.Clone(m.PrimaryKey)
	c.UniqueKeys = slices.Clone(m.UniqueKeys)
	c.Edges = slices.Clone(m.Edges)
	c.Nested = slices.Clone(m.Nested)
	return &c
}

// Load performs a speculative load of one row by key, joining the nested
// tables. A missing row yields a NotFoundError.
func (m *Model) Load(ctx context.Context, key Key) (*Row, error) {
	if m.Store == nil {
		return nil, NewConfigError("Store", m.Table, "model has no store bound")
	}
	return m.Store.Load(ctx, m, key)
}

// Key pairs key columns with values positionally.
type Key struct {
	Columns []string
	Values  []any
}

// NewKey pairs columns with values. Both must have the same length.
func NewKey(columns []string, values []any) Key {
	return Key{Columns: columns, Values: values}
}

// Len returns the number of key parts.
func (k Key) Len() int { return len(k.Columns) }

// Map returns the key as a column → value map.
func (k Key) Map() map[string]any {
	m := make(map[string]any, len(k.Columns))
	for i, c := range k.Columns {
		m[c] = k.Values[i]
	}
	return m
}

// Row is a loaded object.
type Row struct {
	Table   string
	Values  map[string]any
	Related map[string][]*Row
}

// Get returns the value of the given column.
func (r *Row) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// Store is the load behaviour bound to models.
type Store interface {
	// Load returns the row of m matching key, with m.Nested tables joined.
	// It returns a NotFoundError when no row matches.
	Load(ctx context.Context, m *Model, key Key) (*Row, error)
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(context.Context, *Model, Key) (*Row, error)

// Load calls f(ctx, m, key).
func (f StoreFunc) Load(ctx context.Context, m *Model, key Key) (*Row, error) {
	return f(ctx, m, key)
}

// SchemaLoader produces descriptors from a live schema.
type SchemaLoader interface {
	Load(ctx context.Context, cfg LoaderConfig) ([]Descriptor, error)
}

// SchemaLoaderFunc adapts a function to the SchemaLoader interface.
type SchemaLoaderFunc func(context.Context, LoaderConfig) ([]Descriptor, error)

// Load calls f(ctx, cfg).
func (f SchemaLoaderFunc) Load(ctx context.Context, cfg LoaderConfig) ([]Descriptor, error) {
	return f(ctx, cfg)
}

// LoaderConfig is what a SchemaLoader receives from the bootstrap.
type LoaderConfig struct {
	// BasePrefix prefixes every generated class name.
	BasePrefix string
	// ModelBase is the base type embedded by generated models.
	ModelBase string
	// ManagerBase is the base type embedded by generated managers.
	ManagerBase string
	// Convention derives names.
	Convention *naming.Convention
	// DB opens the database handle to introspect.
	DB func(context.Context) (*sql.DB, error)
	// Store is bound to every model the loader produces.
	Store Store
	// OutputDir, when set, is where the loader materialises generated code.
	OutputDir string
}
