// Package introspect builds planter descriptors from a live database
// schema using Atlas.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"
	gomysql "github.com/go-sql-driver/mysql"

	"github.com/syssam/planter"
	"github.com/syssam/planter/cache"
	"github.com/syssam/planter/dialect"
	"github.com/syssam/planter/naming"
)

// Loader is a planter.SchemaLoader inspecting one database schema.
type Loader struct {
	dialect string
	schema  string
	tables  []string
	exclude []string
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSchema sets the schema to inspect. The default is the schema the
// connection is attached to ("main" for SQLite).
func WithSchema(name string) Option {
	return func(l *Loader) { l.schema = name }
}

// WithTables limits inspection to the given tables.
func WithTables(tables ...string) Option {
	return func(l *Loader) { l.tables = append(l.tables, tables...) }
}

// WithExclude skips resources matching the given Atlas glob patterns,
// e.g. "schema_migrations" or "*.internal_*".
func WithExclude(patterns ...string) Option {
	return func(l *Loader) { l.exclude = append(l.exclude, patterns...) }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a Loader for the given dialect.
func New(name string, opts ...Option) (*Loader, error) {
	d, err := dialect.Normalize(name)
	if err != nil {
		return nil, err
	}
	l := &Loader{dialect: d, logger: slog.Default()}
	if d == dialect.SQLite {
		l.schema = "main"
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// SchemaFromDSN returns the database named in a MySQL DSN, which is the
// schema Atlas inspects. It returns "" for other dialects.
func SchemaFromDSN(name, dsn string) (string, error) {
	d, err := dialect.Normalize(name)
	if err != nil || d != dialect.MySQL {
		return "", err
	}
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("introspect: parse dsn: %w", err)
	}
	return cfg.DBName, nil
}

// Load implements planter.SchemaLoader. It inspects the schema, builds one
// model and one manager per table and, when cfg.OutputDir is set,
// materialises them there.
func (l *Loader) Load(ctx context.Context, cfg planter.LoaderConfig) ([]planter.Descriptor, error) {
	if cfg.DB == nil {
		return nil, planter.NewConfigError("DB", nil, "no database to introspect")
	}
	db, err := cfg.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect: open database: %w", err)
	}
	insp, err := l.inspector(db)
	if err != nil {
		return nil, fmt.Errorf("introspect: open %s driver: %w", l.dialect, err)
	}
	s, err := insp.InspectSchema(ctx, l.schema, &schema.InspectOptions{
		Mode:    schema.InspectTables,
		Tables:  l.tables,
		Exclude: l.exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("introspect: inspect schema %q: %w", l.schema, err)
	}
	descs := Build(s.Tables, cfg)
	l.logger.DebugContext(ctx, "schema inspected", "dialect", l.dialect, "schema", s.Name, "tables", len(s.Tables))
	if cfg.OutputDir != "" && len(descs) > 0 {
		if _, err := cache.Write(ctx, cfg.OutputDir, descs,
			cache.WithConvention(cfg.Convention),
			cache.WithBases(cfg.ModelBase, cfg.ManagerBase),
		); err != nil {
			return nil, err
		}
	}
	return descs, nil
}

func (l *Loader) inspector(db *sql.DB) (schema.Inspector, error) {
	switch l.dialect {
	case dialect.SQLite:
		return sqlite.Open(db)
	case dialect.Postgres:
		return postgres.Open(db)
	case dialect.MySQL:
		return mysql.Open(db)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", l.dialect)
	}
}

// Build converts inspected tables into descriptors: for every table, in
// name order, its model followed by its manager.
func Build(tables []*schema.Table, cfg planter.LoaderConfig) []planter.Descriptor {
	conv := cfg.Convention
	if conv == nil {
		conv = naming.New()
	}
	tables = slices.Clone(tables)
	slices.SortFunc(tables, func(a, b *schema.Table) int { return strings.Compare(a.Name, b.Name) })

	models := make(map[*schema.Table]*planter.Model, len(tables))
	descs := make([]planter.Descriptor, 0, 2*len(tables))
	for _, t := range tables {
		m := newModel(t, conv, cfg)
		models[t] = m
		descs = append(descs, m, &planter.Manager{
			Name:   conv.ClassName(conv.Plural(conv.BaseTable(t.Name)), cfg.BasePrefix),
			Object: m,
		})
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == nil {
				continue
			}
			cols, refs := columnNames(fk.Columns), columnNames(fk.RefColumns)
			models[t].Edges = append(models[t].Edges, &planter.Edge{
				Name:       fk.RefTable.Name,
				Table:      fk.RefTable.Name,
				Columns:    cols,
				RefColumns: refs,
				Unique:     true,
			})
			// The inverse side is known only when the referenced table was
			// inspected too.
			if ref, ok := models[fk.RefTable]; ok {
				ref.Edges = append(ref.Edges, &planter.Edge{
					Name:       t.Name,
					Table:      t.Name,
					Columns:    refs,
					RefColumns: cols,
					Unique:     isUnique(models[t], cols),
				})
			}
		}
	}
	return descs
}

func newModel(t *schema.Table, conv *naming.Convention, cfg planter.LoaderConfig) *planter.Model {
	m := &planter.Model{
		Name:  conv.ClassName(t.Name, cfg.BasePrefix),
		Table: t.Name,
		Store: cfg.Store,
	}
	for _, c := range t.Columns {
		m.Columns = append(m.Columns, &planter.Column{
			Name:     c.Name,
			Type:     goType(c.Type),
			Nullable: c.Type != nil && c.Type.Null,
		})
	}
	if t.PrimaryKey != nil {
		m.PrimaryKey = partNames(t.PrimaryKey.Parts)
	}
	for _, idx := range t.Indexes {
		if !idx.Unique {
			continue
		}
		cols := partNames(idx.Parts)
		// Expression indexes cannot be used as lookup keys.
		if len(cols) == 0 || len(cols) != len(idx.Parts) || slices.Equal(cols, m.PrimaryKey) {
			continue
		}
		if slices.ContainsFunc(m.UniqueKeys, func(uk []string) bool { return slices.Equal(uk, cols) }) {
			continue
		}
		m.UniqueKeys = append(m.UniqueKeys, cols)
	}
	return m
}

func isUnique(m *planter.Model, cols []string) bool {
	return slices.ContainsFunc(m.KeyGroups(), func(g []string) bool { return slices.Equal(g, cols) })
}

func partNames(parts []*schema.IndexPart) []string {
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.C != nil {
			names = append(names, p.C.Name)
		}
	}
	return names
}

func columnNames(cols []*schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// goType returns the Go type name used for a column type.
func goType(ct *schema.ColumnType) string {
	if ct == nil {
		return "any"
	}
	switch t := ct.Type.(type) {
	case *schema.BoolType:
		return "bool"
	case *schema.IntegerType:
		if t.Unsigned {
			return "uint64"
		}
		return "int64"
	case *schema.FloatType, *schema.DecimalType:
		return "float64"
	case *schema.StringType, *schema.EnumType:
		return "string"
	case *schema.TimeType:
		return "time.Time"
	case *schema.BinaryType:
		return "[]byte"
	case *schema.JSONType:
		return "json.RawMessage"
	case *schema.UUIDType:
		return "uuid.UUID"
	default:
		return "any"
	}
}
