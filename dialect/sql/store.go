package sql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/planter"
	"github.com/syssam/planter/dialect"
	"github.com/syssam/planter/internal/trace"
)

// Store is a planter.Store loading rows with plain SELECT statements.
type Store struct {
	q dialect.Querier
}

// NewStore returns a Store running its queries through q.
func NewStore(q dialect.Querier) *Store {
	return &Store{q: q}
}

// Load selects the row of m whose key columns equal the key values, then
// selects the rows of every nested table through the matching edge.
func (s *Store) Load(ctx context.Context, m *planter.Model, key planter.Key) (*planter.Row, error) {
	if key.Len() == 0 || key.Len() != len(key.Values) {
		return nil, planter.NewLoadError(m.Table, "select", fmt.Errorf("malformed key %v", key))
	}
	query, args := s.selectWhere(m.Table, key.Columns, key.Values, 1)
	rows, err := s.query(ctx, query, args)
	if err != nil {
		return nil, planter.NewLoadError(m.Table, "select", err)
	}
	if len(rows) == 0 {
		return nil, planter.NewNotFoundErrorWithKey(m.Table, key.Values)
	}
	row := &planter.Row{Table: m.Table, Values: rows[0]}
	for _, name := range m.Nested {
		if err := s.loadNested(ctx, m, row, name); err != nil {
			return nil, err
		}
	}
	return row, nil
}

func (s *Store) loadNested(ctx context.Context, m *planter.Model, row *planter.Row, table string) error {
	e, ok := m.Edge(table)
	if !ok {
		return planter.NewLoadError(m.Table, "nested", fmt.Errorf("no relation to table %q", table))
	}
	if row.Related == nil {
		row.Related = make(map[string][]*planter.Row)
	}
	vals := make([]any, len(e.Columns))
	for i, c := range e.Columns {
		v, ok := row.Values[c]
		if !ok || v == nil {
			// A NULL foreign key has no related rows.
			row.Related[table] = nil
			return nil
		}
		vals[i] = v
	}
	limit := 0
	if e.Unique {
		limit = 1
	}
	query, args := s.selectWhere(e.Table, e.RefColumns, vals, limit)
	related, err := s.query(ctx, query, args)
	if err != nil {
		return planter.NewLoadError(m.Table, "nested", err)
	}
	for _, r := range related {
		row.Related[table] = append(row.Related[table], &planter.Row{Table: e.Table, Values: r})
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args []any) (_ []map[string]any, rerr error) {
	if trace.Enabled() {
		trace.Logf("store: %s %v", query, args)
	}
	var rows Rows
	if err := s.q.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil && rerr == nil {
			rerr = err
		}
	}()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = values[i]
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// selectWhere builds "SELECT * FROM t WHERE c1 = ? AND ..." with an optional
// LIMIT (0 means none).
func (s *Store) selectWhere(table string, columns []string, values []any, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(s.quote(table))
	b.WriteString(" WHERE ")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(s.quote(c))
		b.WriteString(" = ")
		b.WriteString(s.placeholder(i + 1))
	}
	if limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	args := make([]any, len(values))
	copy(args, values)
	return b.String(), args
}

func (s *Store) quote(ident string) string {
	switch s.q.Dialect() {
	case dialect.Postgres:
		return pq.QuoteIdentifier(ident)
	case dialect.MySQL:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
}

func (s *Store) placeholder(n int) string {
	if s.q.Dialect() == dialect.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

var _ planter.Store = (*Store)(nil)
