package cache

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/planter"
	"github.com/syssam/planter/naming"
)

// GenerateSource writes one Go file per model into dir, declaring the model
// struct and the managers serving it, in package pkg.
func GenerateSource(ctx context.Context, dir, pkg string, descs []planter.Descriptor, opts ...Option) error {
	o := &options{workers: runtime.GOMAXPROCS(0), conv: naming.New()}
	for _, opt := range opts {
		opt(o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	var models []*planter.Model
	managers := make(map[*planter.Model][]*planter.Manager)
	for _, d := range descs {
		switch d := d.(type) {
		case *planter.Model:
			models = append(models, d)
		case *planter.Manager:
			managers[d.Object] = append(managers[d.Object], d)
		}
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for _, m := range models {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return writeFile(filepath.Join(dir, fileName(m.Table)), genModel(o, pkg, m, managers[m]))
			}
		})
	}
	return eg.Wait()
}

func fileName(table string) string {
	return strings.ToLower(strings.NewReplacer("/", "_", "\\", "_", ".", "_").Replace(table)) + ".go"
}

func writeFile(path string, f *jen.File) error {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// genModel generates the file of a single model.
func genModel(o *options, pkg string, m *planter.Model, mgrs []*planter.Manager) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment("Code generated by planter. DO NOT EDIT.")

	f.Commentf("%s is the model for the %q table.", m.Name, m.Table)
	f.Type().Id(m.Name).StructFunc(func(group *jen.Group) {
		if base := o.modelBase; base != "" {
			group.Add(qualified(base))
		}
		for _, c := range m.Columns {
			group.Id(o.conv.Pascal(c.Name)).Add(goType(c)).Tag(map[string]string{"db": c.Name})
		}
	})

	f.Comment("Table returns the table name of the model.")
	f.Func().Params(jen.Id(m.Name)).Id("Table").Params().String().Block(
		jen.Return(jen.Lit(m.Table)),
	)

	if groups := m.KeyGroups(); len(groups) > 0 {
		f.Comment("KeyGroups returns the candidate key columns, primary key first.")
		f.Func().Params(jen.Id(m.Name)).Id("KeyGroups").Params().Index().Index().String().Block(
			jen.Return(jen.Index().Index().String().ValuesFunc(func(g *jen.Group) {
				for _, cols := range groups {
					g.ValuesFunc(func(l *jen.Group) {
						for _, c := range cols {
							l.Lit(c)
						}
					})
				}
			})),
		)
	}

	for _, mgr := range mgrs {
		f.Commentf("%s manages the rows of %s.", mgr.Name, m.Name)
		f.Type().Id(mgr.Name).StructFunc(func(group *jen.Group) {
			if base := o.managerBase; base != "" {
				group.Add(qualified(base))
			}
		})
		f.Comment("Object returns the table of the managed model.")
		f.Func().Params(jen.Id(mgr.Name)).Id("Object").Params().String().Block(
			jen.Return(jen.Lit(m.Table)),
		)
	}
	return f
}

// qualified turns "path/to/pkg.Type" into a qualified identifier.
func qualified(name string) jen.Code {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return jen.Id(name)
	}
	return jen.Qual(name[:i], name[i+1:])
}

func goType(c *planter.Column) jen.Code {
	var t *jen.Statement
	switch c.Type {
	case "":
		return jen.Interface()
	case "[]byte":
		return jen.Index().Byte()
	case "time.Time":
		t = jen.Qual("time", "Time")
	case "json.RawMessage":
		return jen.Qual("encoding/json", "RawMessage")
	case "uuid.UUID":
		t = jen.Qual("github.com/google/uuid", "UUID")
	default:
		t = jen.Id(c.Type)
	}
	if c.Nullable {
		return jen.Op("*").Add(t)
	}
	return t
}
