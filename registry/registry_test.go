package registry

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/planter"
	"github.com/syssam/planter/naming"
)

func model(table string) *planter.Model {
	return &planter.Model{
		Name:       naming.New().ClassName(table, "shop"),
		Table:      table,
		PrimaryKey: []string{"id"},
	}
}

func manager(m *planter.Model) *planter.Manager {
	return &planter.Manager{Name: m.Name + "Manager", Object: m}
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *[]Collision) {
	t.Helper()
	var collisions []Collision
	opts = append(opts,
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithCollisionHook(func(c Collision) { collisions = append(collisions, c) }),
	)
	return New(naming.New(), opts...), &collisions
}

func TestRegisterModel(t *testing.T) {
	t.Run("finds by table", func(t *testing.T) {
		r, collisions := newTestRegistry(t)
		order := model("order")
		require.NoError(t, r.RegisterModel(order))

		d, ok := r.FindClass("order")
		require.True(t, ok)
		assert.Same(t, order, d)
		assert.Equal(t, planter.KindModel, d.Kind())
		assert.Empty(t, *collisions)
	})

	t.Run("last write wins", func(t *testing.T) {
		r, collisions := newTestRegistry(t)
		first, second := model("order"), model("order")
		require.NoError(t, r.RegisterModel(first))
		require.NoError(t, r.RegisterModel(second))

		d, ok := r.FindClass("order")
		require.True(t, ok)
		assert.Same(t, second, d)
		require.Len(t, *collisions, 1)
		assert.Equal(t, Tables, (*collisions)[0].Mapping)
		assert.Equal(t, "order", (*collisions)[0].Key)
		assert.Same(t, first, (*collisions)[0].Old)
		assert.Same(t, second, (*collisions)[0].New)
	})

	t.Run("same descriptor twice is not a collision", func(t *testing.T) {
		r, collisions := newTestRegistry(t)
		order := model("order")
		require.NoError(t, r.RegisterModel(order))
		require.NoError(t, r.RegisterModel(order))
		assert.Empty(t, *collisions)
	})

	t.Run("definition variant maps base name", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		def := model("widget_def")
		require.NoError(t, r.RegisterModel(def))

		byDef, ok := r.FindClass("widget_def")
		require.True(t, ok)
		byBase, ok := r.FindClass("widget")
		require.True(t, ok)
		assert.Same(t, byDef, byBase)
	})

	t.Run("table mapping wins over def-prefix", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		base, def := model("widget"), model("widget_def")
		require.NoError(t, r.RegisterModel(def))
		require.NoError(t, r.RegisterModel(base))

		d, ok := r.FindClass("widget")
		require.True(t, ok)
		assert.Same(t, base, d)
	})

	t.Run("empty table rejected", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		err := r.RegisterModel(&planter.Model{Name: "Nameless"})
		require.Error(t, err)
		assert.True(t, planter.IsConfigError(err))
		assert.Empty(t, r.AllTables())
	})

	t.Run("collision is logged", func(t *testing.T) {
		var buf bytes.Buffer
		r := New(naming.New(), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		require.NoError(t, r.RegisterModel(model("order")))
		require.NoError(t, r.RegisterModel(model("order")))
		assert.Contains(t, buf.String(), "registry entry overwritten")
		assert.Contains(t, buf.String(), "mapping=table")
	})
}

func TestRegisterManager(t *testing.T) {
	t.Run("finds by plural", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		order := model("order")
		mgr := manager(order)
		require.NoError(t, r.RegisterModel(order))
		require.NoError(t, r.RegisterManager(mgr))

		d, ok := r.FindClass(r.Convention().Plural("order"))
		require.True(t, ok)
		assert.Same(t, mgr, d)
		assert.Equal(t, planter.KindManager, d.Kind())
		assert.Equal(t, []string{"orders"}, r.AllPlurals())
	})

	t.Run("definition suffix stripped before pluralising", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		mgr := manager(model("category_def"))
		require.NoError(t, r.RegisterManager(mgr))

		d, ok := r.FindClass("categories")
		require.True(t, ok)
		assert.Same(t, mgr, d)
	})

	t.Run("last write wins", func(t *testing.T) {
		r, collisions := newTestRegistry(t)
		first, second := manager(model("order")), manager(model("order_def"))
		require.NoError(t, r.RegisterManager(first))
		require.NoError(t, r.RegisterManager(second))

		d, ok := r.FindClass("orders")
		require.True(t, ok)
		assert.Same(t, second, d)
		require.Len(t, *collisions, 1)
		assert.Equal(t, Plurals, (*collisions)[0].Mapping)
	})

	t.Run("missing object rejected", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		assert.True(t, planter.IsConfigError(r.RegisterManager(&planter.Manager{Name: "Orphan"})))
	})
}

func TestFindClass(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, ok := r.FindClass("missing")
	assert.False(t, ok)
	_, ok = r.FindClass("")
	assert.False(t, ok)

	order := model("order")
	require.NoError(t, r.RegisterModel(order))
	require.NoError(t, r.RegisterManager(manager(order)))
	d, ok := r.FindClass("order")
	require.True(t, ok)
	assert.Same(t, order, d)
}

func TestAllTables(t *testing.T) {
	r, _ := newTestRegistry(t)
	for _, table := range []string{"order", "widget_def", "app"} {
		require.NoError(t, r.RegisterModel(model(table)))
	}
	assert.Equal(t, []string{"app", "order", "widget", "widget_def"}, r.AllTables())
	tables, defs, plurals := r.Len()
	assert.Equal(t, 3, tables)
	assert.Equal(t, 1, defs)
	assert.Equal(t, 0, plurals)
}

func TestStagePublish(t *testing.T) {
	r, _ := newTestRegistry(t)
	order := model("order")
	require.NoError(t, r.RegisterModel(order))

	stage := r.Stage(nil)
	require.NoError(t, stage.RegisterModel(model("item")))
	_, ok := r.FindClass("item")
	assert.False(t, ok, "staged entries must not be visible before publish")

	r.Publish(stage)
	_, ok = r.FindClass("item")
	assert.True(t, ok)
	d, ok := r.FindClass("order")
	require.True(t, ok)
	assert.Same(t, order, d, "published registry keeps earlier entries")
}

func TestStageConvention(t *testing.T) {
	r, _ := newTestRegistry(t)
	conv := naming.New(naming.WithIrregular("wug", "wugzz"), naming.WithDefinitionSuffix("_spec"))

	stage := r.Stage(conv)
	wug := model("wug_spec")
	require.NoError(t, stage.RegisterModel(wug))
	require.NoError(t, stage.RegisterManager(manager(wug)))
	r.Publish(stage)

	assert.Same(t, conv, r.Convention())
	assert.Equal(t, []string{"wugzz"}, r.AllPlurals())
	assert.Equal(t, []string{"wug", "wug_spec"}, r.AllTables())
	d, ok := r.FindClass("wug")
	require.True(t, ok)
	assert.Same(t, wug, d)
	d, ok = r.FindClass("wugzz")
	require.True(t, ok)
	assert.Equal(t, planter.KindManager, d.Kind())
}

func TestConcurrentReaders(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.RegisterModel(model("order")))
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				_, ok := r.FindClass("order")
				assert.True(t, ok)
				_ = r.AllTables()
			}
		}()
	}
	for range 20 {
		stage := r.Stage(nil)
		require.NoError(t, stage.RegisterModel(model("order")))
		r.Publish(stage)
	}
	wg.Wait()
}
