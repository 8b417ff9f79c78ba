package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/planter"
	"github.com/syssam/planter/cache"
	"github.com/syssam/planter/naming"
	"github.com/syssam/planter/registry"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newController(opts ...Option) *Controller {
	reg := registry.New(naming.New(), registry.WithLogger(quietLogger()))
	return New(reg, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func shopDescriptors() []planter.Descriptor {
	order := &planter.Model{
		Name:       "ShopOrder",
		Table:      "order",
		PrimaryKey: []string{"id"},
		Edges:      []*planter.Edge{{Name: "order_item", Table: "order_item", Columns: []string{"id"}, RefColumns: []string{"order_id"}}},
	}
	item := &planter.Model{Name: "ShopOrderItem", Table: "order_item", PrimaryKey: []string{"id"}}
	def := &planter.Model{Name: "ShopOrderDef", Table: "order_def", PrimaryKey: []string{"id"}}
	return []planter.Descriptor{
		order, &planter.Manager{Name: "ShopOrders", Object: order},
		item, &planter.Manager{Name: "ShopOrderItems", Object: item},
		def,
	}
}

// countingLoader returns fresh shop descriptors and counts its calls.
type countingLoader struct {
	calls atomic.Int32
	cfg   planter.LoaderConfig
	descs func() []planter.Descriptor
	hook  func(ctx context.Context) error
}

func (l *countingLoader) Load(ctx context.Context, cfg planter.LoaderConfig) ([]planter.Descriptor, error) {
	l.calls.Add(1)
	l.cfg = cfg
	if l.hook != nil {
		if err := l.hook(ctx); err != nil {
			return nil, err
		}
	}
	descs := l.descs()
	if cfg.OutputDir != "" {
		if _, err := cache.Write(ctx, cfg.OutputDir, descs, cache.WithPackage("")); err != nil {
			return nil, err
		}
	}
	return descs, nil
}

func newLoader() *countingLoader {
	return &countingLoader{descs: shopDescriptors}
}

// shopTarget re-enters Bootstrap from its Init, like generated code
// importing its own package would.
type shopTarget struct {
	c    *Controller
	opts []Option
	res  *Result
}

func (t *shopTarget) ID() string { return "shop" }

func (t *shopTarget) Init(ctx context.Context) error {
	res, err := t.c.Bootstrap(ctx, t.ID(), t.opts...)
	t.res = res
	return err
}

func TestBootstrapFromSchema(t *testing.T) {
	ctx := context.Background()
	loader := newLoader()
	store := planter.StoreFunc(func(context.Context, *planter.Model, planter.Key) (*planter.Row, error) {
		return nil, nil
	})
	c := newController(WithLoader(loader), WithStore(store), WithBasePrefix("shop"))

	res, err := c.Bootstrap(ctx, "shop", WithNested("order", "order_item"))
	require.NoError(t, err)
	assert.False(t, res.Deferred)
	assert.Equal(t, SourceSchema, res.Source)
	assert.Equal(t, 3, res.Models)
	assert.Equal(t, 2, res.Managers)
	assert.NotEqual(t, [16]byte{}, [16]byte(res.Pass))
	assert.Equal(t, Ready, c.State("shop"))
	assert.Equal(t, "shop", loader.cfg.BasePrefix)
	assert.NotNil(t, loader.cfg.Convention)

	reg := c.Registry()
	d, ok := reg.FindClass("order")
	require.True(t, ok)
	order := d.(*planter.Model)
	assert.Equal(t, []string{"order_item"}, order.Nested)
	assert.NotNil(t, order.Store)

	d, ok = reg.FindClass("orders")
	require.True(t, ok)
	assert.Equal(t, planter.KindManager, d.Kind())
	assert.Same(t, order, d.(*planter.Manager).Object, "manager serves the attached model")
}

func TestBootstrapReentrant(t *testing.T) {
	ctx := context.Background()
	loader := newLoader()
	c := newController(WithLoader(loader))

	var inner *Result
	loader.hook = func(ctx context.Context) error {
		var err error
		inner, err = c.Bootstrap(ctx, "shop")
		return err
	}
	res, err := c.Bootstrap(ctx, "shop")
	require.NoError(t, err)
	require.NotNil(t, inner)
	assert.True(t, inner.Deferred)
	assert.False(t, res.Deferred)
	assert.EqualValues(t, 1, loader.calls.Load())

	tables, _, plurals := c.Registry().Len()
	assert.Equal(t, 3, tables)
	assert.Equal(t, 2, plurals)

	// The guard stays set once the target is ready.
	again, err := c.Bootstrap(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, again.Deferred)
	assert.EqualValues(t, 1, loader.calls.Load())
}

func TestBootstrapGuardPerTarget(t *testing.T) {
	ctx := context.Background()
	loader := newLoader()
	c := newController(WithLoader(loader))

	var other *Result
	loader.hook = func(ctx context.Context) error {
		if other != nil {
			return nil
		}
		other = &Result{}
		var err error
		other, err = c.Bootstrap(ctx, "billing")
		return err
	}
	_, err := c.Bootstrap(ctx, "shop")
	require.NoError(t, err)
	require.NotNil(t, other)
	assert.False(t, other.Deferred)
	assert.EqualValues(t, 2, loader.calls.Load())
	assert.Equal(t, Ready, c.State("billing"))
}

func TestBootstrapConvention(t *testing.T) {
	ctx := context.Background()
	conv := naming.New(naming.WithIrregular("wug", "wugzz"), naming.WithDefinitionSuffix("_spec"))
	loader := &countingLoader{descs: func() []planter.Descriptor {
		wug := &planter.Model{Name: "WugSpec", Table: "wug_spec", PrimaryKey: []string{"id"}}
		return []planter.Descriptor{wug, &planter.Manager{Name: "Wugzz", Object: wug}}
	}}
	c := newController(WithLoader(loader))

	_, err := c.Bootstrap(ctx, "wug", WithConvention(conv))
	require.NoError(t, err)
	assert.Same(t, conv, loader.cfg.Convention)

	reg := c.Registry()
	assert.Same(t, conv, reg.Convention())
	assert.Equal(t, []string{"wugzz"}, reg.AllPlurals())
	d, ok := reg.FindClass("wugzz")
	require.True(t, ok)
	assert.Equal(t, planter.KindManager, d.Kind())
	d, ok = reg.FindClass("wug")
	require.True(t, ok, "definition base follows the configured suffix")
	assert.Equal(t, "wug_spec", d.(*planter.Model).Table)
}

func TestBootstrapZeroDescriptors(t *testing.T) {
	ctx := context.Background()
	c := newController()
	require.NoError(t, c.Registry().RegisterModel(&planter.Model{Name: "Keep", Table: "keep"}))

	empty := planter.SchemaLoaderFunc(func(context.Context, planter.LoaderConfig) ([]planter.Descriptor, error) {
		return nil, nil
	})
	_, err := c.Bootstrap(ctx, "shop", WithLoader(empty))
	require.Error(t, err)
	assert.True(t, planter.IsConfigError(err))
	assert.Contains(t, err.Error(), "did not make any classes")
	assert.Equal(t, []string{"keep"}, c.Registry().AllTables())
	assert.Equal(t, Idle, c.State("shop"))

	// The guard was released, so a retry runs a full pass.
	res, err := c.Bootstrap(ctx, "shop", WithLoader(newLoader()))
	require.NoError(t, err)
	assert.False(t, res.Deferred)
	assert.Contains(t, c.Registry().AllTables(), "keep")
	assert.Contains(t, c.Registry().AllTables(), "order")
}

func TestBootstrapFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no loader", func(t *testing.T) {
		_, err := newController().Bootstrap(ctx, "shop")
		assert.True(t, planter.IsConfigError(err))
	})

	t.Run("loader error", func(t *testing.T) {
		boom := errors.New("introspection failed")
		failing := planter.SchemaLoaderFunc(func(context.Context, planter.LoaderConfig) ([]planter.Descriptor, error) {
			return nil, boom
		})
		c := newController(WithLoader(failing))
		_, err := c.Bootstrap(ctx, "shop")
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, Idle, c.State("shop"))
	})

	t.Run("unknown nested table", func(t *testing.T) {
		c := newController(WithLoader(newLoader()))
		_, err := c.Bootstrap(ctx, "shop", WithNested("invoice", "line"))
		require.Error(t, err)
		assert.True(t, planter.IsConfigError(err))
		tables, defs, plurals := c.Registry().Len()
		assert.Zero(t, tables+defs+plurals, "nothing is published")
		assert.Equal(t, Idle, c.State("shop"))
	})

	t.Run("bad option", func(t *testing.T) {
		_, err := newController().Bootstrap(ctx, "shop", WithNested(""), WithLoader(nil))
		require.Error(t, err)
		assert.True(t, planter.IsConfigError(err))
		assert.Contains(t, err.Error(), "Nested")
		assert.Contains(t, err.Error(), "Loader")
	})
}

func TestBootstrapCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// First process: the cache is empty, so the schema is loaded and
	// materialised into the cache directory.
	loader := newLoader()
	res, err := newController(WithLoader(loader), WithCacheDir(dir)).Bootstrap(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, SourceSchema, res.Source)
	assert.Equal(t, dir, loader.cfg.OutputDir)
	require.True(t, cache.Exists(dir))

	// Second process: the cache is reused and the loader is not called.
	loader = newLoader()
	c := newController(WithLoader(loader), WithCacheDir(dir))
	res, err = c.Bootstrap(ctx, "shop", WithNested("order", "order_item"))
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Zero(t, loader.calls.Load())
	assert.Equal(t, 3, res.Models)

	d, ok := c.Registry().FindClass("order")
	require.True(t, ok)
	assert.Equal(t, []string{"order_item"}, d.(*planter.Model).Nested)
	d, ok = c.Registry().FindClass("order_def")
	require.True(t, ok)
	assert.Equal(t, "ShopOrderDef", d.ClassName())
}

func TestBootstrapEmptyCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	_, err := cache.Write(ctx, dir, nil, cache.WithPackage(""))
	require.NoError(t, err)

	loader := newLoader()
	res, err := newController(WithLoader(loader), WithCacheDir(dir)).Bootstrap(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, SourceSchema, res.Source, "a cache without records is regenerated")
	assert.EqualValues(t, 1, loader.calls.Load())
	assert.True(t, cache.Exists(dir))
}

func TestPlant(t *testing.T) {
	ctx := context.Background()

	t.Run("regenerates into the output directory", func(t *testing.T) {
		cacheDir, outDir := t.TempDir(), t.TempDir()
		_, err := cache.Write(ctx, cacheDir, shopDescriptors()[:2], cache.WithPackage(""))
		require.NoError(t, err)

		loader := newLoader()
		c := newController(WithLoader(loader), WithCacheDir(cacheDir))
		target := &shopTarget{c: c}
		require.NoError(t, c.Plant(ctx, target, outDir))

		require.NotNil(t, target.res)
		assert.Equal(t, SourceSchema, target.res.Source, "planting ignores an existing cache")
		assert.EqualValues(t, 1, loader.calls.Load())
		assert.Equal(t, outDir, loader.cfg.OutputDir)
		assert.True(t, cache.Exists(outDir))
		assert.Equal(t, Ready, c.State("shop"))
	})

	t.Run("already loaded", func(t *testing.T) {
		c := newController(WithLoader(newLoader()))
		_, err := c.Bootstrap(ctx, "shop")
		require.NoError(t, err)

		err = c.Plant(ctx, &shopTarget{c: c}, t.TempDir())
		require.Error(t, err)
		assert.True(t, planter.IsConfigError(err))
		assert.Contains(t, err.Error(), "already loaded")
	})

	t.Run("failed plant is forgotten", func(t *testing.T) {
		cacheDir := t.TempDir()
		_, err := cache.Write(ctx, cacheDir, shopDescriptors(), cache.WithPackage(""))
		require.NoError(t, err)

		boom := errors.New("introspection failed")
		failing := planter.SchemaLoaderFunc(func(context.Context, planter.LoaderConfig) ([]planter.Descriptor, error) {
			return nil, boom
		})
		c := newController(WithCacheDir(cacheDir))
		err = c.Plant(ctx, &shopTarget{c: c, opts: []Option{WithLoader(failing)}}, t.TempDir())
		assert.ErrorIs(t, err, boom)

		res, err := c.Bootstrap(ctx, "shop")
		require.NoError(t, err)
		assert.Equal(t, SourceCache, res.Source)
	})

	t.Run("init failure", func(t *testing.T) {
		c := newController()
		target := &shopTarget{c: c}
		err := c.Plant(ctx, target, t.TempDir())
		assert.True(t, planter.IsConfigError(err))
		assert.Equal(t, Idle, c.State("shop"))
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.Equal(t, "cache", SourceCache.String())
	assert.Equal(t, "schema", SourceSchema.String())
	assert.Equal(t, "none", SourceNone.String())
}
