// Package cli implements the planter commands.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/planter"
	"github.com/syssam/planter/bootstrap"
	sqldrv "github.com/syssam/planter/dialect/sql"
	"github.com/syssam/planter/finder"
	"github.com/syssam/planter/introspect"
	"github.com/syssam/planter/registry"
)

var (
	configPath string
	verbose    bool
)

// AddFlags registers the persistent flags shared by all commands.
func AddFlags(root *cobra.Command) {
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "planter.yaml", "path to the YAML configuration")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log bootstrap passes and slow queries")
}

// env is everything a command needs to query one target.
type env struct {
	fc     *bootstrap.FileConfig
	logger *slog.Logger
	drv    *sqldrv.Driver
	stats  *sqldrv.StatsDriver
	loader *introspect.Loader
	ctrl   *bootstrap.Controller
	opts   []bootstrap.Option
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup reads the configuration and wires the driver, loader, store and
// controller. Nothing is bootstrapped yet.
func setup() (*env, error) {
	fc, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if fc.Dialect == "" || fc.DSN == "" {
		return nil, fmt.Errorf("%s: dialect and dsn are required", configPath)
	}
	logger := newLogger()
	drv, err := sqldrv.Open(fc.Dialect, fc.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	var statsOpts []sqldrv.StatsOption
	if fc.SlowQuery > 0 {
		statsOpts = append(statsOpts, sqldrv.WithSlowThreshold(fc.SlowQuery))
	}
	statsOpts = append(statsOpts, sqldrv.WithSlowQueryLog(logger))
	stats := sqldrv.NewStatsDriver(drv, statsOpts...)

	schemaName := fc.Schema
	if schemaName == "" {
		if schemaName, err = introspect.SchemaFromDSN(fc.Dialect, fc.DSN); err != nil {
			_ = drv.Close()
			return nil, err
		}
	}
	loaderOpts := []introspect.Option{
		introspect.WithTables(fc.Tables...),
		introspect.WithExclude(fc.Exclude...),
		introspect.WithLogger(logger),
	}
	if schemaName != "" {
		loaderOpts = append(loaderOpts, introspect.WithSchema(schemaName))
	}
	loader, err := introspect.New(fc.Dialect, loaderOpts...)
	if err != nil {
		_ = drv.Close()
		return nil, err
	}

	conv := fc.Convention()
	reg := registry.New(conv, registry.WithLogger(logger))
	opts := append(fc.Options(),
		bootstrap.WithLoader(loader),
		bootstrap.WithDBFunc(func(context.Context) (*sql.DB, error) { return drv.DB(), nil }),
		bootstrap.WithStore(sqldrv.NewStore(stats)),
		bootstrap.WithLogger(logger),
	)
	return &env{
		fc:     fc,
		logger: logger,
		drv:    drv,
		stats:  stats,
		loader: loader,
		ctrl:   bootstrap.New(reg),
		opts:   opts,
	}, nil
}

// load runs the bootstrap pass of the configured target.
func (e *env) load(ctx context.Context) (*bootstrap.Result, error) {
	return e.ctrl.Bootstrap(ctx, e.fc.Target, e.opts...)
}

// inspect builds descriptors from the live schema without writing them.
func (e *env) inspect(ctx context.Context) ([]planter.Descriptor, error) {
	return e.loader.Load(ctx, planter.LoaderConfig{
		BasePrefix: e.fc.Prefix,
		Convention: e.ctrl.Registry().Convention(),
		DB:         func(context.Context) (*sql.DB, error) { return e.drv.DB(), nil },
	})
}

func (e *env) finder() *finder.Finder {
	return finder.New(e.ctrl.Registry())
}

func (e *env) Close() error {
	return e.drv.Close()
}

// withEnv runs fn with a bootstrapped environment.
func withEnv(ctx context.Context, fn func(*env) error) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	if _, err := e.load(ctx); err != nil {
		return err
	}
	return fn(e)
}

// target plants the configured target through its own Bootstrap.
type target struct {
	e   *env
	res *bootstrap.Result
}

func (t *target) ID() string { return t.e.fc.Target }

func (t *target) Init(ctx context.Context) error {
	res, err := t.e.load(ctx)
	t.res = res
	return err
}
