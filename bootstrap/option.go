package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"

	"github.com/syssam/planter"
	"github.com/syssam/planter/naming"
)

// Config holds the settings of one bootstrap pass.
type Config struct {
	// BasePrefix prefixes every generated class name.
	BasePrefix string
	// ModelBase and ManagerBase are the base types of generated classes.
	ModelBase   string
	ManagerBase string
	// Convention derives names. It defaults to the registry convention.
	Convention *naming.Convention
	// Loader produces descriptors from the live schema.
	Loader planter.SchemaLoader
	// DB opens the database handed to the loader.
	DB func(context.Context) (*sql.DB, error)
	// Store is bound to every model that has none.
	Store planter.Store
	// CacheDir is the materialised cache of the target.
	CacheDir string
	// Nested maps a table to the related tables joined on load.
	Nested map[string][]string
	// Logger receives pass summaries.
	Logger *slog.Logger
}

// Option configures a bootstrap pass.
type Option func(*Config) error

// WithBasePrefix sets the class name prefix, e.g. "shop" for ShopOrder.
func WithBasePrefix(prefix string) Option {
	return func(c *Config) error {
		c.BasePrefix = prefix
		return nil
	}
}

// WithBases sets the base types embedded by generated models and managers.
func WithBases(model, manager string) Option {
	return func(c *Config) error {
		c.ModelBase, c.ManagerBase = model, manager
		return nil
	}
}

// WithConvention sets the naming convention.
func WithConvention(conv *naming.Convention) Option {
	return func(c *Config) error {
		if conv == nil {
			return planter.NewConfigError("Convention", nil, "convention cannot be nil")
		}
		c.Convention = conv
		return nil
	}
}

// WithLoader sets the schema loader used on regeneration.
func WithLoader(l planter.SchemaLoader) Option {
	return func(c *Config) error {
		if l == nil {
			return planter.NewConfigError("Loader", nil, "loader cannot be nil")
		}
		c.Loader = l
		return nil
	}
}

// WithDB sets the database handed to the loader.
func WithDB(db *sql.DB) Option {
	return func(c *Config) error {
		if db == nil {
			return planter.NewConfigError("DB", nil, "database cannot be nil")
		}
		c.DB = func(context.Context) (*sql.DB, error) { return db, nil }
		return nil
	}
}

// WithDBFunc sets a function opening the database on demand. It is only
// called when the schema is regenerated.
func WithDBFunc(fn func(context.Context) (*sql.DB, error)) Option {
	return func(c *Config) error {
		c.DB = fn
		return nil
	}
}

// WithStore sets the store bound to loaded models.
func WithStore(s planter.Store) Option {
	return func(c *Config) error {
		c.Store = s
		return nil
	}
}

// WithCacheDir sets the materialised cache directory of the target.
func WithCacheDir(dir string) Option {
	return func(c *Config) error {
		c.CacheDir = dir
		return nil
	}
}

// WithNested joins the related tables eagerly whenever table is loaded.
// Calling it again for the same table replaces the list.
func WithNested(table string, related ...string) Option {
	return func(c *Config) error {
		if table == "" {
			return planter.NewConfigError("Nested", nil, "table cannot be empty")
		}
		if c.Nested == nil {
			c.Nested = make(map[string][]string)
		}
		c.Nested[table] = slices.Clone(related)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		if l == nil {
			return planter.NewConfigError("Logger", nil, "logger cannot be nil")
		}
		c.Logger = l
		return nil
	}
}

// ApplyAll applies every option and collects the errors into a
// planter.AggregateError.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return planter.NewAggregateError(errs...)
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{}
	if err := c.ApplyAll(opts...); err != nil {
		return nil, err
	}
	return c, nil
}
