package bootstrap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/planter/naming"
)

// FileConfig is the YAML configuration of a target.
//
//	target: shop
//	dialect: postgres
//	dsn: postgres://localhost/shop?sslmode=disable
//	prefix: shop
//	cache_dir: .planter/shop
//	irregular:
//	  person: people
//	nested:
//	  order: [order_item, customer]
type FileConfig struct {
	Target      string `yaml:"target"`
	Dialect     string `yaml:"dialect"`
	DSN         string `yaml:"dsn"`
	Schema      string `yaml:"schema,omitempty"`
	Prefix      string `yaml:"prefix,omitempty"`
	ModelBase   string `yaml:"model_base,omitempty"`
	ManagerBase string `yaml:"manager_base,omitempty"`
	CacheDir    string `yaml:"cache_dir,omitempty"`
	// DefinitionSuffix overrides the "_def" suffix. An explicit empty
	// string disables definition tables.
	DefinitionSuffix *string             `yaml:"definition_suffix,omitempty"`
	Irregular        map[string]string   `yaml:"irregular,omitempty"`
	Uncountable      []string            `yaml:"uncountable,omitempty"`
	Acronyms         []string            `yaml:"acronyms,omitempty"`
	Nested           map[string][]string `yaml:"nested,omitempty"`
	Tables           []string            `yaml:"tables,omitempty"`
	Exclude          []string            `yaml:"exclude,omitempty"`
	SlowQuery        time.Duration       `yaml:"slow_query,omitempty"`
}

// LoadConfig reads a FileConfig from path.
func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read config: %w", err)
	}
	fc, err := ParseConfig(b)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %s: %w", path, err)
	}
	return fc, nil
}

// ParseConfig decodes a FileConfig. Unknown keys are rejected.
func ParseConfig(b []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if fc.Target == "" {
		fc.Target = "default"
	}
	return fc, nil
}

// Convention builds the naming convention the file describes.
func (fc *FileConfig) Convention() *naming.Convention {
	var opts []naming.Option
	for _, singular := range slices.Sorted(maps.Keys(fc.Irregular)) {
		opts = append(opts, naming.WithIrregular(singular, fc.Irregular[singular]))
	}
	if len(fc.Uncountable) > 0 {
		opts = append(opts, naming.WithUncountable(fc.Uncountable...))
	}
	if len(fc.Acronyms) > 0 {
		opts = append(opts, naming.WithAcronym(fc.Acronyms...))
	}
	if fc.DefinitionSuffix != nil {
		opts = append(opts, naming.WithDefinitionSuffix(*fc.DefinitionSuffix))
	}
	return naming.New(opts...)
}

// Options converts the file into bootstrap options. The database, loader
// and store are left to the caller.
func (fc *FileConfig) Options() []Option {
	opts := []Option{
		WithBasePrefix(fc.Prefix),
		WithBases(fc.ModelBase, fc.ManagerBase),
		WithConvention(fc.Convention()),
		WithCacheDir(fc.CacheDir),
	}
	for _, table := range slices.Sorted(maps.Keys(fc.Nested)) {
		opts = append(opts, WithNested(table, fc.Nested[table]...))
	}
	return opts
}
