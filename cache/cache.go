// Package cache materialises schema descriptors on disk so that later
// bootstraps can skip introspection.
//
// A cache directory holds a manifest, one msgpack record per descriptor
// under records/, and the generated Go sources of the models and managers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/syssam/planter"
	"github.com/syssam/planter/internal/trace"
	"github.com/syssam/planter/naming"
)

const (
	// ManifestFile is the name of the manifest inside a cache directory.
	ManifestFile = "manifest.yaml"
	// FormatVersion is the record format written by this package.
	FormatVersion = 1

	recordsDir = "records"
)

// ErrCorrupt is returned when a cache directory exists but its contents do
// not match its manifest.
var ErrCorrupt = errors.New("cache: corrupt cache")

// Manifest describes the contents of a cache directory.
type Manifest struct {
	Version  int       `yaml:"version"`
	Created  time.Time `yaml:"created"`
	Records  []string  `yaml:"records"`
	Checksum string    `yaml:"checksum"`
	// Package is the package name of the generated sources, if any.
	Package string `yaml:"package,omitempty"`
}

// Option configures Write.
type Option func(*options)

type options struct {
	workers     int
	pkg         string
	modelBase   string
	managerBase string
	conv        *naming.Convention
}

// WithWorkers sets the number of parallel file writers.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPackage sets the package name of the generated sources.
// An empty name disables source generation.
func WithPackage(name string) Option {
	return func(o *options) { o.pkg = name }
}

// WithBases sets the base types embedded by generated models and managers,
// as "import/path.Type" or plain "Type".
func WithBases(model, manager string) Option {
	return func(o *options) {
		o.modelBase, o.managerBase = model, manager
	}
}

// WithConvention sets the convention used to name generated fields.
func WithConvention(c *naming.Convention) Option {
	return func(o *options) {
		if c != nil {
			o.conv = c
		}
	}
}

// Exists reports whether dir holds a cache with at least one record. A
// manifest that does not parse still counts, so that Load reports it as
// corrupt.
func Exists(dir string) bool {
	if dir == "" {
		return false
	}
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return false
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return true
	}
	return len(m.Records) > 0
}

// Write materialises descs into dir, replacing any previous cache. The
// manifest is written last, so a reader never sees a partial cache as
// complete.
func Write(ctx context.Context, dir string, descs []planter.Descriptor, opts ...Option) (*Manifest, error) {
	o := &options{workers: runtime.GOMAXPROCS(0), pkg: "models", conv: naming.New()}
	for _, opt := range opts {
		opt(o)
	}
	recs := make([]*record, len(descs))
	for i, d := range descs {
		r, err := newRecord(d)
		if err != nil {
			return nil, err
		}
		recs[i] = r
	}
	rdir := filepath.Join(dir, recordsDir)
	if err := os.RemoveAll(rdir); err != nil {
		return nil, fmt.Errorf("cache: clear records: %w", err)
	}
	if err := os.MkdirAll(rdir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create records directory: %w", err)
	}

	names := make([]string, len(recs))
	blobs := make([][]byte, len(recs))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	for i, r := range recs {
		names[i] = recordName(i, r)
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := msgpack.Marshal(r)
			if err != nil {
				return fmt.Errorf("cache: encode %s: %w", r.Table, err)
			}
			blobs[i] = b
			if err := os.WriteFile(filepath.Join(rdir, names[i]), b, 0o644); err != nil {
				return fmt.Errorf("cache: write %s: %w", names[i], err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if o.pkg != "" {
		if err := GenerateSource(ctx, filepath.Join(dir, o.pkg), o.pkg, descs, opts...); err != nil {
			return nil, err
		}
	}
	m := &Manifest{
		Version:  FormatVersion,
		Created:  time.Now().UTC(),
		Records:  names,
		Checksum: checksum(names, blobs),
		Package:  o.pkg,
	}
	if err := writeManifest(dir, m); err != nil {
		return nil, err
	}
	if trace.Enabled() {
		trace.Logf("cache: wrote %d records to %s", len(names), dir)
	}
	return m, nil
}

// ReadManifest reads the manifest of dir.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("cache: read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrCorrupt, err)
	}
	if m.Version != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d, want %d", ErrCorrupt, m.Version, FormatVersion)
	}
	return &m, nil
}

// Load reads the descriptors materialised in dir, in the order they were
// written. Managers are re-linked to the model of their object table.
// The returned models have no store bound.
func Load(ctx context.Context, dir string) ([]planter.Descriptor, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	recs := make([]*record, len(m.Records))
	blobs := make([][]byte, len(m.Records))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range m.Records {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(filepath.Join(dir, recordsDir, filepath.Base(name)))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			var r record
			if err := msgpack.Unmarshal(b, &r); err != nil {
				return fmt.Errorf("%w: decode %s: %v", ErrCorrupt, name, err)
			}
			recs[i], blobs[i] = &r, b
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if sum := checksum(m.Records, blobs); sum != m.Checksum {
		return nil, fmt.Errorf("%w: checksum %s, manifest has %s", ErrCorrupt, sum, m.Checksum)
	}
	return link(recs)
}

func link(recs []*record) ([]planter.Descriptor, error) {
	models := make(map[string]*planter.Model)
	descs := make([]planter.Descriptor, 0, len(recs))
	for _, r := range recs {
		if r.Kind == planter.KindModel {
			mdl := r.model()
			models[mdl.Table] = mdl
			descs = append(descs, mdl)
		}
	}
	for _, r := range recs {
		switch r.Kind {
		case planter.KindModel:
		case planter.KindManager:
			obj, ok := models[r.Object]
			if !ok {
				return nil, fmt.Errorf("%w: manager %q serves unknown table %q", ErrCorrupt, r.Name, r.Object)
			}
			descs = append(descs, &planter.Manager{Name: r.Name, Object: obj})
		default:
			return nil, fmt.Errorf("%w: record %q has unknown kind %v", ErrCorrupt, r.Table, r.Kind)
		}
	}
	return descs, nil
}

func recordName(i int, r *record) string {
	return fmt.Sprintf("%04d.%s.msgpack", i, r.Kind)
}

// checksum folds the record names and contents into one xxh3 digest.
func checksum(names []string, blobs [][]byte) string {
	h := xxh3.New()
	for i, name := range names {
		_, _ = h.Write([]byte(name))
		_, _ = h.Write(blobs[i])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func writeManifest(dir string, m *Manifest) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("cache: encode manifest: %w", err)
	}
	f, err := os.CreateTemp(dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("cache: write manifest: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("cache: write manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("cache: write manifest: %w", err)
	}
	if err := os.Rename(f.Name(), filepath.Join(dir, ManifestFile)); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("cache: write manifest: %w", err)
	}
	return nil
}
