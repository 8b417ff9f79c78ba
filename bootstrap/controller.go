// Package bootstrap drives the startup of a target: it reuses a
// materialised cache or regenerates descriptors from the live schema, then
// publishes them into a registry.
//
// Regenerating code may itself load the target again. Each target carries
// an in-flight guard, so such a reentrant Bootstrap returns a deferred
// result instead of starting a second pass.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/syssam/planter"
	"github.com/syssam/planter/cache"
	"github.com/syssam/planter/internal/trace"
	"github.com/syssam/planter/registry"
)

// State is the lifecycle state of a target.
type State uint8

// Target states.
const (
	Idle State = iota
	Planting
	Populating
	Ready
)

var stateNames = [...]string{
	Idle:       "idle",
	Planting:   "planting",
	Populating: "populating",
	Ready:      "ready",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Source tells where the descriptors of a pass came from.
type Source uint8

// Descriptor sources.
const (
	SourceNone Source = iota
	SourceCache
	SourceSchema
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceSchema:
		return "schema"
	default:
		return "none"
	}
}

// Target is something that can be planted: its Init is expected to call
// Bootstrap with its own ID.
type Target interface {
	ID() string
	Init(ctx context.Context) error
}

// Result describes a bootstrap pass.
type Result struct {
	Target string
	// Deferred is set when the call joined a pass already in flight and
	// did nothing.
	Deferred bool
	Source   Source
	Models   int
	Managers int
	// Pass identifies the pass in logs.
	Pass uuid.UUID
}

type target struct {
	state     State
	guard     bool
	planted   bool
	outputDir string
}

// Controller tracks the bootstrap state of every target sharing one
// registry.
type Controller struct {
	reg      *registry.Registry
	defaults []Option

	mu      sync.Mutex
	targets map[string]*target

	// pub serialises staging and publishing between targets.
	pub sync.Mutex
}

// New returns a Controller populating reg. The options are applied
// before the options of every Bootstrap call.
func New(reg *registry.Registry, opts ...Option) *Controller {
	return &Controller{
		reg:      reg,
		defaults: opts,
		targets:  make(map[string]*target),
	}
}

// Registry returns the registry populated by the controller.
func (c *Controller) Registry() *registry.Registry { return c.reg }

// State returns the state of the target.
func (c *Controller) State(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.targets[id]; ok {
		return t.state
	}
	return Idle
}

func (c *Controller) target(id string) *target {
	t, ok := c.targets[id]
	if !ok {
		t = &target{}
		c.targets[id] = t
	}
	return t
}

// Plant forces the regeneration of t into outputDir and runs its Init.
// Planting a target that is already loaded is a configuration error.
func (c *Controller) Plant(ctx context.Context, t Target, outputDir string) error {
	id := t.ID()
	c.mu.Lock()
	tg := c.target(id)
	if tg.state == Ready {
		c.mu.Unlock()
		return planter.NewConfigError("Target", id, "already loaded")
	}
	tg.planted = true
	tg.outputDir = outputDir
	c.mu.Unlock()
	if trace.Enabled() {
		trace.Logf("bootstrap: plant %s into %s", id, outputDir)
	}
	return t.Init(ctx)
}

// Bootstrap loads the descriptors of the target and publishes them.
//
// A call for a target whose guard is set returns a deferred Result and no
// error. Otherwise the descriptors are read from the cache directory when
// it holds a cache and the target was not planted, or from the loader.
// Any failure leaves the published registry untouched and resets the
// target so the call can be retried.
func (c *Controller) Bootstrap(ctx context.Context, id string, opts ...Option) (*Result, error) {
	c.mu.Lock()
	tg := c.target(id)
	if tg.guard {
		c.mu.Unlock()
		if trace.Enabled() {
			trace.Logf("bootstrap: %s already in flight", id)
		}
		return &Result{Target: id, Deferred: true}, nil
	}
	tg.guard = true
	tg.state = Planting
	planted, outputDir := tg.planted, tg.outputDir
	c.mu.Unlock()

	res, err := c.run(ctx, id, planted, outputDir, opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		tg.guard = false
		tg.planted, tg.outputDir = false, ""
		tg.state = Idle
		return nil, err
	}
	tg.planted = false
	tg.state = Ready
	return res, nil
}

func (c *Controller) run(ctx context.Context, id string, planted bool, outputDir string, opts []Option) (*Result, error) {
	base := []Option{WithConvention(c.reg.Convention()), WithLogger(slog.Default())}
	cfg, err := NewConfig(slices.Concat(base, c.defaults, opts)...)
	if err != nil {
		return nil, err
	}
	res := &Result{Target: id, Pass: uuid.New()}
	logger := cfg.Logger.With("target", id, "pass", res.Pass.String())

	var descs []planter.Descriptor
	if !planted && cache.Exists(cfg.CacheDir) {
		res.Source = SourceCache
		descs, err = cache.Load(ctx, cfg.CacheDir)
	} else {
		res.Source = SourceSchema
		descs, err = c.regenerate(ctx, cfg, outputDir)
	}
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, planter.NewConfigError("Loader", id, "did not make any classes")
	}

	c.setState(id, Populating)
	c.pub.Lock()
	defer c.pub.Unlock()
	stage := c.reg.Stage(cfg.Convention)
	for _, d := range descs {
		switch d := d.(type) {
		case *planter.Model:
			if d.Store == nil {
				d.Store = cfg.Store
			}
			err = stage.RegisterModel(d)
			res.Models++
		case *planter.Manager:
			err = stage.RegisterManager(d)
			res.Managers++
		}
		if err != nil {
			return nil, err
		}
	}
	for _, table := range slices.Sorted(maps.Keys(cfg.Nested)) {
		if err := stage.AttachNested(table, cfg.Nested[table]); err != nil {
			return nil, err
		}
	}
	c.reg.Publish(stage)
	logger.InfoContext(ctx, "bootstrap complete",
		"source", res.Source.String(), "models", res.Models, "managers", res.Managers)
	return res, nil
}

func (c *Controller) regenerate(ctx context.Context, cfg *Config, outputDir string) ([]planter.Descriptor, error) {
	if cfg.Loader == nil {
		return nil, planter.NewConfigError("Loader", nil, "no schema loader configured")
	}
	if outputDir == "" {
		outputDir = cfg.CacheDir
	}
	return cfg.Loader.Load(ctx, planter.LoaderConfig{
		BasePrefix:  cfg.BasePrefix,
		ModelBase:   cfg.ModelBase,
		ManagerBase: cfg.ManagerBase,
		Convention:  cfg.Convention,
		DB:          cfg.DB,
		Store:       cfg.Store,
		OutputDir:   outputDir,
	})
}

func (c *Controller) setState(id string, s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target(id).state = s
}
