// Package engine assembles storage, scheduler and the optional profiler and
// save support from a config.Config.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/fps"
	"github.com/plus3/ecscore/gamedata"
	"github.com/plus3/ecscore/internal/config"
	"github.com/plus3/ecscore/lifecycle"
	"github.com/plus3/ecscore/profiler"
	"github.com/plus3/ecscore/saveload"
	"github.com/plus3/ecscore/timing"
	"github.com/plus3/ecscore/transform"
)

// ErrSaveLoadDisabled is returned by Save and Load when features.saveload
// is off.
var ErrSaveLoadDisabled = errors.New("engine: saveload feature is disabled")

type options struct {
	logger     zerolog.Logger
	components func(*ecs.ComponentRegistry)
	systems    func(*gamedata.Builder)
	saves      func(*saveload.Registry)
	metrics    *prometheus.Registry
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger handed to every part of the engine.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithComponents registers application components before the storage is
// created.
func WithComponents(fn func(*ecs.ComponentRegistry)) Option {
	return func(o *options) { o.components = fn }
}

// WithSystems adds application systems. They are added before the built-in
// transform, lifecycle and fps systems, so those see this frame's writes.
func WithSystems(fn func(*gamedata.Builder)) Option {
	return func(o *options) { o.systems = fn }
}

// WithSaveComponents registers application components for saving, next to
// the built-in transform and lifecycle ones.
func WithSaveComponents(fn func(*saveload.Registry)) Option {
	return func(o *options) { o.saves = fn }
}

// WithMetricsRegistry makes the profiler register into reg instead of a
// fresh registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// Engine is a built game with its optional features.
type Engine struct {
	cfg      config.Config
	game     *gamedata.GameData
	profiler *profiler.Profiler
	metrics  *prometheus.Registry
	saves    *saveload.Registry
	logger   zerolog.Logger
}

// New validates cfg and builds the engine.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}

	registry := ecs.NewComponentRegistry()
	if o.components != nil {
		o.components(registry)
	}
	storage := ecs.NewStorage(registry,
		ecs.WithEventControl(cfg.Features.StorageEventControl),
		ecs.WithStorageLogger(o.logger),
	)

	t := timing.NewTime()
	t.SetFixedSeconds(1 / float64(cfg.Loop.FixedRate))
	t.SetTimeScale(cfg.Loop.TimeScale)
	storage.AddSingleton(t)

	e := &Engine{cfg: cfg, logger: o.logger}

	builder := gamedata.NewBuilder().WithLogger(o.logger)
	if o.systems != nil {
		o.systems(builder)
	}
	builder.
		WithBundle(transform.NewBundle().WithLogger(o.logger)).
		WithBundle(lifecycle.Bundle{}).
		WithBundle(fps.Bundle{})

	if cfg.Features.SaveLoad {
		e.saves = saveload.NewRegistry()
		saveload.RegisterTransform(e.saves)
		saveload.RegisterLifecycle(e.saves)
		if o.saves != nil {
			o.saves(e.saves)
		}
		builder.WithBundle(saveload.Bundle{})
	}

	schedOpts := []ecs.SchedulerOption{ecs.WithParallel(cfg.Features.Parallel)}
	if cfg.Features.Profiler {
		e.metrics = o.metrics
		if e.metrics == nil {
			e.metrics = prometheus.NewRegistry()
		}
		p, err := profiler.New(e.metrics, profiler.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("engine: profiler: %w", err)
		}
		e.profiler = p
		schedOpts = append(schedOpts, ecs.WithObserver(p))
	}

	game, err := builder.Build(storage, schedOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.game = game

	o.logger.Info().
		Bool("parallel", cfg.Features.Parallel).
		Bool("profiler", cfg.Features.Profiler).
		Bool("saveload", cfg.Features.SaveLoad).
		Bool("storage_event_control", cfg.Features.StorageEventControl).
		Int("stages", len(game.Scheduler().Stages())).
		Msg("engine built")
	return e, nil
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() config.Config { return e.cfg }

// Game returns the game data.
func (e *Engine) Game() *gamedata.GameData { return e.game }

// Storage returns the world.
func (e *Engine) Storage() *ecs.Storage { return e.game.Storage() }

// Profiler returns the profiler, or nil when features.profiler is off.
func (e *Engine) Profiler() *profiler.Profiler { return e.profiler }

// Saves returns the save registry, or nil when features.saveload is off.
func (e *Engine) Saves() *saveload.Registry { return e.saves }

// Limiter returns a frame limiter for loop.limiter and loop.tick_rate.
func (e *Engine) Limiter() *timing.FrameLimiter {
	return timing.NewFrameLimiter(e.cfg.LimitStrategy(), e.cfg.Loop.TickRate)
}

// Handler returns the profiler HTTP handler, or nil when the profiler is off.
func (e *Engine) Handler() http.Handler {
	if e.profiler == nil {
		return nil
	}
	return e.profiler.NewHandler(e.metrics, e.game.Scheduler())
}

// Run runs the game loop until ctx is done or the game is disposed. With the
// profiler on it also serves metrics.addr and stops the server with the
// loop.
func (e *Engine) Run(ctx context.Context, clock timing.Clock) error {
	if e.profiler == nil {
		return e.game.Run(ctx, e.Limiter(), clock)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return e.game.Run(gctx, e.Limiter(), clock)
	})
	g.Go(func() error {
		return e.profiler.ListenAndServe(gctx, e.cfg.Metrics.Addr, e.Handler())
	})
	return g.Wait()
}

// Save writes every marked entity.
func (e *Engine) Save(w io.Writer, format saveload.Format) error {
	if e.saves == nil {
		return ErrSaveLoadDisabled
	}
	return e.saves.Save(e.Storage(), w, format)
}

// Load spawns the entities of a save.
func (e *Engine) Load(r io.Reader, format saveload.Format) ([]ecs.EntityId, error) {
	if e.saves == nil {
		return nil, ErrSaveLoadDisabled
	}
	return e.saves.Load(e.Storage(), r, format)
}

// Close disposes the game.
func (e *Engine) Close() {
	e.game.Dispose()
}
