package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/fps"
	"github.com/plus3/ecscore/internal/config"
	"github.com/plus3/ecscore/internal/engine"
	"github.com/plus3/ecscore/internal/logging"
	"github.com/plus3/ecscore/saveload"
	"github.com/plus3/ecscore/timing"
)

type runOptions struct {
	configPath     string
	duration       time.Duration
	entities       int
	seed           uint64
	paced          bool
	gcPauseMetrics bool
	savePath       string
	saveEntities   int
}

func newEngine(cfg config.Config, logger zerolog.Logger) (*engine.Engine, error) {
	return engine.New(cfg,
		engine.WithLogger(logger),
		engine.WithComponents(RegisterAllGeneratedComponents),
		engine.WithSystems(AddAllGeneratedSystems),
		engine.WithSaveComponents(RegisterAllGeneratedSaves),
	)
}

// SpawnRandomEntity spawns an entity with numComponents distinct generated
// components.
func SpawnRandomEntity(storage *ecs.Storage, rng *rand.Rand, numComponents int) ecs.EntityId {
	picks := rng.Perm(componentCount)[:min(numComponents, componentCount)]
	components := make([]any, 0, len(picks))
	for _, i := range picks {
		components = append(components, NewGeneratedComponent(i, rng))
	}
	return storage.Spawn(components...)
}

func runStress(ctx context.Context, opts runOptions) (*Report, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.savePath != "" {
		cfg.Features.SaveLoad = true
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, nil)

	e, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer e.Close()

	logger.Info().Int("entities", opts.entities).Msg("populating storage")
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	for range opts.entities {
		SpawnRandomEntity(e.Storage(), rng, rng.IntN(5)+1)
	}

	report := &Report{
		Duration:       opts.duration,
		Entities:       opts.entities,
		Components:     componentCount,
		Systems:        systemCount,
		Parallel:       cfg.Features.Parallel,
		Stages:         e.Game().Scheduler().Stages(),
		GCPauseMetrics: opts.gcPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	logger.Info().Dur("duration", opts.duration).Msg("running simulation")
	g, gctx := errgroup.WithContext(ctx)
	if h := e.Handler(); h != nil {
		g.Go(func() error {
			return e.Profiler().ListenAndServe(gctx, cfg.Metrics.Addr, h)
		})
	}
	g.Go(func() error {
		simulate(gctx, e, opts.paced, report)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.UpdateTime.Finalize()
	runtime.ReadMemStats(&report.MemStatsEnd)
	if counter := ecs.ReadSingleton[fps.Counter](e.Storage()); counter != nil {
		report.SampledFPS = counter.SampledFPS()
	}
	report.SetSchedulerStats(e.Game().Scheduler().GetStats(), 5)
	report.Storage = e.Storage().CollectStats()
	logger.Info().Int64("updates", report.TotalUpdates).Msg("simulation finished")

	if opts.savePath != "" {
		if err := saveSample(e, opts.savePath, opts.saveEntities); err != nil {
			return nil, err
		}
		logger.Info().Str("path", opts.savePath).Int("entities", opts.saveEntities).Msg("world saved")
	}
	return report, nil
}

func simulate(ctx context.Context, e *engine.Engine, paced bool, report *Report) {
	var limiter *timing.FrameLimiter
	if paced {
		limiter = e.Limiter()
		limiter.Start()
	}

	startTime := time.Now()
	lastFrameTime := startTime
	for ctx.Err() == nil {
		updateStart := time.Now()
		e.Game().Update(updateStart.Sub(lastFrameTime))
		lastFrameTime = updateStart

		report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(updateStart))
		report.TotalUpdates++

		if limiter != nil && limiter.Wait(ctx) != nil {
			break
		}
	}
	report.TotalTime = time.Since(startTime)
}

// saveSample marks the first n entities and saves them to path.
func saveSample(e *engine.Engine, path string, n int) error {
	format, err := saveload.FormatFromPath(path)
	if err != nil {
		return err
	}

	ids := slices.Collect(e.Storage().Entities())
	for _, id := range ids[:min(n, len(ids))] {
		saveload.Mark(e.Storage(), id)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.Save(f, format); err != nil {
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return f.Close()
}

func loadSave(configPath, path string) (ecs.StorageStats, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return ecs.StorageStats{}, err
	}
	cfg.Features.SaveLoad = true

	e, err := newEngine(cfg, logging.New(cfg.Log.Level, cfg.Log.Pretty, nil))
	if err != nil {
		return ecs.StorageStats{}, err
	}
	defer e.Close()

	format, err := saveload.FormatFromPath(path)
	if err != nil {
		return ecs.StorageStats{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return ecs.StorageStats{}, err
	}
	defer f.Close()

	if _, err := e.Load(f, format); err != nil {
		return ecs.StorageStats{}, fmt.Errorf("load %s: %w", path, err)
	}
	return e.Storage().CollectStats(), nil
}
