// Package gamedata assembles a Scheduler from systems, system descriptions
// and bundles, and drives it as a game loop.
package gamedata

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/plus3/ecscore/ecs"
)

// SystemDesc builds a system once the storage exists, for systems that need
// to look up resources or register components when created.
type SystemDesc interface {
	Build(storage *ecs.Storage) (ecs.System, error)
}

// SystemDescFunc adapts a function to SystemDesc.
type SystemDescFunc func(storage *ecs.Storage) (ecs.System, error)

func (f SystemDescFunc) Build(storage *ecs.Storage) (ecs.System, error) { return f(storage) }

// SystemBundle registers a group of related systems and resources.
type SystemBundle interface {
	Build(storage *ecs.Storage, scheduler *ecs.Scheduler) error
}

type buildOp struct {
	name  string
	apply func(storage *ecs.Storage, scheduler *ecs.Scheduler) error
}

// Builder records systems, barriers and bundles and applies them in order
// when Build is called.
type Builder struct {
	ops    []buildOp
	logger zerolog.Logger
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{logger: zerolog.Nop()}
}

// WithLogger sets the logger of the built GameData and its Scheduler.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// With adds system under name, to run after the systems named in deps.
func (b *Builder) With(system ecs.System, name string, deps ...string) *Builder {
	b.ops = append(b.ops, buildOp{
		name: fmt.Sprintf("add system %q", name),
		apply: func(_ *ecs.Storage, scheduler *ecs.Scheduler) error {
			return scheduler.Add(name, system, deps...)
		},
	})
	return b
}

// WithSystemDesc is With for a system built from desc at Build time.
func (b *Builder) WithSystemDesc(desc SystemDesc, name string, deps ...string) *Builder {
	b.ops = append(b.ops, buildOp{
		name: fmt.Sprintf("build system %q", name),
		apply: func(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
			system, err := desc.Build(storage)
			if err != nil {
				return err
			}
			return scheduler.Add(name, system, deps...)
		},
	})
	return b
}

// WithBarrier makes every later system wait for every earlier one.
func (b *Builder) WithBarrier() *Builder {
	b.ops = append(b.ops, buildOp{
		name: "barrier",
		apply: func(_ *ecs.Storage, scheduler *ecs.Scheduler) error {
			scheduler.Barrier()
			return nil
		},
	})
	return b
}

// WithThreadLocal adds a system that runs on the calling goroutine after
// all other systems.
func (b *Builder) WithThreadLocal(system ecs.System) *Builder {
	b.ops = append(b.ops, buildOp{
		name: "add thread-local system",
		apply: func(_ *ecs.Storage, scheduler *ecs.Scheduler) error {
			scheduler.AddThreadLocal(system)
			return nil
		},
	})
	return b
}

// WithThreadLocalDesc is WithThreadLocal for a system built from desc.
func (b *Builder) WithThreadLocalDesc(desc SystemDesc) *Builder {
	b.ops = append(b.ops, buildOp{
		name: "build thread-local system",
		apply: func(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
			system, err := desc.Build(storage)
			if err != nil {
				return err
			}
			scheduler.AddThreadLocal(system)
			return nil
		},
	})
	return b
}

// WithBundle adds every system of bundle.
func (b *Builder) WithBundle(bundle SystemBundle) *Builder {
	b.ops = append(b.ops, buildOp{
		name: fmt.Sprintf("build bundle %T", bundle),
		apply: func(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
			return bundle.Build(storage, scheduler)
		},
	})
	return b
}

// Build creates the Scheduler and applies every recorded operation. The
// error names the operation that failed.
func (b *Builder) Build(storage *ecs.Storage, opts ...ecs.SchedulerOption) (*GameData, error) {
	opts = append([]ecs.SchedulerOption{ecs.WithLogger(b.logger)}, opts...)
	scheduler := ecs.NewScheduler(storage, opts...)

	for i, op := range b.ops {
		if err := op.apply(storage, scheduler); err != nil {
			return nil, fmt.Errorf("gamedata: step %d (%s): %w", i, op.name, err)
		}
	}

	b.logger.Debug().
		Int("steps", len(b.ops)).
		Int("stages", len(scheduler.Stages())).
		Msg("game data built")
	return &GameData{storage: storage, scheduler: scheduler, logger: b.logger}, nil
}
